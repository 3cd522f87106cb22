package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/footprint/configs"
	"github.com/navid-fn/footprint/internal/aggregation"
	"github.com/navid-fn/footprint/internal/chart"
	"github.com/navid-fn/footprint/internal/export"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/persistence"
	"github.com/navid-fn/footprint/internal/settings"
	"github.com/navid-fn/footprint/internal/stream"
)

// newStore picks the storage backend.
func newStore(cfg configs.StoreConfig, log *logrus.Logger) (persistence.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return persistence.NewMemoryStore(), nil
	case "file":
		return persistence.NewFileStore(cfg.Dir, log), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return persistence.NewRedisStore(client, "footprint:", log), nil
	case "sql":
		return persistence.NewSQLStore(cfg.SQLDSN, cfg.SQLAutoMigrate, log), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// newSettingsStore seeds the chart settings from the restored snapshot, or
// from config for a new chart, and persists every change through session.
func newSettingsStore(cfg *configs.AppConfig, snapshot *models.ChartSnapshot, session *persistence.Session, log *logrus.Logger) (*settings.Store, error) {
	themes := settings.NewThemeRegistry()
	if cfg.Chart.ThemesFile != "" {
		n, err := themes.LoadThemesFile(cfg.Chart.ThemesFile)
		if err != nil {
			return nil, err
		}
		log.WithField("themes", n).Info("Themes loaded")
	}

	initial := settings.DefaultState()
	if snapshot != nil {
		initial.Settings = snapshot.Settings
	} else {
		if cfg.Chart.TimeframeMinutes > 0 {
			initial.Settings.TimeframeMinutes = cfg.Chart.TimeframeMinutes
		}
		if len(cfg.Feed.Symbols) > 0 {
			initial.Settings.Instrument = cfg.Feed.Symbols[0]
		}
	}
	if err := initial.Settings.Validate(); err != nil {
		log.WithError(err).Warn("Restored settings are invalid, using defaults")
		initial.Settings = models.DefaultSettings()
	}

	persist := func(s models.Settings) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return session.PersistSettings(ctx, s)
	}
	if snapshot == nil {
		// Seed the snapshot so later view writes carry these settings.
		if err := persist(initial.Settings); err != nil {
			log.WithError(err).Warn("Failed to persist initial settings")
		}
	}
	return settings.NewStore(initial, themes, persist, log), nil
}

// newCandleSink returns nil when export is disabled or the producer cannot
// be created.
func newCandleSink(cfg *configs.AppConfig, state *settings.Store, log *logrus.Logger) *export.KafkaSink {
	if cfg.Kafka.Broker == "" {
		return nil
	}
	producer, err := export.NewKafkaProducer(cfg.Kafka.Broker)
	if err != nil {
		log.WithError(err).Error("Candle export disabled")
		return nil
	}
	meta := func() (string, int, float64) {
		s := state.Settings()
		return s.Instrument, s.TimeframeMinutes, aggregation.ParamsFromSettings(s, cfg.Chart.BaseTickSize).EffectiveTickSize()
	}
	return export.NewKafkaSink(producer, cfg.Kafka.CandleTopic, cfg.Chart.ID, meta, log)
}

// chartHandler feeds trades and connection status into the chart.
func chartHandler(c *chart.Controller, log *logrus.Logger) stream.Handler {
	return stream.Handler{
		OnTrades: func(trades []models.Trade) {
			if err := c.AppendTrades(trades); err != nil {
				log.WithError(err).Warn("Failed to apply trades")
			}
		},
		OnStatus: func(status models.ConnectionStatus) {
			if err := c.SetStatus(status); err != nil {
				log.WithError(err).Debug("Status not recorded")
			}
		},
	}
}

func newFeed(cfg configs.FeedConfig, c *chart.Controller, log *logrus.Logger) *stream.Client {
	return stream.NewClient(stream.Config{
		URL:                  cfg.URL,
		Symbols:              cfg.Symbols,
		FlushInterval:        cfg.FlushInterval,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		ReconnectBase:        cfg.ReconnectBase,
		ReconnectMax:         cfg.ReconnectMax,
		ReconnectJitter:      cfg.ReconnectJitter,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		WriteRate:            cfg.WriteRate,
	}, chartHandler(c, log), log)
}

func newKafkaSource(cfg *configs.AppConfig, c *chart.Controller, log *logrus.Logger) *stream.KafkaSource {
	reader := stream.NewKafkaReader(cfg.Kafka.Broker, cfg.Kafka.TradeTopic, cfg.Kafka.GroupID)
	return stream.NewKafkaSource(reader, stream.KafkaConfig{
		Symbols:      cfg.Feed.Symbols,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
	}, chartHandler(c, log), log)
}

// subscriber is a trade feed whose symbol set can change at runtime.
type subscriber interface {
	Subscribe(symbols ...string) error
	Unsubscribe(symbols ...string) error
}

// followInstrument subscribes the feeds to the chart's instrument and moves
// them whenever it changes. Configured symbols stay subscribed.
func followInstrument(state *settings.Store, configured []string, log *logrus.Logger, feeds ...subscriber) func() {
	keep := make(map[string]struct{}, len(configured))
	for _, s := range configured {
		keep[s] = struct{}{}
	}
	if current := state.Settings().Instrument; current != "" {
		for _, f := range feeds {
			if err := f.Subscribe(current); err != nil {
				log.WithError(err).WithField("symbol", current).Warn("Failed to subscribe feed")
			}
		}
	}
	return state.Subscribe(func(prev, next settings.State) {
		from, to := prev.Settings.Instrument, next.Settings.Instrument
		if from == to {
			return
		}
		for _, f := range feeds {
			if to != "" {
				if err := f.Subscribe(to); err != nil {
					log.WithError(err).WithField("symbol", to).Warn("Failed to subscribe feed")
				}
			}
			if _, ok := keep[from]; from != "" && !ok {
				if err := f.Unsubscribe(from); err != nil {
					log.WithError(err).WithField("symbol", from).Warn("Failed to unsubscribe feed")
				}
			}
		}
		log.WithFields(logrus.Fields{"from": from, "to": to}).Info("Feed following instrument")
	})
}

func streamCheck(stats func() stream.Stats) func(context.Context) error {
	return func(ctx context.Context) error {
		s := stats()
		if s.Status == models.StatusError {
			return fmt.Errorf("feed in error state: %s", s.LastError)
		}
		return nil
	}
}
