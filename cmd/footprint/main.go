package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/navid-fn/footprint/configs"
	"github.com/navid-fn/footprint/internal/chart"
	"github.com/navid-fn/footprint/internal/health"
	"github.com/navid-fn/footprint/internal/logger"
	"github.com/navid-fn/footprint/internal/metrics"
	"github.com/navid-fn/footprint/internal/models"
	"github.com/navid-fn/footprint/internal/persistence"
	"github.com/navid-fn/footprint/internal/render"
	"github.com/navid-fn/footprint/internal/server"
	"github.com/navid-fn/footprint/internal/stream"
)

func main() {
	cfg := configs.AppLoad()

	log, closer, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage and the chart's persisted state.
	store, err := newStore(cfg.Store, log)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	session := persistence.NewSession(store, persistence.SessionConfig{
		ChartID:  cfg.Chart.ID,
		Debounce: cfg.Store.Debounce,
	}, log)

	restoreCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	snapshot, drawings, err := session.Restore(restoreCtx)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Failed to restore chart state")
	}

	state, err := newSettingsStore(cfg, snapshot, session, log)
	if err != nil {
		log.Fatalf("Failed to load themes: %v", err)
	}

	// Render layers.
	raster, err := render.NewChartSurface(render.FormatPNG, cfg.Chart.Width, cfg.Chart.Height, cfg.Chart.PixelRatio)
	if err != nil {
		log.Fatalf("Failed to create raster surface: %v", err)
	}
	overlay, err := render.NewChartSurface(render.FormatSVG, cfg.Chart.Width, cfg.Chart.Height, cfg.Chart.PixelRatio)
	if err != nil {
		log.Fatalf("Failed to create overlay surface: %v", err)
	}

	renderMetrics := metrics.NewRenderer()
	opts := chart.Options{
		ChartID:      cfg.Chart.ID,
		Width:        cfg.Chart.Width,
		Height:       cfg.Chart.Height,
		PixelRatio:   cfg.Chart.PixelRatio,
		BaseTickSize: cfg.Chart.BaseTickSize,
		MaxTrades:    cfg.Chart.MaxTrades,
		Observer:     renderMetrics,
	}

	sink := newCandleSink(cfg, state, log)
	if sink != nil {
		opts.OnCandleClose = sink.Publish
	}

	controller, err := chart.New(opts, session, state, raster, overlay, log)
	if err != nil {
		log.Fatalf("Failed to create chart: %v", err)
	}
	var view *models.ViewState
	if snapshot != nil {
		view = snapshot.View
	}
	if err := controller.Restore(view, drawings); err != nil {
		log.WithError(err).Warn("Failed to apply restored chart state")
	}

	// Trade feeds: the websocket client and, optionally, a Kafka topic.
	var feed *stream.Client
	if cfg.Feed.URL != "" {
		feed = newFeed(cfg.Feed, controller, log)
	}
	var source *stream.KafkaSource
	if cfg.Kafka.Broker != "" && cfg.Kafka.TradeTopic != "" {
		source = newKafkaSource(cfg, controller, log)
	}
	var feeds []subscriber
	if feed != nil {
		feeds = append(feeds, feed)
	}
	if source != nil {
		feeds = append(feeds, source)
	}
	if len(feeds) == 0 {
		log.Warn("No trade feed configured, set FEED_URL or KAFKA_TRADE_TOPIC")
	}
	unfollow := followInstrument(state, cfg.Feed.Symbols, log, feeds...)
	defer unfollow()

	// Health and metrics.
	monitor := health.NewMonitor(log, 15*time.Second)
	monitor.AddCheck("storage", false, func(ctx context.Context) error {
		if !session.Durable() || !store.IsAvailable(ctx) {
			return persistence.ErrUnavailable
		}
		return nil
	})
	collectors := []prometheus.Collector{renderMetrics}
	var stats func() stream.Stats
	switch {
	case feed != nil:
		stats = feed.Stats
	case source != nil:
		stats = source.Stats
	}
	if stats != nil {
		monitor.AddCheck("stream", true, streamCheck(stats))
		collectors = append(collectors, metrics.NewStreamCollector(stats))
	}
	registry, err := metrics.NewRegistry(collectors...)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	if !cfg.Server.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(&server.Config{
		Chart:   controller,
		Stats:   stats,
		Health:  monitor,
		Metrics: metrics.Handler(registry),
		Logger:  log,
	})
	api := server.NewServer(cfg.Server.Port, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(gctx)
	})
	g.Go(func() error {
		monitor.Start(gctx)
		<-gctx.Done()
		monitor.Stop()
		return nil
	})
	if feed != nil {
		g.Go(func() error {
			if err := feed.Connect(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			feed.Disconnect()
			return nil
		})
	}
	if source != nil {
		g.Go(func() error {
			return source.Run(gctx)
		})
	}

	log.WithField("chart_id", cfg.Chart.ID).Info("Footprint service started")
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Service exited with error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if sink != nil {
		sink.Close(5000)
	}
	if err := controller.Destroy(); err != nil {
		log.WithError(err).Warn("Failed to destroy chart")
	}
	if err := session.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to flush chart state on shutdown")
	}
	log.Info("Application stopped successfully")
}
