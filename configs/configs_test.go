package configs

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestAppLoadDefaults(t *testing.T) {
	for _, key := range []string{"FEED_URL", "FEED_SYMBOLS", "STORE_BACKEND", "CHART_MAX_TRADES", "SERVER_PORT", "STORE_DEBOUNCE", "KAFKA_TRADE_TOPIC", "KAFKA_BATCH_SIZE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := AppLoad()

	if cfg.Chart.MaxTrades != 200_000 {
		t.Errorf("Expected MaxTrades 200000, got %d", cfg.Chart.MaxTrades)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Expected backend memory, got %q", cfg.Store.Backend)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Store.Debounce != 500*time.Millisecond {
		t.Errorf("Expected debounce 500ms, got %v", cfg.Store.Debounce)
	}
	if cfg.Feed.Symbols != nil {
		t.Errorf("Expected no symbols, got %v", cfg.Feed.Symbols)
	}
	if cfg.Kafka.TradeTopic != "" || cfg.Kafka.BatchSize != 500 {
		t.Errorf("Expected trade source disabled with batch 500, got %q/%d", cfg.Kafka.TradeTopic, cfg.Kafka.BatchSize)
	}
}

func TestAppLoadOverrides(t *testing.T) {
	t.Setenv("FEED_SYMBOLS", "EUR/USD, GBP/USD,,")
	t.Setenv("FEED_RECONNECT_JITTER", "0.5")
	t.Setenv("FEED_HEARTBEAT_INTERVAL", "3s")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("SQL_AUTO_MIGRATE", "false")
	t.Setenv("CHART_MAX_TRADES", "not-a-number")
	t.Setenv("DEBUGMODE", "True")

	cfg := AppLoad()

	if !reflect.DeepEqual(cfg.Feed.Symbols, []string{"EUR/USD", "GBP/USD"}) {
		t.Errorf("Expected [EUR/USD GBP/USD], got %v", cfg.Feed.Symbols)
	}
	if cfg.Feed.ReconnectJitter != 0.5 {
		t.Errorf("Expected jitter 0.5, got %v", cfg.Feed.ReconnectJitter)
	}
	if cfg.Feed.HeartbeatInterval != 3*time.Second {
		t.Errorf("Expected heartbeat 3s, got %v", cfg.Feed.HeartbeatInterval)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("Expected backend redis, got %q", cfg.Store.Backend)
	}
	if cfg.Store.SQLAutoMigrate {
		t.Error("Expected SQL auto migrate disabled")
	}
	if cfg.Chart.MaxTrades != 200_000 {
		t.Errorf("Expected the default for an invalid number, got %d", cfg.Chart.MaxTrades)
	}
	if !cfg.Server.DebugMode {
		t.Error("Expected debug mode")
	}
}
