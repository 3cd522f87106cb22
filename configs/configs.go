// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	Feed   FeedConfig
	Chart  ChartConfig
	Store  StoreConfig
	Kafka  KafkaConfig
	Server ServerConfig
	Log    LogConfig
}

// FeedConfig holds the websocket trade feed settings.
type FeedConfig struct {
	// URL is the websocket endpoint. The feed is disabled when empty.
	URL string

	// Symbols are subscribed on connect (comma-separated in env).
	Symbols []string

	FlushInterval        time.Duration
	HeartbeatInterval    time.Duration
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	ReconnectJitter      float64
	MaxReconnectAttempts int

	// WriteRate limits outbound messages per second.
	WriteRate float64
}

// ChartConfig holds the chart instance settings.
type ChartConfig struct {
	ID               string
	Width            int
	Height           int
	PixelRatio       float64
	MaxTrades        int
	BaseTickSize     float64
	TimeframeMinutes int

	// ThemesFile is an optional YAML file of extra themes.
	ThemesFile string
}

// StoreConfig selects the drawing and settings store.
type StoreConfig struct {
	// Backend is one of memory, file, redis, sql.
	Backend string

	Dir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SQLDSN         string
	SQLAutoMigrate bool

	Debounce time.Duration
}

// KafkaConfig holds the candle export settings and the optional trade
// topic. Export is disabled when Broker is empty; the trade source is
// disabled when TradeTopic is empty.
type KafkaConfig struct {
	Broker      string
	CandleTopic string

	TradeTopic   string
	GroupID      string
	BatchSize    int
	BatchTimeout time.Duration
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port      string
	DebugMode bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		Feed: FeedConfig{
			URL:                  getEnv("FEED_URL", ""),
			Symbols:              getEnvList("FEED_SYMBOLS"),
			FlushInterval:        getEnvDuration("FEED_FLUSH_INTERVAL", 100*time.Millisecond),
			HeartbeatInterval:    getEnvDuration("FEED_HEARTBEAT_INTERVAL", 15*time.Second),
			ReconnectBase:        getEnvDuration("FEED_RECONNECT_BASE", time.Second),
			ReconnectMax:         getEnvDuration("FEED_RECONNECT_MAX", 30*time.Second),
			ReconnectJitter:      getEnvFloat("FEED_RECONNECT_JITTER", 0.2),
			MaxReconnectAttempts: getEnvInt("FEED_MAX_RECONNECT_ATTEMPTS", 10),
			WriteRate:            getEnvFloat("FEED_WRITE_RATE", 5),
		},
		Chart: ChartConfig{
			ID:               getEnv("CHART_ID", "default"),
			Width:            getEnvInt("CHART_WIDTH", 1280),
			Height:           getEnvInt("CHART_HEIGHT", 720),
			PixelRatio:       getEnvFloat("CHART_PIXEL_RATIO", 1),
			MaxTrades:        getEnvInt("CHART_MAX_TRADES", 200_000),
			BaseTickSize:     getEnvFloat("CHART_BASE_TICK", 0.0001),
			TimeframeMinutes: getEnvInt("CHART_TIMEFRAME", 1),
			ThemesFile:       getEnv("CHART_THEMES_FILE", ""),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			Dir:            getEnv("STORE_DIR", "data"),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvInt("REDIS_DB", 0),
			SQLDSN:         getEnv("SQL_DSN", "user:password@tcp(localhost:3306)/footprint?parseTime=true"),
			SQLAutoMigrate: getEnvBool("SQL_AUTO_MIGRATE", true),
			Debounce:       getEnvDuration("STORE_DEBOUNCE", 500*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Broker:      getEnv("KAFKA_BROKER", ""),
			CandleTopic: getEnv("KAFKA_CANDLE_TOPIC", "footprint_candles"),

			TradeTopic:   getEnv("KAFKA_TRADE_TOPIC", ""),
			GroupID:      getEnv("KAFKA_GROUP_ID", "footprint"),
			BatchSize:    getEnvInt("KAFKA_BATCH_SIZE", 500),
			BatchTimeout: getEnvDuration("KAFKA_BATCH_TIMEOUT", 250*time.Millisecond),
		},
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8080"),
			DebugMode: getEnvBool("DEBUGMODE", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
		},
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool accepts the strconv.ParseBool forms ("1", "true", "True", ...).
func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
