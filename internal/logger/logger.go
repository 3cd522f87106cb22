// Package logger builds the service's logrus logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and an optional rotating log file.
type Config struct {
	// Level is a logrus level name; unknown names fall back to info.
	Level string
	// Format is "text" or "json".
	Format string
	// File, when set, receives a copy of every line, rotated by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a logger writing to stdout and, when cfg.File is set, to a
// rotating file as well. The returned closer releases the file.
func New(cfg Config) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if cfg.File == "" {
		logger.SetOutput(os.Stdout)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 10),
		MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return logger, file, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
