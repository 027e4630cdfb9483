package repository

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	gormlogger "gorm.io/gorm/logger"
)

// Config describes the SQLite data file and how the ORM talks to it.
type Config struct {
	Path               string        `env:"SQLITE_REPOSITORY_PATH"                 envDefault:"data.db"`
	BusyTimeout        time.Duration `env:"SQLITE_REPOSITORY_BUSY_TIMEOUT"         envDefault:"5s"`
	JournalMode        string        `env:"SQLITE_REPOSITORY_JOURNAL_MODE"         envDefault:"WAL"`
	ForeignKeys        bool          `env:"SQLITE_REPOSITORY_FOREIGN_KEYS"         envDefault:"true"`
	SlowQueryThreshold time.Duration `env:"SQLITE_REPOSITORY_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	LogLevel           string        `env:"SQLITE_REPOSITORY_LOG_LEVEL"            envDefault:"warn"`
}

// LoadConfigFromEnv reads Config from the environment, applying defaults for
// unset variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN renders the modernc.org/sqlite data source name for the config.
func (c Config) DSN() (string, error) {
	path := strings.TrimSpace(c.Path)
	if path == "" {
		return "", fmt.Errorf("database path is required")
	}

	q := url.Values{}
	if c.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if mode := strings.TrimSpace(c.JournalMode); mode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(mode)))
	}
	if c.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}

	if path != ":memory:" {
		path = filepath.Clean(path)
	}
	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}

func (c Config) gormLogLevel() gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "silent", "off":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
