// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// DatabaseURL selects PostgreSQL. Empty runs against the in-memory store.
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// RedisAddr enables card action publishing. Empty disables it.
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	HistorianQueue     string        `env:"HISTORIAN_QUEUE_NAME" envDefault:"songdecks_actions"`
	HistorianBatchSize int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlush     time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`
	InactivityTimeout  time.Duration `env:"GAME_INACTIVITY_TIMEOUT" envDefault:"6h"`
	SweepSchedule      string        `env:"GAME_SWEEP_SCHEDULE" envDefault:"@every 5m"`

	TokenExpire    time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`
	PrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	PublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH"`

	LoginRatePerMin int      `env:"LOGIN_RATE_PER_MIN" envDefault:"10"`
	CORSOrigins     []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	SecureCookies   bool     `env:"SECURE_COOKIES"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.HistorianBatchSize <= 0 {
		return Config{}, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + strings.TrimPrefix(c.Port, ":") }

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
