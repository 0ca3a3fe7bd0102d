// Package config читает конфигурацию процессов Sagaflow из окружения.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/shaiso/Sagaflow/internal/mq"
	"github.com/shaiso/Sagaflow/internal/recovery"
	"github.com/shaiso/Sagaflow/internal/repo"
)

// ErrInvalid — значение конфигурации не прошло проверку.
var ErrInvalid = errors.New("invalid config")

// Config — конфигурация orchestrator и CLI.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Хранилище
	Store         string `env:"SAGA_STORE" envDefault:"postgres"`
	DBURL         string `env:"DB_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"sagaflow.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	BadgerDir     string `env:"BADGER_DIR"`

	// RabbitMQ; пустое значение отключает публикацию событий
	RabbitMQURL string `env:"RABBITMQ_URL"`

	OrchPort int `env:"ORCH_PORT" envDefault:"8082"`

	RecoverySchedule   string        `env:"RECOVERY_SCHEDULE" envDefault:"@every 30s"`
	RecoveryStaleAfter time.Duration `env:"RECOVERY_STALE_AFTER" envDefault:"1m"`
	RecoveryBatchSize  int           `env:"RECOVERY_BATCH_SIZE" envDefault:"100"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"sagaflow"`

	SignupServiceURL string `env:"SIGNUP_SERVICE_URL" envDefault:"http://localhost:8090"`
}

var stores = []string{
	repo.BackendPostgres,
	repo.BackendSQLite,
	repo.BackendRedis,
	repo.BackendBadger,
	repo.BackendMemory,
}

// Load читает конфигурацию из окружения и проверяет её.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые env не может проверить сам.
func (c Config) Validate() error {
	var errs []error

	if !slices.Contains(stores, c.Store) {
		errs = append(errs, fmt.Errorf("%w: SAGA_STORE %q, want one of %v", ErrInvalid, c.Store, stores))
	}
	if err := recovery.ValidateSchedule(c.RecoverySchedule); err != nil {
		errs = append(errs, fmt.Errorf("%w: RECOVERY_SCHEDULE: %w", ErrInvalid, err))
	}
	if c.RecoveryStaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("%w: RECOVERY_STALE_AFTER must be positive", ErrInvalid))
	}
	if c.OrchPort <= 0 || c.OrchPort > 65535 {
		errs = append(errs, fmt.Errorf("%w: ORCH_PORT %d", ErrInvalid, c.OrchPort))
	}

	return errors.Join(errs...)
}

// StoreConfig возвращает параметры открытия хранилища.
// Пустой DB_URL заменяется на repo.DefaultDSN.
func (c Config) StoreConfig() repo.OpenConfig {
	dsn := c.DBURL
	if dsn == "" {
		dsn = repo.DefaultDSN
	}
	return repo.OpenConfig{
		Backend:    c.Store,
		DSN:        dsn,
		MaxConns:   c.DBMaxConns,
		SQLitePath: c.SQLitePath,
		Redis: repo.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		},
		BadgerDir: c.BadgerDir,
	}
}

// MQURL возвращает адрес RabbitMQ или mq.DefaultURL, если orFallback.
func (c Config) MQURL(orFallback bool) string {
	if c.RabbitMQURL == "" && orFallback {
		return mq.DefaultURL()
	}
	return c.RabbitMQURL
}
