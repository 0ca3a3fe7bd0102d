package repo

import (
	"context"
	"fmt"
)

// Имена хранилищ (значения SAGA_STORE).
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// OpenConfig — параметры выбора и подключения хранилища.
type OpenConfig struct {
	Backend string

	// PostgreSQL
	DSN      string
	MaxConns int32

	// SQLite
	SQLitePath string

	// Redis
	Redis RedisConfig

	// Badger (пустой каталог — база в памяти)
	BadgerDir string
}

// Open открывает хранилище, выбранное в cfg.Backend.
// Для PostgreSQL и SQLite создаётся схема.
func Open(ctx context.Context, cfg OpenConfig) (Backend, error) {
	switch cfg.Backend {
	case BackendPostgres, "":
		pool, err := NewPool(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		r := NewSagaRepo(pool)
		if err := r.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return r, nil

	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)

	case BackendRedis:
		return OpenRedis(ctx, cfg.Redis)

	case BackendBadger:
		return OpenBadger(cfg.BadgerDir)

	case BackendMemory:
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
