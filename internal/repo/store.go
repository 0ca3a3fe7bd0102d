package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// defaultListLimit — размер выборки ListUnfinished, если limit не задан.
const defaultListLimit = 100

// Backend — хранилище записей саг с выборкой для recovery.
//
// Реализации: SagaRepo (PostgreSQL), SQLiteStore, RedisStore,
// BadgerStore, MemoryStore.
type Backend interface {
	// Persist сохраняет запись (идемпотентный upsert по ID).
	Persist(ctx context.Context, rec *domain.Record) error

	// Load возвращает запись или ErrNotFound.
	Load(ctx context.Context, sagaID string) (*domain.Record, error)

	// ListUnfinished возвращает саги в статусах PENDING, RUNNING,
	// COMPENSATING, не обновлявшиеся с before, старые первыми.
	ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

func validateRecord(rec *domain.Record) error {
	if rec == nil || rec.ID == "" || rec.Name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidRecord)
	}
	return nil
}

func updatedAt(rec *domain.Record) time.Time {
	if rec.UpdatedAt.IsZero() {
		return time.Now()
	}
	return rec.UpdatedAt
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
