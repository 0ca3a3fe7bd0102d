package repo

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// MemoryStore — хранилище в памяти процесса.
//
// Подходит для тестов и одиночных запусков CLI. Записи копируются
// при сохранении и чтении, поэтому вызывающий код не может изменить
// сохранённое состояние.
type MemoryStore struct {
	records *xsync.MapOf[string, *domain.Record]
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: xsync.NewMapOf[string, *domain.Record](),
	}
}

// Persist сохраняет копию записи.
func (s *MemoryStore) Persist(ctx context.Context, rec *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	cp := rec.Clone()
	cp.UpdatedAt = updatedAt(rec)
	s.records.Store(rec.ID, cp)
	return nil
}

// Load возвращает копию записи.
func (s *MemoryStore) Load(ctx context.Context, sagaID string) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.records.Load(sagaID)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// ListUnfinished возвращает незавершённые саги, не обновлявшиеся с before.
func (s *MemoryStore) ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.Record
	s.records.Range(func(_ string, rec *domain.Record) bool {
		if rec.Status.IsUnfinished() && rec.UpdatedAt.Before(before) {
			records = append(records, *rec.Clone())
		}
		return true
	})

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})

	if limit = limitOrDefault(limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Len возвращает число записей.
func (s *MemoryStore) Len() int {
	return s.records.Size()
}

// Close ничего не делает.
func (s *MemoryStore) Close() error {
	return nil
}
