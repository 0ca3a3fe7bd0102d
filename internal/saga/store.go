package saga

import (
	"context"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Store — порт хранилища записей саг.
//
// Persist — идемпотентный upsert по Record.ID. Load возвращает
// domain.ErrNotFound, если записи нет. Реализация должна допускать
// конкурентные Persist для разных ID.
type Store interface {
	Persist(ctx context.Context, rec *domain.Record) error
	Load(ctx context.Context, sagaID string) (*domain.Record, error)
}

// Resumer — сага, которую можно продолжить по ID.
// Orchestrator[P] реализует Resumer для любого P.
type Resumer interface {
	Name() string
	Resume(ctx context.Context, sagaID string) (*domain.Record, error)
}
