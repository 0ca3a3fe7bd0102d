package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/saga"
)

// NewDelay создаёт шаг, который приостанавливает сагу на d.
// Отмена ctx прерывает паузу с ErrStepCancelled.
func NewDelay[P any](name string, d time.Duration) saga.Step[P] {
	return saga.Step[P]{
		Name: name,
		Execute: func(ctx context.Context, _ P, _ *domain.ExecutionContext) error {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrStepCancelled, ctx.Err())
			case <-timer.C:
				return nil
			}
		},
	}
}
