package saga

import (
	"context"
	"fmt"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/telemetry"
)

// compensate откатывает выполненные шаги в обратном порядке.
//
// Ошибка или паника одной компенсации логируется, откат продолжается.
// Компенсации не повторяются и не ограничены таймаутом. Уже откаченные
// шаги (CompensatedSteps) пропускаются.
func (o *Orchestrator[P]) compensate(ctx context.Context, x *execution[P], cause error) {
	completed := x.ec.CompletedSteps

	for i := len(completed) - 1; i >= 0; i-- {
		name := completed[i]
		if x.ec.HasCompensated(name) {
			continue
		}

		step, ok := o.def.Step(name)
		if !ok {
			x.logger.Error("completed step not found in definition", "step", name)
			continue
		}

		if err := safeCompensate(ctx, step, x.payload, x.ec, cause); err != nil {
			x.logger.Error("compensation failed", "step", name, "error", err)
			o.metrics.Compensation(o.def.name, name, telemetry.ResultFailure)
			continue
		}

		x.ec.MarkCompensated(name)
		o.metrics.Compensation(o.def.name, name, telemetry.ResultSuccess)
		x.logger.Info("step compensated", "step", name)
		o.notify(ctx, x, domain.EventStepCompensated, name, nil)

		if err := o.persist(ctx, x); err != nil {
			x.logger.Warn("failed to persist compensation progress", "step", name, "error", err)
		}
	}
}

// safeCompensate вызывает Compensate, превращая панику в ошибку.
func safeCompensate[P any](ctx context.Context, step *Step[P], payload P, ec *domain.ExecutionContext, cause error) (err error) {
	if step.Compensate == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStepPanic, step.Name, r)
		}
	}()
	return step.Compensate(ctx, payload, ec, cause)
}
