package saga

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/telemetry"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// Resume продолжает сагу из сохранённой записи.
//
//   - COMPLETED, COMPENSATED — запись возвращается без изменений.
//   - COMPENSATING — откат доводится до конца (уже откаченные шаги пропускаются).
//   - PENDING, RUNNING, FAILED — выполняются шаги, которых нет в CompletedSteps.
//     Если шаг падает, откатываются все выполненные шаги, включая выполненные
//     до возобновления.
func (o *Orchestrator[P]) Resume(ctx context.Context, sagaID string) (*domain.Record, error) {
	rec, err := o.store.Load(ctx, sagaID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSagaNotFound, sagaID)
		}
		return nil, fmt.Errorf("load saga %s: %w", sagaID, err)
	}

	if rec.Name != o.def.name {
		return nil, fmt.Errorf("%w: %s is %q, not %q", ErrDefinitionMismatch, sagaID, rec.Name, o.def.name)
	}

	if rec.Status == domain.StatusCompleted || rec.Status == domain.StatusCompensated {
		return rec, nil
	}

	if !o.acquire(sagaID) {
		return nil, fmt.Errorf("%w: %s", ErrSagaActive, sagaID)
	}
	defer o.release(sagaID)

	ctx, span := o.tracer.Start(ctx, "saga.resume", trace.WithAttributes(
		attribute.String("saga.name", o.def.name),
		attribute.String("saga.id", sagaID),
		attribute.String("saga.status", rec.Status.String()),
	))
	defer span.End()

	x := &execution[P]{
		rec:    rec,
		logger: telemetry.WithSaga(o.logger, o.def.name, sagaID),
	}
	ctx = telemetry.WithLogger(ctx, x.logger)

	o.metrics.SagaResumed(o.def.name)
	x.logger.Info("saga resumed",
		"status", rec.Status,
		"current_step", rec.CurrentStep,
	)

	// При ошибке разбора x.ec остаётся nil и исходный контекст не перезаписывается
	x.ec, err = decodeContext(rec)
	if err != nil {
		return o.fail(ctx, span, x, err)
	}
	if err := xjson.Unmarshal(rec.Payload, &x.payload); err != nil {
		return o.fail(ctx, span, x, fmt.Errorf("%w: payload: %w", ErrDecode, err))
	}

	if rec.Status == domain.StatusCompensating {
		cause := errors.New(rec.Error)
		if rec.Error == "" {
			cause = errors.New("compensation interrupted")
		}
		return o.finishCompensation(context.WithoutCancel(ctx), span, x, fmt.Errorf("saga %s: step %s: %w", o.def.name, x.ec.FailedStep, cause))
	}

	rec.Error = ""
	rec.CompletedAt = nil
	x.ec.FailedStep = ""
	x.ec.Error = ""
	rec.MarkRunning()

	return o.run(ctx, span, x)
}

// decodeContext восстанавливает ExecutionContext из записи.
func decodeContext(rec *domain.Record) (*domain.ExecutionContext, error) {
	if len(rec.Context) == 0 {
		return domain.NewExecutionContext(rec.ID, ""), nil
	}

	ec := &domain.ExecutionContext{}
	if err := xjson.Unmarshal(rec.Context, ec); err != nil {
		return nil, fmt.Errorf("%w: context: %w", ErrDecode, err)
	}
	if ec.SagaID == "" {
		ec.SagaID = rec.ID
	}
	return ec, nil
}
