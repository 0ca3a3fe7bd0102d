package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/telemetry"
)

// runStep выполняет шаг с повторами.
//
// Перед повтором r ждёт 2^r * BackoffBase. Таймаут попытки считается
// обычной ошибкой этой попытки. После исчерпания попыток возвращается
// последняя ошибка.
func (o *Orchestrator[P]) runStep(ctx context.Context, x *execution[P], step *Step[P]) error {
	attempts := step.attempts()
	logger := telemetry.WithStep(x.logger, step.Name)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := step.backoff(attempt - 1)
			logger.Debug("retrying step",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(ctx.Err(), lastErr)
			}
		}

		lastErr = o.attempt(ctx, x, step, attempt)
		if lastErr == nil {
			return nil
		}

		logger.Warn("step attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr,
		)
	}

	return lastErr
}

// attempt выполняет одну попытку шага.
func (o *Orchestrator[P]) attempt(ctx context.Context, x *execution[P], step *Step[P], n int) error {
	ctx, span := o.tracer.Start(ctx, "saga.step", trace.WithAttributes(
		attribute.String("saga.name", o.def.name),
		attribute.String("saga.step", step.Name),
		attribute.Int("saga.attempt", n),
	))
	defer span.End()

	ctx = telemetry.WithLogger(ctx, telemetry.WithStep(x.logger, step.Name))

	start := time.Now()
	err := invoke(ctx, step, x.payload, x.ec)

	result := telemetry.ResultSuccess
	switch {
	case errors.Is(err, ErrStepTimeout):
		result = telemetry.ResultTimeout
	case err != nil:
		result = telemetry.ResultFailure
	}
	o.metrics.StepAttempt(o.def.name, step.Name, result, time.Since(start))
	telemetry.RecordError(span, err)

	return err
}

// invoke вызывает Execute шага, ограничивая попытку таймаутом.
//
// При таймауте горутина шага продолжает работать, пока сам шаг не
// отреагирует на отмену контекста.
func invoke[P any](ctx context.Context, step *Step[P], payload P, ec *domain.ExecutionContext) error {
	if step.Timeout <= 0 {
		return safeExecute(ctx, step, payload, ec)
	}

	tctx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeExecute(tctx, step, payload, ec)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return timeoutError(step, err)
		}
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Шаг мог завершиться одновременно с таймером
		select {
		case err := <-done:
			if err == nil {
				return nil
			}
		default:
		}
		return timeoutError(step, nil)
	}
}

func timeoutError[P any](step *Step[P], cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: step %s exceeded %s: %v", ErrStepTimeout, step.Name, step.Timeout, cause)
	}
	return fmt.Errorf("%w: step %s exceeded %s", ErrStepTimeout, step.Name, step.Timeout)
}

// safeExecute вызывает Execute, превращая панику в ошибку.
func safeExecute[P any](ctx context.Context, step *Step[P], payload P, ec *domain.ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStepPanic, step.Name, r)
		}
	}()
	return step.Execute(ctx, payload, ec)
}
