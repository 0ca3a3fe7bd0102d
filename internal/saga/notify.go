package saga

import (
	"context"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Notifier публикует события жизненного цикла саги.
//
// Публикация best-effort: ошибки логируются и не влияют на сагу.
type Notifier interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// NotifierFunc — адаптер функции к Notifier.
type NotifierFunc func(ctx context.Context, ev domain.Event) error

// Publish вызывает f.
func (f NotifierFunc) Publish(ctx context.Context, ev domain.Event) error {
	return f(ctx, ev)
}

// notify публикует событие, если Notifier настроен.
func (o *Orchestrator[P]) notify(ctx context.Context, x *execution[P], kind domain.EventKind, step string, cause error) {
	if o.notifier == nil {
		return
	}

	ev := domain.NewEvent(kind, o.def.name, x.rec.ID)
	ev.Step = step
	ev.Payload = x.rec.Payload
	ev.Context = x.ec.Clone()
	if cause != nil {
		ev.Error = cause.Error()
	}

	if err := o.notifier.Publish(ctx, ev); err != nil {
		x.logger.Warn("failed to publish event", "event", ev.Type, "error", err)
		o.metrics.NotifyFailed(o.def.name)
	}
}
