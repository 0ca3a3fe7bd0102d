package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/telemetry"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// Config — конфигурация Orchestrator.
type Config struct {
	// Store — хранилище записей. Обязательно.
	Store Store

	// Notifier — получатель событий жизненного цикла (опционально).
	Notifier Notifier

	// Logger (default: slog.Default()).
	Logger *slog.Logger

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics

	// TracerProvider (default: глобальный провайдер otel).
	TracerProvider trace.TracerProvider
}

// Seed — начальные значения контекста выполнения.
// Пустые SagaID и CorrelationID генерируются.
type Seed struct {
	SagaID         string
	CorrelationID  string
	UserID         string
	OrganizationID string
	Metadata       map[string]any
}

// Orchestrator выполняет сагу одного определения.
//
// Каждый вызов Execute или Resume — независимая последовательная задача.
// Кроме хранилища, вызовы разделяют только набор активных ID: одна и та же
// сага не может выполняться дважды одновременно в одном процессе.
type Orchestrator[P any] struct {
	def      *Definition[P]
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer

	// Active sagas — ID саг в процессе выполнения
	active *xsync.MapOf[string, struct{}]
}

// New создаёт Orchestrator для определения def.
func New[P any](def *Definition[P], cfg Config) (*Orchestrator[P], error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if cfg.Store == nil {
		return nil, ErrNoStore
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator[P]{
		def:      def,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		logger:   logger,
		metrics:  cfg.Metrics,
		tracer:   telemetry.Tracer(cfg.TracerProvider),
		active:   xsync.NewMapOf[string, struct{}](),
	}, nil
}

// Name возвращает имя определения.
func (o *Orchestrator[P]) Name() string {
	return o.def.name
}

// execution — состояние одного вызова Execute/Resume.
type execution[P any] struct {
	rec     *domain.Record
	payload P
	ec      *domain.ExecutionContext
	logger  *slog.Logger
}

// Execute запускает новое выполнение саги.
//
// Возвращает итоговую запись. При ошибке шага запись в статусе COMPENSATED,
// а ошибка оборачивает исходную ошибку шага. При ошибке инфраструктуры
// запись в статусе FAILED.
func (o *Orchestrator[P]) Execute(ctx context.Context, payload P, seed *Seed) (*domain.Record, error) {
	if seed == nil {
		seed = &Seed{}
	}

	ec := domain.NewExecutionContext(seed.SagaID, seed.CorrelationID)
	ec.UserID = seed.UserID
	ec.OrganizationID = seed.OrganizationID
	for k, v := range seed.Metadata {
		ec.Set(k, v)
	}

	if !o.acquire(ec.SagaID) {
		return nil, fmt.Errorf("%w: %s", ErrSagaActive, ec.SagaID)
	}
	defer o.release(ec.SagaID)

	payloadJSON, err := xjson.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %w", ErrDecode, err)
	}

	ctx, span := o.tracer.Start(ctx, "saga.execute", trace.WithAttributes(
		attribute.String("saga.name", o.def.name),
		attribute.String("saga.id", ec.SagaID),
		attribute.String("saga.correlation_id", ec.CorrelationID),
	))
	defer span.End()

	x := &execution[P]{
		rec: &domain.Record{
			ID:        ec.SagaID,
			Name:      o.def.name,
			Status:    domain.StatusPending,
			Payload:   payloadJSON,
			StartedAt: time.Now(),
		},
		payload: payload,
		ec:      ec,
		logger:  telemetry.WithSaga(o.logger, o.def.name, ec.SagaID),
	}
	ctx = telemetry.WithLogger(ctx, x.logger)

	o.metrics.SagaStarted(o.def.name)
	x.logger.Info("saga started", "correlation_id", ec.CorrelationID)

	if err := o.persist(ctx, x); err != nil {
		return o.fail(ctx, span, x, err)
	}

	x.rec.MarkRunning()
	return o.run(ctx, span, x)
}

// run выполняет шаги, которых ещё нет в CompletedSteps, в порядке определения.
func (o *Orchestrator[P]) run(ctx context.Context, span trace.Span, x *execution[P]) (*domain.Record, error) {
	for i := range o.def.steps {
		step := &o.def.steps[i]
		if x.ec.HasCompleted(step.Name) {
			continue
		}

		x.rec.CurrentStep = step.Name
		if err := o.persist(ctx, x); err != nil {
			return o.fail(ctx, span, x, err)
		}

		if err := o.runStep(ctx, x, step); err != nil {
			return o.abort(ctx, span, x, step.Name, err)
		}

		x.ec.MarkCompleted(step.Name)
		x.logger.Info("step completed", "step", step.Name)
		o.notify(ctx, x, domain.EventStepCompleted, step.Name, nil)

		if err := o.persist(ctx, x); err != nil {
			return o.fail(ctx, span, x, err)
		}
	}

	return o.complete(ctx, span, x)
}

// complete переводит сагу в COMPLETED.
func (o *Orchestrator[P]) complete(ctx context.Context, span trace.Span, x *execution[P]) (*domain.Record, error) {
	x.rec.MarkCompleted()
	if err := o.persist(ctx, x); err != nil {
		return o.fail(ctx, span, x, err)
	}

	if hook := o.def.hooks.OnSuccess; hook != nil {
		o.callHook(x, "on_success", func() error { return hook(ctx, x.payload, x.ec) })
	}

	o.finished(x)
	o.notify(ctx, x, domain.EventCompleted, "", nil)
	x.logger.Info("saga completed", "duration", x.rec.Duration())

	return x.rec.Clone(), nil
}

// abort переводит сагу в COMPENSATING после ошибки шага и откатывает её.
func (o *Orchestrator[P]) abort(ctx context.Context, span trace.Span, x *execution[P], stepName string, cause error) (*domain.Record, error) {
	x.logger.Warn("step failed, compensating", "step", stepName, "error", cause)

	x.ec.Fail(stepName, cause)
	x.rec.MarkCompensating(cause)

	cctx := context.WithoutCancel(ctx)
	if err := o.persist(cctx, x); err != nil {
		x.logger.Error("failed to persist compensating status", "error", err)
	}

	return o.finishCompensation(cctx, span, x, fmt.Errorf("saga %s: step %s: %w", o.def.name, stepName, cause))
}

// finishCompensation откатывает выполненные шаги и переводит сагу в COMPENSATED.
// Возвращает err, дополненный ошибкой сохранения, если она была.
func (o *Orchestrator[P]) finishCompensation(ctx context.Context, span trace.Span, x *execution[P], err error) (*domain.Record, error) {
	o.compensate(ctx, x, err)

	x.rec.MarkCompensated()
	if perr := o.persist(ctx, x); perr != nil {
		x.logger.Error("failed to persist compensated status", "error", perr)
		err = errors.Join(err, perr)
	}

	if hook := o.def.hooks.OnFailure; hook != nil {
		o.callHook(x, "on_failure", func() error { return hook(ctx, x.payload, x.ec, err) })
	}

	o.finished(x)
	o.notify(ctx, x, domain.EventFailed, x.ec.FailedStep, err)
	telemetry.RecordError(span, err)
	x.logger.Info("saga compensated", "failed_step", x.ec.FailedStep, "duration", x.rec.Duration())

	return x.rec.Clone(), err
}

// fail переводит сагу в FAILED без компенсации.
func (o *Orchestrator[P]) fail(ctx context.Context, span trace.Span, x *execution[P], err error) (*domain.Record, error) {
	ctx = context.WithoutCancel(ctx)

	x.rec.MarkFailed(err)
	if perr := o.persist(ctx, x); perr != nil {
		x.logger.Warn("failed to persist failed status", "error", perr)
	}

	o.finished(x)
	o.notify(ctx, x, domain.EventFailed, "", err)
	telemetry.RecordError(span, err)
	x.logger.Error("saga failed", "error", err)

	return x.rec.Clone(), fmt.Errorf("saga %s: %w", o.def.name, err)
}

// persist сериализует контекст и сохраняет запись.
func (o *Orchestrator[P]) persist(ctx context.Context, x *execution[P]) error {
	if x.ec != nil {
		data, err := xjson.Marshal(x.ec)
		if err != nil {
			return fmt.Errorf("%w: encode context: %w", ErrPersist, err)
		}
		x.rec.Context = data
	}
	x.rec.UpdatedAt = time.Now()

	if err := o.store.Persist(ctx, x.rec); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// callHook вызывает хук, логируя ошибку или панику.
func (o *Orchestrator[P]) callHook(x *execution[P], name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("hook panicked", "hook", name, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		x.logger.Warn("hook failed", "hook", name, "error", err)
	}
}

func (o *Orchestrator[P]) finished(x *execution[P]) {
	o.metrics.SagaFinished(o.def.name, x.rec.Status.String(), x.rec.Duration())
}

// --- Active sagas ---

func (o *Orchestrator[P]) acquire(sagaID string) bool {
	_, loaded := o.active.LoadOrStore(sagaID, struct{}{})
	return !loaded
}

func (o *Orchestrator[P]) release(sagaID string) {
	o.active.Delete(sagaID)
}

// IsActive проверяет, выполняется ли сага в этом процессе.
func (o *Orchestrator[P]) IsActive(sagaID string) bool {
	_, ok := o.active.Load(sagaID)
	return ok
}
