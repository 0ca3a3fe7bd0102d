package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Результаты попыток шагов и компенсаций (значения label result).
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// Metrics — Prometheus метрики движка саг.
//
// Все методы безопасны для nil-получателя: компонент без метрик
// просто ничего не записывает.
type Metrics struct {
	SagasStarted  *prometheus.CounterVec
	SagasFinished *prometheus.CounterVec
	SagaDuration  *prometheus.HistogramVec
	StepAttempts  *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	Compensations *prometheus.CounterVec
	SagasResumed  *prometheus.CounterVec
	NotifyErrors  *prometheus.CounterVec
	RecoveryTicks prometheus.Counter
	gatherer      prometheus.Gatherer
}

// NewDefaultMetrics регистрирует метрики в глобальном реестре Prometheus.
func NewDefaultMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetrics регистрирует метрики в переданном реестре.
// Если registry == nil, создаётся изолированный реестр.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		SagasStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_sagas_started_total",
			Help: "Total sagas started by definition.",
		}, []string{"saga"}),
		SagasFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_sagas_finished_total",
			Help: "Total sagas finished by definition and final status.",
		}, []string{"saga", "status"}),
		SagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagaflow_saga_duration_seconds",
			Help:    "Saga execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"saga", "status"}),
		StepAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_step_attempts_total",
			Help: "Total step attempts by result.",
		}, []string{"saga", "step", "result"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagaflow_step_duration_seconds",
			Help:    "Step attempt duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"saga", "step"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_compensations_total",
			Help: "Total compensations by result.",
		}, []string{"saga", "step", "result"}),
		SagasResumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_sagas_resumed_total",
			Help: "Total resume calls by definition.",
		}, []string{"saga"}),
		NotifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagaflow_notify_errors_total",
			Help: "Total failed lifecycle event publications.",
		}, []string{"saga"}),
		RecoveryTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sagaflow_recovery_ticks_total",
			Help: "Total recovery sweeps.",
		}),
		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.SagasStarted,
		m.SagasFinished,
		m.SagaDuration,
		m.StepAttempts,
		m.StepDuration,
		m.Compensations,
		m.SagasResumed,
		m.NotifyErrors,
		m.RecoveryTicks,
	)

	return m
}

// Handler возвращает HTTP handler для /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SagaStarted учитывает запуск саги.
func (m *Metrics) SagaStarted(saga string) {
	if m == nil {
		return
	}
	m.SagasStarted.WithLabelValues(saga).Inc()
}

// SagaFinished учитывает переход саги в финальный статус.
func (m *Metrics) SagaFinished(saga, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.SagasFinished.WithLabelValues(saga, status).Inc()
	m.SagaDuration.WithLabelValues(saga, status).Observe(d.Seconds())
}

// StepAttempt учитывает одну попытку шага.
func (m *Metrics) StepAttempt(saga, step, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepAttempts.WithLabelValues(saga, step, result).Inc()
	m.StepDuration.WithLabelValues(saga, step).Observe(d.Seconds())
}

// Compensation учитывает вызов компенсации.
func (m *Metrics) Compensation(saga, step, result string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(saga, step, result).Inc()
}

// SagaResumed учитывает вызов Resume.
func (m *Metrics) SagaResumed(saga string) {
	if m == nil {
		return
	}
	m.SagasResumed.WithLabelValues(saga).Inc()
}

// NotifyFailed учитывает неудачную публикацию события.
func (m *Metrics) NotifyFailed(saga string) {
	if m == nil {
		return
	}
	m.NotifyErrors.WithLabelValues(saga).Inc()
}

// RecoveryTick учитывает проход recovery.
func (m *Metrics) RecoveryTick() {
	if m == nil {
		return
	}
	m.RecoveryTicks.Inc()
}
