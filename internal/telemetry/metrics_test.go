package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SagaStarted("signup")
	m.SagaFinished("signup", "COMPLETED", time.Second)
	m.StepAttempt("signup", "createAccount", ResultFailure, time.Millisecond)
	m.StepAttempt("signup", "createAccount", ResultSuccess, time.Millisecond)
	m.Compensation("signup", "createAccount", ResultSuccess)
	m.NotifyFailed("signup")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SagasStarted.WithLabelValues("signup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SagasFinished.WithLabelValues("signup", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepAttempts.WithLabelValues("signup", "createAccount", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compensations.WithLabelValues("signup", "createAccount", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifyErrors.WithLabelValues("signup")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SagaStarted("x")
		m.SagaFinished("x", "FAILED", 0)
		m.StepAttempt("x", "y", ResultTimeout, 0)
		m.Compensation("x", "y", ResultFailure)
		m.SagaResumed("x")
		m.NotifyFailed("x")
		m.RecoveryTick()
	})
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(nil)
	m.SagaStarted("signup")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sagaflow_sagas_started_total")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(t.Context()))

	var buf bytes.Buffer
	logger := WithSaga(NewLogger("DEBUG", "json", &buf), "signup", "s1")
	ctx := WithLogger(t.Context(), logger)

	FromContext(ctx).Debug("http step call")
	assert.Contains(t, buf.String(), `"saga":"signup"`)
	assert.Contains(t, buf.String(), `"source"`)
}

func TestSetupLogger_Format(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := SetupLogger("INFO", "json", &buf)
	WithSaga(logger, "signup", "s1").Info("saga started")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"saga_id":"s1"`)

	buf.Reset()
	logger = SetupLogger("INFO", "text", &buf)
	logger.Debug("hidden")
	WithStep(logger, "createAccount").Info("step completed")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "step=createAccount")
}

func TestTracer_RecordError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, span := Tracer(tp).Start(t.Context(), "saga.step")
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestSetupTracing_NoEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(t.Context(), "", "sagaflow")
	require.NoError(t, err)
	assert.NoError(t, shutdown(t.Context()))
}
