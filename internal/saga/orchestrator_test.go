package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

func TestNewDefinition_Validation(t *testing.T) {
	rec := &recorder{}

	tests := []struct {
		name    string
		saga    string
		steps   []Step[order]
		wantErr error
	}{
		{"empty saga name", "", []Step[order]{okStep(rec, "a")}, ErrEmptyName},
		{"no steps", "s", nil, ErrNoSteps},
		{"empty step name", "s", []Step[order]{okStep(rec, "")}, ErrEmptyName},
		{"duplicate step", "s", []Step[order]{okStep(rec, "a"), okStep(rec, "a")}, ErrDuplicateStep},
		{"no execute", "s", []Step[order]{{Name: "a"}}, ErrNoExecute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinition(tt.saga, tt.steps, Hooks[order]{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDefinition_Lookup(t *testing.T) {
	rec := &recorder{}
	steps := []Step[order]{okStep(rec, "a"), okStep(rec, "b")}
	def := mustDefinition("s", steps...)

	// изменение исходного слайса не влияет на определение
	steps[0].Name = "changed"

	assert.Equal(t, "s", def.Name())
	assert.Equal(t, 2, def.Len())
	assert.Equal(t, []string{"a", "b"}, def.StepNames())

	step, ok := def.Step("b")
	require.True(t, ok)
	assert.Equal(t, "b", step.Name)

	_, ok = def.Step("missing")
	assert.False(t, ok)
}

func TestNew_RequiresStore(t *testing.T) {
	def := mustDefinition("s", okStep(&recorder{}, "a"))

	_, err := New(def, Config{})
	assert.ErrorIs(t, err, ErrNoStore)

	_, err = New[order](nil, Config{Store: newMemStore()})
	assert.ErrorIs(t, err, ErrNilDefinition)
}

func TestExecute_Success(t *testing.T) {
	rec := &recorder{}
	store := newMemStore()

	var hookCalled bool
	def, err := NewDefinition("checkout",
		[]Step[order]{okStep(rec, "a"), okStep(rec, "b"), okStep(rec, "c")},
		Hooks[order]{
			OnSuccess: func(_ context.Context, p order, ec *domain.ExecutionContext) error {
				hookCalled = true
				assert.Equal(t, "o-1", p.ID)
				assert.Equal(t, []string{"a", "b", "c"}, ec.CompletedSteps)
				return nil
			},
		})
	require.NoError(t, err)

	orch := mustOrchestrator(def, store, rec)
	got, err := orch.Execute(t.Context(), order{ID: "o-1", Amount: 10}, &Seed{SagaID: "saga-1"})
	require.NoError(t, err)

	assert.Equal(t, "saga-1", got.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "c", got.CurrentStep)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Calls())
	assert.True(t, hookCalled)

	stored := store.get("saga-1")
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.JSONEq(t, `{"id":"o-1","amount":10}`, string(stored.Payload))

	statuses := store.statuses()
	assert.Equal(t, domain.StatusPending, statuses[0])
	assert.Equal(t, domain.StatusCompleted, statuses[len(statuses)-1])

	assert.Equal(t, []string{
		"saga.checkout.step.completed",
		"saga.checkout.step.completed",
		"saga.checkout.step.completed",
		"saga.checkout.completed",
	}, rec.EventTypes())
	assert.False(t, orch.IsActive("saga-1"))
}

func TestExecute_GeneratesIDsAndSeeds(t *testing.T) {
	store := newMemStore()
	def := mustDefinition("s", Step[order]{
		Name: "a",
		Execute: func(_ context.Context, _ order, ec *domain.ExecutionContext) error {
			assert.Equal(t, "u-1", ec.UserID)
			assert.Equal(t, "org-1", ec.OrganizationID)
			assert.Equal(t, "web", ec.GetString("source"))
			ec.Set("account_id", "acc-1")
			return nil
		},
	})

	got, err := mustOrchestrator(def, store, nil).Execute(t.Context(), order{}, &Seed{
		UserID:         "u-1",
		OrganizationID: "org-1",
		Metadata:       map[string]any{"source": "web"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)

	ec := &domain.ExecutionContext{}
	require.NoError(t, xjson.Unmarshal(store.get(got.ID).Context, ec))
	assert.Equal(t, got.ID, ec.SagaID)
	assert.NotEmpty(t, ec.CorrelationID)
	assert.Equal(t, "acc-1", ec.GetString("account_id"))
}

func TestExecute_CompensatesInReverseOrder(t *testing.T) {
	rec := &recorder{}
	store := newMemStore()

	var hookErr error
	def, err := NewDefinition("checkout",
		[]Step[order]{okStep(rec, "a"), okStep(rec, "b"), failStep(rec, "c", errBoom)},
		Hooks[order]{
			OnFailure: func(_ context.Context, _ order, _ *domain.ExecutionContext, err error) error {
				hookErr = err
				return errors.New("hook errors are ignored")
			},
		})
	require.NoError(t, err)

	got, err := mustOrchestrator(def, store, rec).Execute(t.Context(), order{ID: "o-1"}, &Seed{SagaID: "s-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, hookErr, errBoom)

	assert.Equal(t, []string{"a", "b", "c", "undo:b", "undo:a"}, rec.Calls())
	assert.Equal(t, domain.StatusCompensated, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, "boom", got.Error)

	ec := &domain.ExecutionContext{}
	require.NoError(t, xjson.Unmarshal(store.get("s-1").Context, ec))
	assert.Equal(t, "c", ec.FailedStep)
	assert.Equal(t, []string{"a", "b"}, ec.CompletedSteps)
	assert.Equal(t, []string{"b", "a"}, ec.CompensatedSteps)

	assert.Contains(t, store.statuses(), domain.StatusCompensating)
	assert.Equal(t, []string{
		"saga.checkout.step.completed",
		"saga.checkout.step.completed",
		"saga.checkout.step.compensated",
		"saga.checkout.step.compensated",
		"saga.checkout.failed",
	}, rec.EventTypes())
}

func TestExecute_CompensationIsBestEffort(t *testing.T) {
	rec := &recorder{}

	b := okStep(rec, "b")
	b.Compensate = func(_ context.Context, _ order, _ *domain.ExecutionContext, _ error) error {
		rec.add("undo:b")
		return errors.New("cannot undo b")
	}
	c := okStep(rec, "c")
	c.Compensate = func(_ context.Context, _ order, _ *domain.ExecutionContext, _ error) error {
		rec.add("undo:c")
		panic("compensation panic")
	}

	def := mustDefinition("s", okStep(rec, "a"), b, c, failStep(rec, "d", errBoom))
	got, err := mustOrchestrator(def, newMemStore(), nil).Execute(t.Context(), order{}, nil)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.StatusCompensated, got.Status)
	assert.Equal(t, []string{"a", "b", "c", "d", "undo:c", "undo:b", "undo:a"}, rec.Calls())
}

func TestExecute_RetryExhaustion(t *testing.T) {
	var mu sync.Mutex
	var attempts []time.Time

	step := Step[order]{
		Name: "flaky",
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			mu.Lock()
			attempts = append(attempts, time.Now())
			mu.Unlock()
			return errBoom
		},
		Retryable:   true,
		MaxRetries:  2,
		BackoffBase: 10 * time.Millisecond,
	}

	got, err := mustOrchestrator(mustDefinition("s", step), newMemStore(), nil).
		Execute(t.Context(), order{}, nil)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.StatusCompensated, got.Status)
	require.Len(t, attempts, 3)

	// задержки 2^1*base и 2^2*base
	first := attempts[1].Sub(attempts[0])
	second := attempts[2].Sub(attempts[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
}

func TestExecute_RetryThenSuccess(t *testing.T) {
	calls := 0
	step := Step[order]{
		Name: "flaky",
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		},
		Retryable:   true,
		BackoffBase: time.Millisecond,
	}

	got, err := mustOrchestrator(mustDefinition("s", step), newMemStore(), nil).
		Execute(t.Context(), order{}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 3, calls)
}

func TestExecute_NotRetryableRunsOnce(t *testing.T) {
	calls := 0
	step := Step[order]{
		Name: "once",
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			calls++
			return errBoom
		},
		MaxRetries: 5,
	}

	_, err := mustOrchestrator(mustDefinition("s", step), newMemStore(), nil).
		Execute(t.Context(), order{}, nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestStep_Backoff(t *testing.T) {
	s := Step[order]{Retryable: true}
	assert.Equal(t, 4, s.attempts())
	assert.Equal(t, 2*time.Second, s.backoff(1))
	assert.Equal(t, 4*time.Second, s.backoff(2))
	assert.Equal(t, 8*time.Second, s.backoff(3))

	s = Step[order]{Retryable: true, MaxRetries: 2, BackoffBase: time.Millisecond}
	assert.Equal(t, 3, s.attempts())
	assert.Less(t, s.backoff(1), s.backoff(2))

	assert.Equal(t, 1, (&Step[order]{}).attempts())
}

func TestExecute_Timeout(t *testing.T) {
	rec := &recorder{}
	slow := Step[order]{
		Name: "slow",
		Execute: func(ctx context.Context, _ order, _ *domain.ExecutionContext) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
		Timeout: 20 * time.Millisecond,
	}

	start := time.Now()
	got, err := mustOrchestrator(mustDefinition("s", okStep(rec, "a"), slow), newMemStore(), nil).
		Execute(t.Context(), order{}, nil)

	assert.ErrorIs(t, err, ErrStepTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.StatusCompensated, got.Status)
	assert.Equal(t, []string{"a", "undo:a"}, rec.Calls())
}

func TestExecute_TimeoutIgnoredByStep(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	stuck := Step[order]{
		Name: "stuck",
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			<-release
			return nil
		},
		Timeout: 10 * time.Millisecond,
	}

	_, err := mustOrchestrator(mustDefinition("s", stuck), newMemStore(), nil).
		Execute(t.Context(), order{}, nil)
	assert.ErrorIs(t, err, ErrStepTimeout)
}

func TestExecute_StepPanic(t *testing.T) {
	rec := &recorder{}
	bad := Step[order]{
		Name: "bad",
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			panic("unexpected")
		},
	}

	got, err := mustOrchestrator(mustDefinition("s", okStep(rec, "a"), bad), newMemStore(), nil).
		Execute(t.Context(), order{}, nil)
	assert.ErrorIs(t, err, ErrStepPanic)
	assert.Equal(t, domain.StatusCompensated, got.Status)
	assert.Equal(t, []string{"a", "undo:a"}, rec.Calls())
}

func TestExecute_PersistFailure(t *testing.T) {
	rec := &recorder{}
	store := newMemStore()
	storeErr := errors.New("db down")
	store.failOn = func(r *domain.Record) error {
		if r.CurrentStep == "b" {
			return storeErr
		}
		return nil
	}

	got, err := mustOrchestrator(mustDefinition("s", okStep(rec, "a"), okStep(rec, "b")), store, rec).
		Execute(t.Context(), order{}, &Seed{SagaID: "s-1"})

	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// компенсации нет, шаг b не запускался
	assert.Equal(t, []string{"a"}, rec.Calls())
	types := rec.EventTypes()
	assert.Equal(t, "saga.s.failed", types[len(types)-1])
}

func TestExecute_InitialPersistFailure(t *testing.T) {
	rec := &recorder{}
	store := newMemStore()
	store.failOn = func(*domain.Record) error { return errors.New("db down") }

	got, err := mustOrchestrator(mustDefinition("s", okStep(rec, "a")), store, nil).
		Execute(t.Context(), order{}, nil)

	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Empty(t, rec.Calls())
}

func TestExecute_NotifierErrorsIgnored(t *testing.T) {
	n := NotifierFunc(func(context.Context, domain.Event) error {
		return errors.New("broker down")
	})

	got, err := mustOrchestrator(mustDefinition("s", okStep(&recorder{}, "a")), newMemStore(), n).
		Execute(t.Context(), order{}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestExecute_RejectsActiveSaga(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	blocking := Step[order]{
		Name: "block",
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			close(started)
			<-release
			return nil
		},
	}
	orch := mustOrchestrator(mustDefinition("s", blocking), newMemStore(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Execute(context.Background(), order{}, &Seed{SagaID: "dup"})
		done <- err
	}()

	<-started
	assert.True(t, orch.IsActive("dup"))

	_, err := orch.Execute(t.Context(), order{}, &Seed{SagaID: "dup"})
	assert.ErrorIs(t, err, ErrSagaActive)

	_, err = orch.Resume(t.Context(), "dup")
	assert.ErrorIs(t, err, ErrSagaActive)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, orch.IsActive("dup"))
}
