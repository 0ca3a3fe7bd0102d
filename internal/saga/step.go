package saga

import (
	"context"
	"time"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Значения по умолчанию для шагов.
const (
	// DefaultMaxRetries — число повторов retryable шага, если MaxRetries не задан.
	DefaultMaxRetries = 3

	// DefaultBackoffBase — база экспоненциальной задержки: перед повтором r
	// оркестратор ждёт 2^r * BackoffBase.
	DefaultBackoffBase = time.Second
)

// ExecuteFunc — прямое действие шага.
type ExecuteFunc[P any] func(ctx context.Context, payload P, execCtx *domain.ExecutionContext) error

// CompensateFunc — компенсирующее действие шага.
// cause — ошибка, которая запустила откат.
type CompensateFunc[P any] func(ctx context.Context, payload P, execCtx *domain.ExecutionContext, cause error) error

// Step — шаг саги.
type Step[P any] struct {
	// Name — уникальное в пределах определения имя шага.
	Name string

	// Execute — прямое действие. Обязательно.
	Execute ExecuteFunc[P]

	// Compensate — откат действия. Nil означает, что откатывать нечего.
	Compensate CompensateFunc[P]

	// Retryable — повторять ли шаг при ошибке.
	Retryable bool

	// MaxRetries — число повторов после первой попытки.
	// Для retryable шага значение <= 0 заменяется на DefaultMaxRetries.
	MaxRetries int

	// Timeout — ограничение на одну попытку. 0 — без ограничения.
	Timeout time.Duration

	// BackoffBase — база задержки между повторами (default: 1s).
	BackoffBase time.Duration
}

// attempts возвращает общее число попыток шага.
func (s *Step[P]) attempts() int {
	if !s.Retryable {
		return 1
	}
	retries := s.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return retries + 1
}

// backoff возвращает задержку перед повтором retry (1, 2, ...).
func (s *Step[P]) backoff(retry int) time.Duration {
	base := s.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	return base << retry
}
