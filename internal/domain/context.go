package domain

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Sagaflow/internal/xjson"
)

// ExecutionContext — изменяемое состояние одного выполнения саги.
//
// Создаётся заново на каждый запуск (или восстанавливается из Record при
// возобновлении) и не разделяется между выполнениями. Шаги обмениваются
// данными через метаданные: Get/Set.
//
// После восстановления из JSON числа в метаданных приходят как float64.
type ExecutionContext struct {
	// SagaID — идентификатор выполнения.
	SagaID string

	// CorrelationID — сквозной идентификатор для трассировки между сервисами.
	CorrelationID string

	// UserID — идентификатор пользователя (опционально).
	UserID string

	// OrganizationID — идентификатор организации (опционально).
	OrganizationID string

	// CompletedSteps — успешно выполненные шаги в порядке выполнения.
	CompletedSteps []string

	// CompensatedSteps — шаги, компенсация которых прошла успешно.
	CompensatedSteps []string

	// FailedStep — шаг, на котором сага упала.
	FailedStep string

	// Error — текст ошибки упавшего шага.
	Error string

	mu       sync.RWMutex
	metadata map[string]any
}

// NewExecutionContext создаёт контекст. Пустые идентификаторы генерируются.
func NewExecutionContext(sagaID, correlationID string) *ExecutionContext {
	if sagaID == "" {
		sagaID = uuid.NewString()
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return &ExecutionContext{
		SagaID:        sagaID,
		CorrelationID: correlationID,
		metadata:      make(map[string]any),
	}
}

// Get возвращает значение метаданных по ключу.
func (c *ExecutionContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// GetString возвращает строковое значение метаданных или "".
func (c *ExecutionContext) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// Set записывает значение метаданных.
func (c *ExecutionContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		c.metadata = make(map[string]any)
	}
	c.metadata[key] = value
}

// Metadata возвращает копию метаданных.
func (c *ExecutionContext) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// MarkCompleted добавляет шаг в CompletedSteps.
func (c *ExecutionContext) MarkCompleted(step string) {
	c.CompletedSteps = append(c.CompletedSteps, step)
}

// HasCompleted проверяет, выполнен ли шаг.
func (c *ExecutionContext) HasCompleted(step string) bool {
	return slices.Contains(c.CompletedSteps, step)
}

// MarkCompensated добавляет шаг в CompensatedSteps.
func (c *ExecutionContext) MarkCompensated(step string) {
	c.CompensatedSteps = append(c.CompensatedSteps, step)
}

// HasCompensated проверяет, откачен ли шаг.
func (c *ExecutionContext) HasCompensated(step string) bool {
	return slices.Contains(c.CompensatedSteps, step)
}

// Fail фиксирует упавший шаг и ошибку.
func (c *ExecutionContext) Fail(step string, err error) {
	c.FailedStep = step
	if err != nil {
		c.Error = err.Error()
	}
}

// Clone возвращает снимок контекста. Значения метаданных копируются поверхностно.
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return nil
	}
	return &ExecutionContext{
		SagaID:           c.SagaID,
		CorrelationID:    c.CorrelationID,
		UserID:           c.UserID,
		OrganizationID:   c.OrganizationID,
		CompletedSteps:   slices.Clone(c.CompletedSteps),
		CompensatedSteps: slices.Clone(c.CompensatedSteps),
		FailedStep:       c.FailedStep,
		Error:            c.Error,
		metadata:         c.Metadata(),
	}
}

// executionContextJSON — формат хранения ExecutionContext.
type executionContextJSON struct {
	SagaID           string         `json:"saga_id"`
	CorrelationID    string         `json:"correlation_id"`
	UserID           string         `json:"user_id,omitempty"`
	OrganizationID   string         `json:"organization_id,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CompletedSteps   []string       `json:"completed_steps"`
	CompensatedSteps []string       `json:"compensated_steps,omitempty"`
	FailedStep       string         `json:"failed_step,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// MarshalJSON реализует json.Marshaler.
func (c *ExecutionContext) MarshalJSON() ([]byte, error) {
	completed := c.CompletedSteps
	if completed == nil {
		completed = []string{}
	}
	return xjson.Marshal(executionContextJSON{
		SagaID:           c.SagaID,
		CorrelationID:    c.CorrelationID,
		UserID:           c.UserID,
		OrganizationID:   c.OrganizationID,
		Metadata:         c.Metadata(),
		CompletedSteps:   completed,
		CompensatedSteps: c.CompensatedSteps,
		FailedStep:       c.FailedStep,
		Error:            c.Error,
	})
}

// UnmarshalJSON реализует json.Unmarshaler.
func (c *ExecutionContext) UnmarshalJSON(data []byte) error {
	var raw executionContextJSON
	if err := xjson.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.SagaID = raw.SagaID
	c.CorrelationID = raw.CorrelationID
	c.UserID = raw.UserID
	c.OrganizationID = raw.OrganizationID
	c.CompletedSteps = raw.CompletedSteps
	c.CompensatedSteps = raw.CompensatedSteps
	c.FailedStep = raw.FailedStep
	c.Error = raw.Error
	c.metadata = raw.Metadata
	if c.metadata == nil {
		c.metadata = make(map[string]any)
	}
	return nil
}
