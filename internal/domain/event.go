package domain

import (
	"time"

	"github.com/shaiso/Sagaflow/internal/xjson"
)

// EventKind — вид события жизненного цикла саги.
type EventKind string

// Виды событий.
const (
	EventStepCompleted   EventKind = "step.completed"
	EventStepCompensated EventKind = "step.compensated"
	EventCompleted       EventKind = "completed"
	EventFailed          EventKind = "failed"
)

// EventType возвращает полное имя события: saga.<name>.<kind>.
func EventType(saga string, kind EventKind) string {
	return "saga." + saga + "." + string(kind)
}

// Event — событие жизненного цикла, публикуемое через Notifier.
type Event struct {
	// Type — полное имя события, например saga.signup.completed.
	Type string `json:"type"`

	// Kind — вид события без имени саги.
	Kind EventKind `json:"kind"`

	// Saga — имя определения саги.
	Saga string `json:"saga"`

	// SagaID — идентификатор выполнения.
	SagaID string `json:"saga_id"`

	// Step — имя шага для событий шагов.
	Step string `json:"step,omitempty"`

	// Payload — входные данные саги.
	Payload xjson.RawMessage `json:"payload,omitempty"`

	// Context — снимок контекста на момент события.
	Context *ExecutionContext `json:"context,omitempty"`

	// Error — текст ошибки для события failed.
	Error string `json:"error,omitempty"`

	// OccurredAt — время события.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent создаёт событие заданного вида.
func NewEvent(kind EventKind, saga, sagaID string) Event {
	return Event{
		Type:       EventType(saga, kind),
		Kind:       kind,
		Saga:       saga,
		SagaID:     sagaID,
		OccurredAt: time.Now(),
	}
}
