package domain

import (
	"time"

	"github.com/shaiso/Sagaflow/internal/xjson"
)

// Record — сохраняемое состояние одного выполнения саги.
//
// Record пишет только оркестратор. Хранилища сохраняют его как есть
// и не интерпретируют Payload и Context.
type Record struct {
	// ID — идентификатор саги (совпадает с ExecutionContext.SagaID).
	ID string `json:"id"`

	// Name — имя определения саги, по которому её можно возобновить.
	Name string `json:"name"`

	// Status — текущий статус выполнения.
	Status Status `json:"status"`

	// Payload — сериализованные входные данные саги.
	Payload xjson.RawMessage `json:"payload"`

	// Context — сериализованный ExecutionContext.
	Context xjson.RawMessage `json:"context"`

	// CurrentStep — шаг, который выполняется (или выполнялся последним).
	// Пусто, пока ни один шаг не запущен.
	CurrentStep string `json:"current_step,omitempty"`

	// StartedAt — время создания записи.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время перехода в финальный статус.
	// Nil, пока сага не завершена.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — текст ошибки, из-за которой сага откатилась или упала.
	Error string `json:"error,omitempty"`

	// UpdatedAt — время последнего сохранения записи.
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если сага ещё не завершена.
func (r *Record) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если сага в финальном статусе.
func (r *Record) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит сагу в статус RUNNING.
func (r *Record) MarkRunning() {
	r.Status = StatusRunning
}

// MarkCompensating переводит сагу в статус COMPENSATING.
func (r *Record) MarkCompensating(cause error) {
	r.Status = StatusCompensating
	if cause != nil {
		r.Error = cause.Error()
	}
}

// MarkCompensated переводит сагу в статус COMPENSATED.
func (r *Record) MarkCompensated() {
	r.finish(StatusCompensated)
}

// MarkCompleted переводит сагу в статус COMPLETED.
func (r *Record) MarkCompleted() {
	r.finish(StatusCompleted)
}

// MarkFailed переводит сагу в статус FAILED.
func (r *Record) MarkFailed(err error) {
	if err != nil {
		r.Error = err.Error()
	}
	r.finish(StatusFailed)
}

func (r *Record) finish(status Status) {
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
}

// Clone возвращает независимую копию записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cp := *r
	cp.Payload = append(xjson.RawMessage(nil), r.Payload...)
	cp.Context = append(xjson.RawMessage(nil), r.Context...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
