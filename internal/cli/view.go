package cli

import (
	"time"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// recordView — запись саги с раскрытым контекстом выполнения (для --json).
type recordView struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Status      domain.Status            `json:"status"`
	Payload     xjson.RawMessage         `json:"payload,omitempty"`
	Context     *domain.ExecutionContext `json:"context,omitempty"`
	CurrentStep string                   `json:"current_step,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Error       string                   `json:"error,omitempty"`
}

// newRecordView раскрывает контекст записи.
// Контекст, который не удалось разобрать, опускается.
func newRecordView(rec *domain.Record) recordView {
	var ec *domain.ExecutionContext
	if len(rec.Context) > 0 {
		ec = new(domain.ExecutionContext)
		if err := xjson.Unmarshal(rec.Context, ec); err != nil {
			ec = nil
		}
	}

	return recordView{
		ID:          rec.ID,
		Name:        rec.Name,
		Status:      rec.Status,
		Payload:     rec.Payload,
		Context:     ec,
		CurrentStep: rec.CurrentStep,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		UpdatedAt:   rec.UpdatedAt,
		Error:       rec.Error,
	}
}
