package steps

import "errors"

// Ошибки шагов.
var (
	// ErrInvalidRequest — построитель вернул некорректный запрос.
	ErrInvalidRequest = errors.New("invalid step request")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")
)
