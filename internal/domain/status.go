package domain

import "fmt"

// Status — статус выполнения саги.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ COMPENSATING → COMPENSATED
//	(любой) → FAILED (ошибка инфраструктуры, без компенсации)
type Status string

const (
	// StatusPending — запись создана, шаги ещё не запускались.
	StatusPending Status = "PENDING"

	// StatusRunning — шаги выполняются в прямом порядке.
	StatusRunning Status = "RUNNING"

	// StatusCompensating — шаг упал, идёт откат выполненных шагов.
	StatusCompensating Status = "COMPENSATING"

	// StatusCompensated — откат завершён (ошибки отдельных компенсаций залогированы).
	StatusCompensated Status = "COMPENSATED"

	// StatusCompleted — все шаги выполнены успешно.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed — необработанная ошибка (например, недоступно хранилище).
	StatusFailed Status = "FAILED"
)

// Statuses возвращает все допустимые статусы.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusRunning,
		StatusCompensating,
		StatusCompensated,
		StatusCompleted,
		StatusFailed,
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompensated, StatusFailed:
		return true
	default:
		return false
	}
}

// IsUnfinished возвращает true для саг, которые recovery должен подобрать.
func (s Status) IsUnfinished() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompensating:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление Status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus парсит строку в Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}
