package saga

import (
	"errors"
	"fmt"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Ошибки определения саги.
var (
	// ErrEmptyName — у саги или шага пустое имя.
	ErrEmptyName = errors.New("empty name")

	// ErrNoSteps — определение без шагов.
	ErrNoSteps = errors.New("saga has no steps")

	// ErrDuplicateStep — имена шагов не уникальны.
	ErrDuplicateStep = errors.New("duplicate step name")

	// ErrNoExecute — у шага нет прямого действия.
	ErrNoExecute = errors.New("step has no execute function")
)

// Ошибки выполнения.
var (
	// ErrNoStore — оркестратор создан без хранилища.
	ErrNoStore = errors.New("store is required")

	// ErrNilDefinition — оркестратор создан без определения.
	ErrNilDefinition = errors.New("definition is required")

	// ErrSagaNotFound — запись саги не найдена (оборачивает domain.ErrNotFound).
	ErrSagaNotFound = fmt.Errorf("saga %w", domain.ErrNotFound)

	// ErrSagaActive — сага с этим ID уже выполняется в этом процессе.
	ErrSagaActive = errors.New("saga already being processed")

	// ErrDefinitionMismatch — запись принадлежит другому определению.
	ErrDefinitionMismatch = errors.New("record belongs to another saga definition")

	// ErrStepTimeout — попытка шага превысила таймаут.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrStepPanic — шаг или компенсация запаниковали.
	ErrStepPanic = errors.New("step panicked")

	// ErrPersist — хранилище не смогло сохранить запись.
	ErrPersist = errors.New("persist saga record")

	// ErrDecode — запись не удалось разобрать.
	ErrDecode = errors.New("decode saga record")
)
