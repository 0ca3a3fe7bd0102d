package saga

import (
	"context"
	"fmt"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Hooks — необязательные обработчики завершения саги.
//
// Ошибки и паники хуков логируются и не меняют результат саги.
type Hooks[P any] struct {
	// OnSuccess вызывается после перехода в COMPLETED.
	OnSuccess func(ctx context.Context, payload P, execCtx *domain.ExecutionContext) error

	// OnFailure вызывается после перехода в COMPENSATED.
	OnFailure func(ctx context.Context, payload P, execCtx *domain.ExecutionContext, err error) error
}

// Definition — неизменяемое определение саги.
//
// Порядок шагов задаёт порядок выполнения, компенсация идёт в обратном.
// Definition можно разделять между оркестраторами и горутинами.
type Definition[P any] struct {
	name  string
	steps []Step[P]
	index map[string]int
	hooks Hooks[P]
}

// NewDefinition проверяет шаги и создаёт определение.
func NewDefinition[P any](name string, steps []Step[P], hooks Hooks[P]) (*Definition[P], error) {
	if name == "" {
		return nil, fmt.Errorf("saga: %w", ErrEmptyName)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("saga %s: %w", name, ErrNoSteps)
	}

	index := make(map[string]int, len(steps))
	for i, step := range steps {
		if step.Name == "" {
			return nil, fmt.Errorf("saga %s: step %d: %w", name, i, ErrEmptyName)
		}
		if step.Execute == nil {
			return nil, fmt.Errorf("saga %s: step %s: %w", name, step.Name, ErrNoExecute)
		}
		if _, ok := index[step.Name]; ok {
			return nil, fmt.Errorf("saga %s: %w: %s", name, ErrDuplicateStep, step.Name)
		}
		index[step.Name] = i
	}

	return &Definition[P]{
		name:  name,
		steps: append([]Step[P](nil), steps...),
		index: index,
		hooks: hooks,
	}, nil
}

// Name возвращает имя саги.
func (d *Definition[P]) Name() string {
	return d.name
}

// Len возвращает число шагов.
func (d *Definition[P]) Len() int {
	return len(d.steps)
}

// StepNames возвращает имена шагов в порядке выполнения.
func (d *Definition[P]) StepNames() []string {
	names := make([]string, len(d.steps))
	for i := range d.steps {
		names[i] = d.steps[i].Name
	}
	return names
}

// Step возвращает шаг по имени.
func (d *Definition[P]) Step(name string) (*Step[P], bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.steps[i], true
}
