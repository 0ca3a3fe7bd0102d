package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/repo"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/workflows"
)

// Ошибки команд.
var (
	ErrUnknownSaga   = errors.New("no definition registered for saga")
	ErrNotConfigured = errors.New("not configured")
)

// SubscribeFunc доставляет события саги sagaName (пустое имя — всех саг),
// пока не отменён ctx.
type SubscribeFunc func(ctx context.Context, sagaName string, handle func(domain.Event) error) error

// Env — зависимости команд. Создаётся лениво, после разбора флагов.
type Env struct {
	Store     repo.Backend
	Resumers  map[string]saga.Resumer
	Signup    *saga.Orchestrator[workflows.SignupRequest]
	Subscribe SubscribeFunc
}

// EnvFunc возвращает Env. Вызывается командой один раз.
type EnvFunc func(ctx context.Context) (*Env, error)

// resumer возвращает Resumer для определения name.
func (e *Env) resumer(name string) (saga.Resumer, error) {
	r, ok := e.Resumers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSaga, name)
	}
	return r, nil
}
