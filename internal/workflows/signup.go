// Package workflows содержит определения саг, которые разворачивает Sagaflow.
package workflows

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/steps"
)

// SignupName — имя определения регистрации.
const SignupName = "signup"

// Ключи метаданных с ответами сервиса пользователей.
const (
	KeyAccount = "account"
	KeyProfile = "profile"
)

// ErrInvalidSignup — некорректные входные данные регистрации.
var ErrInvalidSignup = errors.New("invalid signup request")

// SignupRequest — payload саги регистрации.
type SignupRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Validate проверяет обязательные поля. Вызывается до запуска саги.
func (r SignupRequest) Validate() error {
	if !strings.Contains(r.Email, "@") {
		return errors.Join(ErrInvalidSignup, errors.New("email is required"))
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.Join(ErrInvalidSignup, errors.New("name is required"))
	}
	return nil
}

// SignupOptions — параметры шагов регистрации.
type SignupOptions struct {
	// Client (default: http.Client с таймаутом 30s).
	Client *http.Client

	// StepTimeout — таймаут одной попытки шага (default: 10s).
	StepTimeout time.Duration

	// BackoffBase — база задержки между попытками (default: 1s).
	BackoffBase time.Duration
}

// Signup строит сагу регистрации пользователя против сервиса baseURL:
//
//  1. createAccount — POST /accounts, откат DELETE /accounts/{id}
//  2. createProfile — POST /profiles, откат DELETE /profiles/{id}
//  3. sendWelcome   — POST /emails/welcome, без отката
func Signup(baseURL string, opts SignupOptions) (*saga.Definition[SignupRequest], error) {
	base := strings.TrimRight(baseURL, "/")
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Second
	}

	createAccount := steps.NewHTTP(steps.HTTPConfig[SignupRequest]{
		Name: "createAccount",
		Forward: func(r SignupRequest, _ *domain.ExecutionContext) (*steps.Request, error) {
			return steps.JSON(http.MethodPost, base+"/accounts", r), nil
		},
		Compensate: deleteBy(base+"/accounts/", KeyAccount),
		OutputKey:  KeyAccount,
		OnResponse: func(_ *steps.Response, ec *domain.ExecutionContext) error {
			ec.UserID = steps.OutputString(ec, KeyAccount, "id")
			return nil
		},
		Client:      opts.Client,
		Retryable:   true,
		Timeout:     opts.StepTimeout,
		BackoffBase: opts.BackoffBase,
	})

	createProfile := steps.NewHTTP(steps.HTTPConfig[SignupRequest]{
		Name: "createProfile",
		Forward: func(r SignupRequest, ec *domain.ExecutionContext) (*steps.Request, error) {
			return steps.JSON(http.MethodPost, base+"/profiles", map[string]string{
				"account_id":   steps.OutputString(ec, KeyAccount, "id"),
				"display_name": r.Name,
			}), nil
		},
		Compensate:  deleteBy(base+"/profiles/", KeyProfile),
		OutputKey:   KeyProfile,
		Client:      opts.Client,
		Retryable:   true,
		Timeout:     opts.StepTimeout,
		BackoffBase: opts.BackoffBase,
	})

	sendWelcome := steps.NewHTTP(steps.HTTPConfig[SignupRequest]{
		Name: "sendWelcome",
		Forward: func(r SignupRequest, _ *domain.ExecutionContext) (*steps.Request, error) {
			return steps.JSON(http.MethodPost, base+"/emails/welcome", map[string]string{
				"email": r.Email,
				"name":  r.Name,
			}), nil
		},
		Client:      opts.Client,
		Retryable:   true,
		MaxRetries:  2,
		Timeout:     opts.StepTimeout,
		BackoffBase: opts.BackoffBase,
	})

	return saga.NewDefinition(SignupName,
		[]saga.Step[SignupRequest]{createAccount, createProfile, sendWelcome},
		saga.Hooks[SignupRequest]{},
	)
}

// deleteBy строит откат DELETE prefix+{id}, где id берётся из ответа,
// сохранённого под key. Нет id — откатывать нечего.
func deleteBy(prefix, key string) steps.RequestFunc[SignupRequest] {
	return func(_ SignupRequest, ec *domain.ExecutionContext) (*steps.Request, error) {
		id := steps.OutputString(ec, key, "id")
		if id == "" {
			return nil, nil
		}
		return &steps.Request{Method: http.MethodDelete, URL: prefix + url.PathEscape(id)}, nil
	}
}
