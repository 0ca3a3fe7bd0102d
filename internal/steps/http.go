package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/telemetry"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// Request — HTTP запрос шага.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string

	// Body — string, []byte или значение, кодируемое в JSON.
	Body any
}

// JSON создаёт запрос с JSON телом.
func JSON(method, url string, body any) *Request {
	return &Request{Method: method, URL: url, Body: body}
}

// Response — разобранный HTTP ответ.
type Response struct {
	StatusCode int
	Headers    map[string]string

	// Body — разобранный JSON (map[string]any, []any, ...) или строка.
	Body any
}

// RequestFunc строит запрос из payload и контекста выполнения.
// Для компенсации nil означает «откатывать нечего».
type RequestFunc[P any] func(payload P, execCtx *domain.ExecutionContext) (*Request, error)

// HTTPConfig — описание HTTP шага саги.
type HTTPConfig[P any] struct {
	Name string

	// Forward — прямой запрос. Обязателен.
	Forward RequestFunc[P]

	// Compensate — компенсирующий запрос (опционально).
	// Ответ 404 или 410 считается успешным откатом.
	Compensate RequestFunc[P]

	// OutputKey — ключ метаданных, под которым сохраняется тело ответа Forward.
	OutputKey string

	// OnResponse вызывается после успешного Forward (опционально).
	OnResponse func(resp *Response, execCtx *domain.ExecutionContext) error

	// Client (default: http.Client с таймаутом 30s).
	Client *http.Client

	Retryable   bool
	MaxRetries  int
	Timeout     time.Duration
	BackoffBase time.Duration
}

// NewHTTP создаёт шаг саги, выполняющий HTTP запросы.
// Ответ вне диапазона 2xx возвращается как *HTTPError.
func NewHTTP[P any](cfg HTTPConfig[P]) saga.Step[P] {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	step := saga.Step[P]{
		Name:        cfg.Name,
		Retryable:   cfg.Retryable,
		MaxRetries:  cfg.MaxRetries,
		Timeout:     cfg.Timeout,
		BackoffBase: cfg.BackoffBase,
	}

	if cfg.Forward != nil {
		step.Execute = func(ctx context.Context, payload P, execCtx *domain.ExecutionContext) error {
			req, err := cfg.Forward(payload, execCtx)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			if req == nil {
				return fmt.Errorf("%w: %s: forward request is nil", ErrInvalidRequest, cfg.Name)
			}

			resp, err := Do(ctx, client, req)
			if err != nil {
				return err
			}

			if cfg.OutputKey != "" {
				execCtx.Set(cfg.OutputKey, resp.Body)
			}
			if cfg.OnResponse != nil {
				return cfg.OnResponse(resp, execCtx)
			}
			return nil
		}
	}

	if cfg.Compensate != nil {
		step.Compensate = func(ctx context.Context, payload P, execCtx *domain.ExecutionContext, _ error) error {
			req, err := cfg.Compensate(payload, execCtx)
			if err != nil {
				return fmt.Errorf("build compensation request: %w", err)
			}
			if req == nil {
				return nil
			}

			_, err = Do(ctx, client, req)
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone) {
				return nil
			}
			return err
		}
	}

	return step
}

// Do выполняет запрос и разбирает ответ.
func Do(ctx context.Context, client *http.Client, r *Request) (*Response, error) {
	req, err := buildRequest(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	telemetry.FromContext(ctx).Debug("http step call",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return parseResponse(resp)
}

func buildRequest(ctx context.Context, r *Request) (*http.Request, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	var jsonBody bool
	switch v := r.Body.(type) {
	case nil:
	case string:
		body = strings.NewReader(v)
	case []byte:
		body = bytes.NewReader(v)
	default:
		data, err := xjson.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		body = bytes.NewReader(data)
		jsonBody = true
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}

	if jsonBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func parseResponse(resp *http.Response) (*Response, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && len(data) > 0 {
		if err := xjson.Unmarshal(data, &body); err != nil {
			body = string(data)
		}
	} else if len(data) > 0 {
		body = string(data)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

// HTTPError — ответ со статусом вне 2xx.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка (или её причина) HTTPError.
func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}

// OutputString возвращает строковое поле field объекта, сохранённого
// под ключом key (см. HTTPConfig.OutputKey).
func OutputString(execCtx *domain.ExecutionContext, key, field string) string {
	v, _ := execCtx.Get(key)
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch v := obj[field].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
