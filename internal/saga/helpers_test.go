package saga

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// memStore — хранилище для тестов: копирует записи и умеет падать по условию.
type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.Record
	history []domain.Status
	failOn  func(rec *domain.Record) error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.Record)}
}

func (s *memStore) Persist(_ context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		if err := s.failOn(rec); err != nil {
			return err
		}
	}
	s.records[rec.ID] = rec.Clone()
	s.history = append(s.history, rec.Status)
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *memStore) get(id string) *domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Clone()
}

func (s *memStore) statuses() []domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Status(nil), s.history...)
}

// recorder записывает вызовы шагов, компенсаций и события.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	events []domain.Event
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

type order struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

// okStep — шаг, который записывает вызовы и всегда успешен.
func okStep(rec *recorder, name string) Step[order] {
	return Step[order]{
		Name: name,
		Execute: func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
			rec.add(name)
			return nil
		},
		Compensate: func(_ context.Context, _ order, _ *domain.ExecutionContext, _ error) error {
			rec.add("undo:" + name)
			return nil
		},
	}
}

// failStep — шаг, который всегда падает с err.
func failStep(rec *recorder, name string, err error) Step[order] {
	s := okStep(rec, name)
	s.Execute = func(_ context.Context, _ order, _ *domain.ExecutionContext) error {
		rec.add(name)
		return err
	}
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustOrchestrator(def *Definition[order], store Store, n Notifier) *Orchestrator[order] {
	o, err := New(def, Config{Store: store, Notifier: n, Logger: quietLogger()})
	if err != nil {
		panic(err)
	}
	return o
}

func mustDefinition(name string, steps ...Step[order]) *Definition[order] {
	def, err := NewDefinition(name, steps, Hooks[order]{})
	if err != nil {
		panic(err)
	}
	return def
}

var errBoom = errors.New("boom")
