package repo

import (
	"errors"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// Общие ошибки хранилищ.
var (
	// ErrNotFound — запись не найдена. Совпадает с domain.ErrNotFound,
	// поэтому оркестратор распознаёт её через errors.Is.
	ErrNotFound = domain.ErrNotFound

	// ErrUnknownBackend — неизвестное имя хранилища в конфигурации.
	ErrUnknownBackend = errors.New("unknown store backend")

	// ErrInvalidRecord — запись без ID или имени.
	ErrInvalidRecord = errors.New("invalid saga record")
)
