package domain

import "errors"

// Общие ошибки доменного слоя.
var (
	// ErrNotFound — запись саги не найдена в хранилище.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStatus — строка не является допустимым статусом.
	ErrInvalidStatus = errors.New("invalid status")
)
