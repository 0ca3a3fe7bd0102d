// Package domain содержит доменные типы движка саг.
//
// Структура:
//   - status.go  — статусы и жизненный цикл саги
//   - record.go  — сохраняемая запись выполнения
//   - context.go — контекст выполнения (метаданные, выполненные шаги)
//   - event.go   — события жизненного цикла
//   - errors.go  — общие ошибки
package domain
