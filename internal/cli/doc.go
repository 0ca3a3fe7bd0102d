// Package cli реализует инструмент командной строки Sagaflow.
//
// # Обзор
//
// CLI работает напрямую с хранилищем саг (SAGA_STORE) и RabbitMQ,
// без промежуточного API:
//   - list   — незавершённые саги
//   - show   — запись саги и её контекст
//   - resume — ручное продолжение (в том числе FAILED)
//   - signup — запуск саги регистрации в процессе CLI
//   - watch  — поток событий из sagaflow.events
//
// # Output
//
// Два режима вывода:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
// sagaflow list --json | jq .
//
// # Commands
//
// Каждая команда создаётся фабрикой (NewListCmd и т.д.), принимающей
// envFn и outputFn — замыкания для ленивого создания Env и Output
// после парсинга PersistentFlags.
package cli
