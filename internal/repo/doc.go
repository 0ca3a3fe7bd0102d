// Package repo содержит хранилища записей саг.
//
// Все хранилища реализуют Backend: идемпотентный Persist, Load и
// ListUnfinished для recovery. Payload и Context записей сохраняются
// как есть, без интерпретации.
//
// Структура:
//   - saga_repo.go — PostgreSQL (pgx), основное хранилище
//   - sqlite.go    — SQLite (modernc), встраиваемый вариант
//   - redis.go     — Redis, запись + sorted set незавершённых саг
//   - badger.go    — Badger, встраиваемое key-value
//   - memory.go    — в памяти процесса
//   - open.go      — выбор хранилища по имени
package repo
