package repo

import _ "embed"

// Схемы таблицы saga_executions.
var (
	//go:embed schema/postgres.sql
	postgresSchema string

	//go:embed schema/sqlite.sql
	sqliteSchema string
)
