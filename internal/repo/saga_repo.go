package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// DBTX — подмножество pgx, которое использует SagaRepo.
// Реализуется *pgxpool.Pool, *pgx.Conn и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SagaRepo — хранилище записей саг в PostgreSQL.
type SagaRepo struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewSagaRepo создаёт SagaRepo поверх соединения или транзакции.
func NewSagaRepo(db DBTX) *SagaRepo {
	r := &SagaRepo{db: db}
	if pool, ok := db.(*pgxpool.Pool); ok {
		r.pool = pool
	}
	return r
}

// EnsureSchema создаёт таблицу saga_executions, если её нет.
func (r *SagaRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Persist сохраняет запись (upsert по id).
func (r *SagaRepo) Persist(ctx context.Context, rec *domain.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO saga_executions (id, name, status, payload, context, current_step,
		                             started_at, completed_at, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    status = EXCLUDED.status,
		    payload = EXCLUDED.payload,
		    context = EXCLUDED.context,
		    current_step = EXCLUDED.current_step,
		    started_at = EXCLUDED.started_at,
		    completed_at = EXCLUDED.completed_at,
		    error = EXCLUDED.error,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.Name,
		string(rec.Status),
		nonNil(rec.Payload),
		nonNil(rec.Context),
		nullString(rec.CurrentStep),
		rec.StartedAt,
		rec.CompletedAt,
		nullString(rec.Error),
		updatedAt(rec),
	)
	if err != nil {
		return fmt.Errorf("upsert saga %s: %w", rec.ID, err)
	}
	return nil
}

// Load возвращает запись по ID.
func (r *SagaRepo) Load(ctx context.Context, sagaID string) (*domain.Record, error) {
	query := `
		SELECT id, name, status, payload, context, current_step,
		       started_at, completed_at, error, updated_at
		FROM saga_executions
		WHERE id = $1
	`
	return scanRecord(r.db.QueryRow(ctx, query, sagaID))
}

// ListUnfinished возвращает незавершённые саги, не обновлявшиеся с before.
func (r *SagaRepo) ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error) {
	query := `
		SELECT id, name, status, payload, context, current_step,
		       started_at, completed_at, error, updated_at
		FROM saga_executions
		WHERE status IN ('PENDING', 'RUNNING', 'COMPENSATING')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, before, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("list unfinished sagas: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Close закрывает пул, если репозиторий создан поверх него.
func (r *SagaRepo) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// --- Helpers ---

// scanRecord сканирует одну строку в Record.
func scanRecord(row pgx.Row) (*domain.Record, error) {
	var rec domain.Record
	var status string
	var payload, ctxJSON []byte
	var currentStep, recError *string

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&status,
		&payload,
		&ctxJSON,
		&currentStep,
		&rec.StartedAt,
		&rec.CompletedAt,
		&recError,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan saga: %w", err)
	}

	rec.Status = domain.Status(status)
	rec.Payload = payload
	rec.Context = ctxJSON
	if currentStep != nil {
		rec.CurrentStep = *currentStep
	}
	if recError != nil {
		rec.Error = *recError
	}
	return &rec, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
