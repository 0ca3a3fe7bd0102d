package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// SQLiteStore — хранилище записей саг в SQLite (встраиваемый вариант SagaRepo).
//
// Время хранится в миллисекундах Unix (UTC).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite открывает базу по пути path и создаёт схему.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// один писатель: SQLite сериализует запись
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Persist сохраняет запись (upsert по id).
func (s *SQLiteStore) Persist(ctx context.Context, rec *domain.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saga_executions (id, name, status, payload, context, current_step,
		                             started_at, completed_at, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name,
		    status = excluded.status,
		    payload = excluded.payload,
		    context = excluded.context,
		    current_step = excluded.current_step,
		    started_at = excluded.started_at,
		    completed_at = excluded.completed_at,
		    error = excluded.error,
		    updated_at = excluded.updated_at`,
		rec.ID,
		rec.Name,
		string(rec.Status),
		nonNil(rec.Payload),
		nonNil(rec.Context),
		nullString(rec.CurrentStep),
		toMillis(rec.StartedAt),
		nullMillis(rec.CompletedAt),
		nullString(rec.Error),
		toMillis(updatedAt(rec)),
	)
	if err != nil {
		return fmt.Errorf("upsert saga %s: %w", rec.ID, err)
	}
	return nil
}

// Load возвращает запись по ID.
func (s *SQLiteStore) Load(ctx context.Context, sagaID string) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, payload, context, current_step,
		       started_at, completed_at, error, updated_at
		FROM saga_executions
		WHERE id = ?`, sagaID)
	return scanSQLiteRecord(row)
}

// ListUnfinished возвращает незавершённые саги, не обновлявшиеся с before.
func (s *SQLiteStore) ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, payload, context, current_step,
		       started_at, completed_at, error, updated_at
		FROM saga_executions
		WHERE status IN ('PENDING', 'RUNNING', 'COMPENSATING')
		  AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?`, toMillis(before), limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("list unfinished sagas: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Close закрывает базу.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var status string
	var payload, ctxJSON []byte
	var currentStep, recError sql.NullString
	var startedAt, updated int64
	var completedAt sql.NullInt64

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&status,
		&payload,
		&ctxJSON,
		&currentStep,
		&startedAt,
		&completedAt,
		&recError,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan saga: %w", err)
	}

	rec.Status = domain.Status(status)
	rec.Payload = payload
	rec.Context = ctxJSON
	rec.CurrentStep = currentStep.String
	rec.Error = recError.String
	rec.StartedAt = fromMillis(startedAt)
	rec.UpdatedAt = fromMillis(updated)
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := toMillis(*t)
	return &ms
}
