package repo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Sagaflow/internal/domain"
)

func TestSQLiteStore(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) Backend {
		s, err := OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "sagas.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(t.Context(), "  ")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) Backend {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		s := NewRedisStore(client, "test:")
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisStore_Keys(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedis(t.Context(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	rec := testRecord("s-1", domain.StatusRunning, time.Now())
	require.NoError(t, s.Persist(t.Context(), rec))

	assert.True(t, mr.Exists("sagaflow:saga:s-1"))
	members, err := mr.ZMembers("sagaflow:unfinished")
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1"}, members)

	rec.MarkCompleted()
	require.NoError(t, s.Persist(t.Context(), rec))
	members, _ = mr.ZMembers("sagaflow:unfinished")
	assert.Empty(t, members)
}

func TestBadgerStore(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) Backend {
		opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
		db, err := badger.Open(opts)
		require.NoError(t, err)
		s := NewBadgerStore(db)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStore_OnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	rec := testRecord("s-1", domain.StatusPending, time.Now())
	require.NoError(t, s.Persist(t.Context(), rec))
	require.NoError(t, s.Close())

	// данные переживают переоткрытие
	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(t.Context(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

// Интеграционный тест PostgreSQL: нужен SAGAFLOW_TEST_DB_URL.
func TestSagaRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("SAGAFLOW_TEST_DB_URL")
	if dsn == "" {
		t.Skip("SAGAFLOW_TEST_DB_URL not set")
	}

	runBackendSuite(t, func(t *testing.T) Backend {
		pool, err := NewPool(t.Context(), dsn, 4)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		r := NewSagaRepo(pool)
		require.NoError(t, r.EnsureSchema(t.Context()))
		_, err = pool.Exec(t.Context(), "TRUNCATE saga_executions")
		require.NoError(t, err)
		return r
	})
}
