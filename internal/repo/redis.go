package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// DefaultRedisPrefix — префикс ключей по умолчанию.
const DefaultRedisPrefix = "sagaflow:"

// RedisStore — хранилище записей саг в Redis.
//
// Ключи:
//   - <prefix>saga:<id>   — JSON записи
//   - <prefix>unfinished  — sorted set незавершённых саг, score = updated_at (ms)
//
// Запись и индекс обновляются в одной MULTI/EXEC транзакции.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisConfig — параметры подключения к Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OpenRedis подключается к Redis и проверяет соединение.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStore(client, cfg.Prefix), nil
}

// NewRedisStore создаёт RedisStore поверх готового клиента.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + "saga:" + id
}

func (s *RedisStore) unfinishedKey() string {
	return s.prefix + "unfinished"
}

// Persist сохраняет запись и обновляет индекс незавершённых саг.
func (s *RedisStore) Persist(ctx context.Context, rec *domain.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	cp := *rec
	cp.UpdatedAt = updatedAt(rec)
	data, err := xjson.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal saga %s: %w", rec.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
		if rec.Status.IsUnfinished() {
			pipe.ZAdd(ctx, s.unfinishedKey(), redis.Z{
				Score:  float64(cp.UpdatedAt.UnixMilli()),
				Member: rec.ID,
			})
		} else {
			pipe.ZRem(ctx, s.unfinishedKey(), rec.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist saga %s: %w", rec.ID, err)
	}
	return nil
}

// Load возвращает запись по ID.
func (s *RedisStore) Load(ctx context.Context, sagaID string) (*domain.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(sagaID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get saga %s: %w", sagaID, err)
	}

	var rec domain.Record
	if err := xjson.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal saga %s: %w", sagaID, err)
	}
	return &rec, nil
}

// ListUnfinished возвращает незавершённые саги, не обновлявшиеся с before.
func (s *RedisStore) ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.unfinishedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limitOrDefault(limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list unfinished sagas: %w", err)
	}

	records := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Индекс пережил запись — чистим
			s.client.ZRem(ctx, s.unfinishedKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Close закрывает клиент Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
