package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// badgerPrefix — префикс ключей записей саг.
var badgerPrefix = []byte("saga/")

// BadgerStore — встраиваемое key-value хранилище записей саг.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger открывает базу в каталоге dir. Пустой dir — база в памяти.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore создаёт BadgerStore поверх открытой базы.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func badgerKey(id string) []byte {
	return append(append([]byte(nil), badgerPrefix...), id...)
}

// Persist сохраняет запись.
func (s *BadgerStore) Persist(ctx context.Context, rec *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	cp := *rec
	cp.UpdatedAt = updatedAt(rec)
	data, err := xjson.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal saga %s: %w", rec.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("persist saga %s: %w", rec.ID, err)
	}
	return nil
}

// Load возвращает запись по ID.
func (s *BadgerStore) Load(ctx context.Context, sagaID string) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(sagaID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return xjson.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load saga %s: %w", sagaID, err)
	}
	return &rec, nil
}

// ListUnfinished обходит все записи и возвращает незавершённые,
// не обновлявшиеся с before.
func (s *BadgerStore) ListUnfinished(ctx context.Context, before time.Time, limit int) ([]domain.Record, error) {
	var records []domain.Record

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec domain.Record
			err := it.Item().Value(func(val []byte) error {
				return xjson.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}

			if rec.Status.IsUnfinished() && rec.UpdatedAt.Before(before) {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list unfinished sagas: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.Before(records[j].UpdatedAt)
	})
	if limit = limitOrDefault(limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close закрывает базу.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
