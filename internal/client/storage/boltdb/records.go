package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.etcd.io/bbolt"

	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

// listBatchSize количество записей, читаемых за одну read-транзакцию в List
const listBatchSize = 64

type putMode int

const (
	putInsert putMode = iota
	putUpdate
	putUpsert
)

// Insert implements storage.LocalStore
func (s *Storage) Insert(ctx context.Context, rec models.Record) error {
	return s.put(rec, putInsert)
}

// Update implements storage.LocalStore
func (s *Storage) Update(ctx context.Context, rec models.Record) error {
	return s.put(rec, putUpdate)
}

// Upsert implements storage.LocalStore
func (s *Storage) Upsert(ctx context.Context, rec models.Record) error {
	return s.put(rec, putUpsert)
}

func (s *Storage) put(rec models.Record, mode putMode) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if rec.GetID() == "" {
		return fmt.Errorf("%w: empty id", models.ErrInvalidRecord)
	}

	t := rec.EntityType()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", t, err)
	}

	err = s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordBucket(t))
		if bucket == nil {
			return fmt.Errorf("%s bucket not found", t)
		}

		key := []byte(rec.GetID())
		exists := bucket.Get(key) != nil
		switch {
		case mode == putInsert && exists:
			return storage.ErrRecordExists
		case mode == putUpdate && !exists:
			return storage.ErrRecordNotFound
		}

		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("failed to save %s record: %w", t, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.watchers.notify(t)
	return nil
}

// Get implements storage.LocalStore
func (s *Storage) Get(ctx context.Context, t models.EntityType, id string) ([]byte, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	var data []byte
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordBucket(t))
		if bucket == nil {
			return storage.ErrRecordNotFound
		}

		v := bucket.Get([]byte(id))
		if v == nil {
			return storage.ErrRecordNotFound
		}
		// значения bbolt валидны только внутри транзакции
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// List implements storage.LocalStore.
// Records are read in batches of listBatchSize, each batch in its own read
// transaction, so the caller may write to the store while iterating.
func (s *Storage) List(ctx context.Context, t models.EntityType, filter storage.Filter) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		var after []byte
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if s.closed.Load() {
				yield(nil, storage.ErrStorageClosed)
				return
			}

			batch, last, err := s.readBatch(t, after, filter)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, v := range batch {
				if !yield(v, nil) {
					return
				}
			}
			if last == nil {
				return
			}
			after = last
		}
	}
}

// readBatch читает до listBatchSize записей с ключом строго больше after.
// last == nil означает, что bucket прочитан до конца.
func (s *Storage) readBatch(t models.EntityType, after []byte, filter storage.Filter) ([][]byte, []byte, error) {
	var (
		batch [][]byte
		last  []byte
	)

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordBucket(t))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		var k, v []byte
		if after == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(after)
			if k != nil && bytes.Equal(k, after) {
				k, v = c.Next()
			}
		}

		scanned := 0
		for ; k != nil; k, v = c.Next() {
			if scanned == listBatchSize {
				return nil
			}
			scanned++
			last = bytes.Clone(k)
			if filter != nil && !filter(v) {
				continue
			}
			batch = append(batch, bytes.Clone(v))
		}
		// дошли до конца bucket
		last = nil
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s records: %w", t, err)
	}

	return batch, last, nil
}

// Delete implements storage.LocalStore.
// The relation policies declared in models are applied recursively in the same
// transaction: Cascade children are deleted, SetNull children get the
// referencing field set to null and updated_at bumped.
func (s *Storage) Delete(ctx context.Context, t models.EntityType, id string) (*storage.Cascade, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	cascade := &storage.Cascade{}
	err := s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordBucket(t))
		if bucket == nil || bucket.Get([]byte(id)) == nil {
			return storage.ErrRecordNotFound
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete %s record: %w", t, err)
		}

		visited := map[storage.Ref]bool{{Type: t, ID: id}: true}
		return s.applyRelations(tx, storage.Ref{Type: t, ID: id}, cascade, visited)
	})
	if err != nil {
		return nil, err
	}

	types := []models.EntityType{t}
	for _, ref := range cascade.Deleted {
		types = append(types, ref.Type)
	}
	for _, snap := range cascade.Updated {
		types = append(types, snap.Type)
	}
	s.watchers.notify(types...)

	return cascade, nil
}

func (s *Storage) applyRelations(tx *bbolt.Tx, parent storage.Ref, cascade *storage.Cascade, visited map[storage.Ref]bool) error {
	for _, rel := range models.Dependents(parent.Type) {
		bucket := tx.Bucket(recordBucket(rel.Child))
		if bucket == nil {
			continue
		}

		// bbolt запрещает модифицировать bucket во время ForEach, поэтому сначала собираем
		type match struct {
			key   []byte
			value []byte
		}
		var matches []match
		err := bucket.ForEach(func(k, v []byte) error {
			if gjson.GetBytes(v, rel.Field).String() == parent.ID {
				matches = append(matches, match{key: bytes.Clone(k), value: bytes.Clone(v)})
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s for %s: %w", rel.Child, rel.Field, err)
		}

		for _, m := range matches {
			ref := storage.Ref{Type: rel.Child, ID: string(m.key)}
			if visited[ref] {
				continue
			}

			switch rel.Policy {
			case models.Cascade:
				visited[ref] = true
				if err := bucket.Delete(m.key); err != nil {
					return fmt.Errorf("failed to cascade delete %s/%s: %w", ref.Type, ref.ID, err)
				}
				cascade.Deleted = append(cascade.Deleted, ref)
				if err := s.applyRelations(tx, ref, cascade, visited); err != nil {
					return err
				}
			case models.SetNull:
				patched, err := s.setNull(m.value, rel.Field)
				if err != nil {
					return fmt.Errorf("failed to patch %s/%s: %w", ref.Type, ref.ID, err)
				}
				if err := bucket.Put(m.key, patched); err != nil {
					return fmt.Errorf("failed to save %s/%s: %w", ref.Type, ref.ID, err)
				}
				cascade.Updated = upsertSnapshot(cascade.Updated, storage.Snapshot{Ref: ref, Payload: patched})
			}
		}
	}
	return nil
}

func (s *Storage) setNull(value []byte, field string) ([]byte, error) {
	patched, err := sjson.SetRawBytes(value, field, []byte("null"))
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(patched, "updated_at", s.now().Format(time.RFC3339Nano))
}

// upsertSnapshot заменяет снимок той же записи (несколько set-null полей одной записи)
func upsertSnapshot(list []storage.Snapshot, snap storage.Snapshot) []storage.Snapshot {
	for i := range list {
		if list[i].Ref == snap.Ref {
			list[i] = snap
			return list
		}
	}
	return append(list, snap)
}
