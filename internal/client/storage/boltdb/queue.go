package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

// envelopeEnc хранит время с наносекундами (по умолчанию cbor пишет unix-секунды)
var envelopeEnc = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func decodeEnvelope(k, v []byte) (models.QueuedMutation, error) {
	var m models.QueuedMutation
	if len(k) != 8 {
		return m, fmt.Errorf("malformed queue key %x", k)
	}
	if err := cbor.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("failed to decode queue entry: %w", err)
	}
	if !m.EntityType.Valid() || !m.Operation.Valid() || m.RecordID == "" {
		return m, fmt.Errorf("invalid queue entry %x", k)
	}
	m.Seq = binary.BigEndian.Uint64(k)
	return m, nil
}

// Enqueue implements storage.MutationQueue
func (s *Storage) Enqueue(ctx context.Context, t models.EntityType, op models.Operation, recordID string, payload []byte) (uint64, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}

	m := models.QueuedMutation{
		EnqueuedAt: s.now(),
		EntityType: t,
		Operation:  op,
		RecordID:   recordID,
		Payload:    payload,
	}
	data, err := envelopeEnc.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("failed to encode queue entry: %w", err)
	}

	var seq uint64
	err = s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		// NextSequence монотонен в пределах БД и не переиспользуется после удаления
		seq, err = bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		if err := bucket.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to save queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return seq, nil
}

// PeekPending implements storage.MutationQueue.
// Undecodable entries are skipped; PurgeCorrupt removes them.
func (s *Storage) PeekPending(ctx context.Context, t models.EntityType, asOf time.Time) ([]models.QueuedMutation, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	var pending []models.QueuedMutation
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}

		// ключи big-endian, поэтому ForEach идёт по возрастанию seq
		return bucket.ForEach(func(k, v []byte) error {
			m, err := decodeEnvelope(k, v)
			if err != nil {
				return nil
			}
			if m.EntityType != t || m.EnqueuedAt.After(asOf) {
				return nil
			}
			pending = append(pending, m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	return pending, nil
}

// Remove implements storage.MutationQueue
func (s *Storage) Remove(ctx context.Context, seq uint64) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}

	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}
		// Delete отсутствующего ключа в bbolt не ошибка
		if err := bucket.Delete(seqKey(seq)); err != nil {
			return fmt.Errorf("failed to remove queue entry %d: %w", seq, err)
		}
		return nil
	})
}

// IsEmpty implements storage.MutationQueue
func (s *Storage) IsEmpty(ctx context.Context) (bool, error) {
	if s.closed.Load() {
		return false, storage.ErrStorageClosed
	}

	empty := true
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}
		k, _ := bucket.Cursor().First()
		empty = k == nil
		return nil
	})
	return empty, err
}

// Pending implements storage.MutationQueue
func (s *Storage) Pending(ctx context.Context, t models.EntityType) (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			m, err := decodeEnvelope(k, v)
			if err == nil && m.EntityType == t {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}

	return count, nil
}

// PurgeCorrupt implements storage.MutationQueue
func (s *Storage) PurgeCorrupt(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}

	purged := 0
	err := s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}

		var corrupt [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if _, err := decodeEnvelope(k, v); err != nil {
				corrupt = append(corrupt, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range corrupt {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to purge queue entry %x: %w", k, err)
			}
		}
		purged = len(corrupt)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return purged, nil
}
