package boltdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/outreach/internal/models"
)

func TestQueue_EnqueuePeekFIFO(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	seqA, err := store.Enqueue(ctx, models.EntityHomeless, models.OpAdd, "h-1", []byte(`{"id":"h-1"}`))
	require.NoError(t, err)
	seqB, err := store.Enqueue(ctx, models.EntityRequest, models.OpAdd, "r-1", []byte(`{"id":"r-1"}`))
	require.NoError(t, err)
	seqC, err := store.Enqueue(ctx, models.EntityHomeless, models.OpUpdate, "h-1", []byte(`{"id":"h-1","name":"x"}`))
	require.NoError(t, err)

	assert.Less(t, seqA, seqB)
	assert.Less(t, seqB, seqC)

	pending, err := store.PeekPending(ctx, models.EntityHomeless, time.Now())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, seqA, pending[0].Seq)
	assert.Equal(t, models.OpAdd, pending[0].Operation)
	assert.Equal(t, seqC, pending[1].Seq)
	assert.Equal(t, models.OpUpdate, pending[1].Operation)
	assert.JSONEq(t, `{"id":"h-1","name":"x"}`, string(pending[1].Payload))

	n, err := store.Pending(ctx, models.EntityRequest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_PeekPendingAsOf(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	base := time.Date(2026, 5, 1, 9, 0, 0, 123456789, time.UTC)
	store.now = func() time.Time { return base }
	_, err := store.Enqueue(ctx, models.EntityUpdate, models.OpAdd, "u-1", nil)
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(time.Minute) }
	_, err = store.Enqueue(ctx, models.EntityUpdate, models.OpAdd, "u-2", nil)
	require.NoError(t, err)

	// записи, добавленные после снимка, не попадают в текущий проход
	pending, err := store.PeekPending(ctx, models.EntityUpdate, base)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u-1", pending[0].RecordID)
	assert.True(t, base.Equal(pending[0].EnqueuedAt))
}

func TestQueue_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	seq, err := store.Enqueue(ctx, models.EntityVolunteer, models.OpDelete, "v-1", nil)
	require.NoError(t, err)

	empty, err := store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	require.NoError(t, store.Remove(ctx, seq))
	require.NoError(t, store.Remove(ctx, seq))
	require.NoError(t, store.Remove(ctx, 9999))

	empty, err = store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestQueue_SequenceNotReused(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	first, err := store.Enqueue(ctx, models.EntityVolunteer, models.OpAdd, "v-1", nil)
	require.NoError(t, err)
	require.NoError(t, store.Remove(ctx, first))

	second, err := store.Enqueue(ctx, models.EntityVolunteer, models.OpAdd, "v-2", nil)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestQueue_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := t.TempDir() + "/queue.db"

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, models.EntityHomeless, models.OpAdd, "h-1", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()

	pending, err := store.PeekPending(ctx, models.EntityHomeless, time.Now())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "h-1", pending[0].RecordID)
}

func TestQueue_PurgeCorrupt(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	good, err := store.Enqueue(ctx, models.EntityHomeless, models.OpAdd, "h-1", nil)
	require.NoError(t, err)

	// подкладываем мусор в очередь
	err = store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		if err := b.Put(seqKey(100), []byte("definitely not cbor")); err != nil {
			return err
		}
		return b.Put([]byte("short"), []byte{0xa0})
	})
	require.NoError(t, err)

	// повреждённые записи не видны при чтении
	pending, err := store.PeekPending(ctx, models.EntityHomeless, time.Now())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	purged, err := store.PurgeCorrupt(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	purged, err = store.PurgeCorrupt(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)

	require.NoError(t, store.Remove(ctx, good))
	empty, err := store.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	const perType = 20
	var wg sync.WaitGroup
	for _, et := range models.EntityTypes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perType {
				_, err := store.Enqueue(ctx, et, models.OpAdd, string(et)+string(rune('a'+i)), nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, et := range models.EntityTypes {
		pending, err := store.PeekPending(ctx, et, time.Now())
		require.NoError(t, err)
		require.Len(t, pending, perType)
		// порядок постановки внутри одного типа сохраняется
		for i := range pending {
			assert.Equal(t, string(et)+string(rune('a'+i)), pending[i].RecordID)
			if i > 0 {
				assert.Greater(t, pending[i].Seq, pending[i-1].Seq)
			}
		}
	}
}
