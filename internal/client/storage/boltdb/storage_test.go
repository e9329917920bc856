package boltdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

// createTestStorage создает временное хранилище для тестов
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestNew_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() {
		require.NoError(t, store.Close())
	}()

	// Проверяем что файл БД действительно создан
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// Проверяем, что бакеты существуют
	err = store.db.View(func(tx *bbolt.Tx) error {
		names := [][]byte{bucketAuth, bucketMetadata, bucketQueue}
		for _, et := range models.EntityTypes {
			names = append(names, recordBucket(et))
		}
		for _, b := range names {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "db"))
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNew_LockedByAnotherHandle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "locked.db")

	first, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer first.Close()

	// bbolt держит эксклюзивную блокировку файла
	second, err := New(context.Background(), dbPath)
	assert.Error(t, err)
	assert.Nil(t, second)
}

func TestClose(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	ch, _ := store.Subscribe(models.EntityHomeless)

	require.NoError(t, store.Close())
	assert.True(t, store.closed.Load())

	// повторный Close безопасен
	require.NoError(t, store.Close())

	// подписки закрываются вместе с хранилищем
	_, ok := <-ch
	assert.False(t, ok)

	ctx := context.Background()
	_, err = store.Get(ctx, models.EntityHomeless, "h-1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.Enqueue(ctx, models.EntityHomeless, models.OpAdd, "h-1", nil)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStorage_CloseWhileInUse(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, &models.Homeless{Meta: models.Meta{ID: "h-0"}, Name: "Ann"}))

	start := make(chan struct{})
	var wg stdsync.WaitGroup
	errs := make(chan error, 64)

	for i := range 4 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			for j := range 20 {
				for _, err := range store.List(ctx, models.EntityHomeless, nil) {
					if err != nil {
						errs <- err
						break
					}
				}
				id := fmt.Sprintf("h-%d-%d", i, j)
				if err := store.Insert(ctx, &models.Homeless{Meta: models.Meta{ID: id}, Name: "Bob"}); err != nil {
					errs <- err
				}
			}
		}(i)
	}

	close(start)
	require.NoError(t, store.Close())
	wg.Wait()
	close(errs)

	// после Close вызовы отказывают только с ErrStorageClosed
	for err := range errs {
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	}
}
