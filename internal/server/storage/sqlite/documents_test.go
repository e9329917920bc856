package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/outreach/internal/server/storage"
)

func newTestDocument(collection, id, body string) *storage.Document {
	return &storage.Document{
		Collection: collection,
		ID:         id,
		Body:       json.RawMessage(body),
		UpdatedBy:  "user-1",
	}
}

func TestDocumentStorage_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	doc := newTestDocument("homeless", "h1", `{"id":"h1","name":"Ann"}`)
	created, err := s.PutDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := s.GetDocument(ctx, "homeless", "h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"h1","name":"Ann"}`, string(got.Body))
	assert.Equal(t, "user-1", got.UpdatedBy)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestDocumentStorage_PutReplaces(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	first := newTestDocument("homeless", "h1", `{"id":"h1","name":"Ann"}`)
	first.UpdatedAt = time.Unix(100, 0)
	_, err := s.PutDocument(ctx, first)
	require.NoError(t, err)

	second := newTestDocument("homeless", "h1", `{"id":"h1","name":"Anna"}`)
	second.UpdatedBy = "user-2"
	second.UpdatedAt = time.Unix(200, 0)
	created, err := s.PutDocument(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetDocument(ctx, "homeless", "h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"h1","name":"Anna"}`, string(got.Body))
	assert.Equal(t, "user-2", got.UpdatedBy)
	assert.True(t, got.CreatedAt.Equal(time.Unix(100, 0)))
	assert.True(t, got.UpdatedAt.Equal(time.Unix(200, 0)))
}

func TestDocumentStorage_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.PutDocument(ctx, newTestDocument("homeless", "x", `{"id":"x"}`))
	require.NoError(t, err)

	_, err = s.GetDocument(ctx, "volunteer", "x")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

	docs, err := s.ListDocuments(ctx, "volunteer")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NotNil(t, docs)
}

func TestDocumentStorage_ListOrdered(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.PutDocument(ctx, newTestDocument("request", id, fmt.Sprintf(`{"id":%q}`, id)))
		require.NoError(t, err)
	}

	docs, err := s.ListDocuments(ctx, "request")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestDocumentStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.PutDocument(ctx, newTestDocument("update", "u1", `{"id":"u1"}`))
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(ctx, "update", "u1"))

	_, err = s.GetDocument(ctx, "update", "u1")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

	err = s.DeleteDocument(ctx, "update", "u1")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestDocumentStorage_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.PutDocument(ctx, newTestDocument("preference", "p1", fmt.Sprintf(`{"id":"p1","n":%d}`, i)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	docs, err := s.ListDocuments(ctx, "preference")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
