package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/outreach/internal/server/storage"
	"github.com/iudanet/outreach/pkg/api"
)

type memDocumentStore struct {
	docs map[string]*storage.Document
	err  error
	mu   sync.Mutex
}

func newMemDocumentStore() *memDocumentStore {
	return &memDocumentStore{docs: make(map[string]*storage.Document)}
}

func (m *memDocumentStore) PutDocument(_ context.Context, doc *storage.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := doc.Collection + "/" + doc.ID
	_, exists := m.docs[key]
	m.docs[key] = doc
	return !exists, nil
}

func (m *memDocumentStore) GetDocument(_ context.Context, collection, id string) (*storage.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[collection+"/"+id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *memDocumentStore) ListDocuments(_ context.Context, collection string) ([]*storage.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*storage.Document
	for _, d := range m.docs {
		if d.Collection == collection {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDocumentStore) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	key := collection + "/" + id
	if _, ok := m.docs[key]; !ok {
		return storage.ErrDocumentNotFound
	}
	delete(m.docs, key)
	return nil
}

// newDocumentRouter собирает маршруты так же, как сервер, но без auth middleware
func newDocumentRouter(store DocumentStore) *mux.Router {
	h := NewDocumentHandler(setupTestLogger(), store)
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithUser(req.Context(), "user-1", "alice")))
		})
	})
	r.HandleFunc(api.PathCollections+"/{collection}", h.List).Methods(http.MethodGet)
	r.HandleFunc(api.PathCollections+"/{collection}/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc(api.PathCollections+"/{collection}/{id}", h.Put).Methods(http.MethodPut)
	r.HandleFunc(api.PathCollections+"/{collection}/{id}", h.Delete).Methods(http.MethodDelete)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocumentHandler_PutCreatesThenReplaces(t *testing.T) {
	store := newMemDocumentStore()
	r := newDocumentRouter(store)

	w := serve(r, http.MethodPut, "/api/v1/collections/homeless/h1", `{"id":"h1","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"h1","name":"Ann"}`, w.Body.String())

	w = serve(r, http.MethodPut, "/api/v1/collections/homeless/h1", `{"id":"h1", "name":"Anna"}`)
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := store.GetDocument(context.Background(), "homeless", "h1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"h1","name":"Anna"}`, string(doc.Body))
	assert.Equal(t, "user-1", doc.UpdatedBy)
}

func TestDocumentHandler_PutRejects(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{name: "unknown collection", path: "/api/v1/collections/cats/c1", body: `{"id":"c1"}`, wantCode: http.StatusNotFound},
		{name: "malformed json", path: "/api/v1/collections/homeless/h1", body: `{"id":`, wantCode: http.StatusBadRequest},
		{name: "id mismatch", path: "/api/v1/collections/homeless/h1", body: `{"id":"h2","name":"Ann"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "missing required field", path: "/api/v1/collections/homeless/h1", body: `{"id":"h1"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "bad email", path: "/api/v1/collections/volunteer/v1", body: `{"id":"v1","name":"Bob","email":"nope"}`, wantCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemDocumentStore()
			r := newDocumentRouter(store)

			w := serve(r, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			docs, err := store.ListDocuments(context.Background(), "homeless")
			require.NoError(t, err)
			assert.Empty(t, docs)
		})
	}
}

func TestDocumentHandler_PutRequiresUser(t *testing.T) {
	h := NewDocumentHandler(setupTestLogger(), newMemDocumentStore())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/collections/homeless/h1", strings.NewReader(`{"id":"h1","name":"Ann"}`))
	req = mux.SetURLVars(req, map[string]string{"collection": "homeless", "id": "h1"})
	w := httptest.NewRecorder()
	h.Put(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandler_GetAndList(t *testing.T) {
	store := newMemDocumentStore()
	r := newDocumentRouter(store)

	for _, body := range []string{`{"id":"b","name":"B"}`, `{"id":"a","name":"A"}`} {
		var probe struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &probe))
		w := serve(r, http.MethodPut, "/api/v1/collections/volunteer/"+probe.ID, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := serve(r, http.MethodGet, "/api/v1/collections/volunteer/a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"a","name":"A"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/v1/collections/volunteer", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list api.DocumentListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, "volunteer", list.Collection)
	require.Len(t, list.Documents, 2)
	assert.JSONEq(t, `{"id":"a","name":"A"}`, string(list.Documents[0]))

	w = serve(r, http.MethodGet, "/api/v1/collections/homeless", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"collection":"homeless","documents":[]}`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/v1/collections/volunteer/zzz", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/collections/cats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Delete(t *testing.T) {
	store := newMemDocumentStore()
	r := newDocumentRouter(store)

	w := serve(r, http.MethodPut, "/api/v1/collections/homeless/h1", `{"id":"h1","name":"Ann"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodDelete, "/api/v1/collections/homeless/h1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodDelete, "/api/v1/collections/homeless/h1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_StorageFailure(t *testing.T) {
	store := newMemDocumentStore()
	store.err = errors.New("disk full")
	r := newDocumentRouter(store)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/collections/homeless", ""},
		{http.MethodGet, "/api/v1/collections/homeless/h1", ""},
		{http.MethodPut, "/api/v1/collections/homeless/h1", `{"id":"h1","name":"Ann"}`},
		{http.MethodDelete, "/api/v1/collections/homeless/h1", ""},
	} {
		w := serve(r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.method+" "+tc.path)
	}
}
