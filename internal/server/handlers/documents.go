package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/outreach/internal/models"
	"github.com/iudanet/outreach/internal/server/storage"
	"github.com/iudanet/outreach/pkg/api"
)

// maxDocumentBody ограничивает размер одного документа
const maxDocumentBody = 1 << 20

// DocumentStore is the subset of storage.DocumentStorage the handler needs
type DocumentStore interface {
	PutDocument(ctx context.Context, doc *storage.Document) (bool, error)
	GetDocument(ctx context.Context, collection, id string) (*storage.Document, error)
	ListDocuments(ctx context.Context, collection string) ([]*storage.Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}

// DocumentHandler serves the per-collection document API of the remote store.
// Collections are the entity types; the last accepted write of a document wins.
type DocumentHandler struct {
	logger *slog.Logger
	store  DocumentStore
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(logger *slog.Logger, store DocumentStore) *DocumentHandler {
	return &DocumentHandler{
		logger: logger,
		store:  store,
	}
}

// List обрабатывает GET /api/v1/collections/{collection}
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	docs, err := h.store.ListDocuments(ctx, collection.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list documents",
			slog.String("collection", collection.String()), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.DocumentListResponse{
		Collection: collection.String(),
		Documents:  make([]json.RawMessage, 0, len(docs)),
	}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, d.Body)
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/collections/{collection}/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	doc, err := h.store.GetDocument(ctx, collection.String(), id)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			sendError(h.logger, w, "document not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get document",
			slog.String("collection", collection.String()),
			slog.String("id", id),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, doc.Body, http.StatusOK)
}

// Put обрабатывает PUT /api/v1/collections/{collection}/{id}.
// Тело должно быть валидной записью своего типа с тем же id, что и в пути.
func (h *DocumentHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(h.logger, w, "document too large", http.StatusRequestEntityTooLarge)
			return
		}
		sendError(h.logger, w, "failed to read body", http.StatusBadRequest)
		return
	}

	record, err := models.NewRecord(collection)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusNotFound)
		return
	}
	if err := json.Unmarshal(body, record); err != nil {
		h.logger.WarnContext(ctx, "malformed document",
			slog.String("collection", collection.String()),
			slog.String("id", id),
			slog.Any("error", err))
		sendError(h.logger, w, "invalid JSON document", http.StatusBadRequest)
		return
	}
	if record.GetID() != id {
		sendError(h.logger, w, "document id does not match path", http.StatusUnprocessableEntity)
		return
	}
	if err := record.Validate(); err != nil {
		h.logger.WarnContext(ctx, "document rejected",
			slog.String("collection", collection.String()),
			slog.String("id", id),
			slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		sendError(h.logger, w, "invalid JSON document", http.StatusBadRequest)
		return
	}

	doc := &storage.Document{
		Collection: collection.String(),
		ID:         id,
		Body:       compact.Bytes(),
		UpdatedBy:  userID,
	}

	created, err := h.store.PutDocument(ctx, doc)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to put document",
			slog.String("collection", collection.String()),
			slog.String("id", id),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.DebugContext(ctx, "document stored",
		slog.String("collection", collection.String()),
		slog.String("id", id),
		slog.String("user_id", userID),
		slog.Bool("created", created))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	sendJSON(h.logger, w, doc.Body, status)
}

// Delete обрабатывает DELETE /api/v1/collections/{collection}/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.store.DeleteDocument(ctx, collection.String(), id); err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			sendError(h.logger, w, "document not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete document",
			slog.String("collection", collection.String()),
			slog.String("id", id),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	userID, _ := GetUserID(ctx)
	h.logger.DebugContext(ctx, "document deleted",
		slog.String("collection", collection.String()),
		slog.String("id", id),
		slog.String("user_id", userID))

	w.WriteHeader(http.StatusNoContent)
}

// collection разбирает {collection}; неизвестная коллекция -> 404
func (h *DocumentHandler) collection(w http.ResponseWriter, r *http.Request) (models.EntityType, bool) {
	t, err := models.ParseEntityType(mux.Vars(r)["collection"])
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusNotFound)
		return "", false
	}
	return t, true
}
