// Package repository is the façade the CLI talks to: every write lands in the
// local store first, then either reaches the remote store directly or is
// queued for the sync worker.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/outreach/internal/client/remote"
	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

// WriteResult tells the caller where a successful write ended up
type WriteResult int

const (
	// Synced the remote store confirmed the write
	Synced WriteResult = iota + 1
	// SavedLocally the write is stored locally and queued for sync
	SavedLocally
)

func (r WriteResult) String() string {
	switch r {
	case Synced:
		return "synced"
	case SavedLocally:
		return "saved locally, will sync"
	}
	return "unknown"
}

//go:generate moq -out remotestore_mock.go . RemoteStore

// RemoteStore is the part of remote.Client used by repositories
type RemoteStore interface {
	Put(ctx context.Context, collection, id string, doc json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]json.RawMessage, error)
}

// Connectivity reports the current reachability of the remote store
type Connectivity interface {
	Reachable() bool
}

// DrainLocks is implemented by sync.Locks
type DrainLocks interface {
	TryLock(t models.EntityType) (func(), bool)
}

// SyncRequester asks the scheduler for a sync pass
type SyncRequester interface {
	Trigger()
}

// Deps are the collaborators shared by all repositories
type Deps struct {
	Store  storage.LocalStore
	Queue  storage.MutationQueue
	Remote RemoteStore
	Conn   Connectivity
	Locks  DrainLocks
	Sync   SyncRequester // может быть nil
	Logger *slog.Logger
	Now    func() time.Time // может быть nil
}

// Repository is the façade for one entity type
type Repository[T models.Record] struct {
	deps      Deps
	newRecord func() T
	registry  *Registry
	et        models.EntityType
	writeMu   sync.Mutex // сериализует запись одного типа от локальной записи до отправки/постановки в очередь
}

// New creates a repository. newRecord must return a fresh zero record of the
// repository's entity type.
func New[T models.Record](deps Deps, newRecord func() T) *Repository[T] {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Repository[T]{
		deps:      deps,
		newRecord: newRecord,
		et:        newRecord().EntityType(),
	}
}

// EntityType implements sync.Syncable
func (r *Repository[T]) EntityType() models.EntityType {
	return r.et
}

// Add assigns an id when missing, stores the record and propagates it
func (r *Repository[T]) Add(ctx context.Context, rec T) (WriteResult, error) {
	if rec.GetID() == "" {
		rec.SetID(uuid.NewString())
	}
	rec.Touch(r.deps.Now())
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s: %w", r.et, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.deps.Store.Insert(ctx, rec); err != nil {
		return 0, fmt.Errorf("%w: insert %s/%s: %w", ErrLocalStore, r.et, rec.GetID(), err)
	}

	return r.propagate(ctx, models.OpAdd, rec.GetID(), payload)
}

// Update replaces an existing record and propagates it
func (r *Repository[T]) Update(ctx context.Context, rec T) (WriteResult, error) {
	rec.Touch(r.deps.Now())
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s: %w", r.et, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.deps.Store.Update(ctx, rec); err != nil {
		return 0, fmt.Errorf("%w: update %s/%s: %w", ErrLocalStore, r.et, rec.GetID(), err)
	}

	return r.propagate(ctx, models.OpUpdate, rec.GetID(), payload)
}

// Delete removes the record with its relation policies applied locally,
// mirrors the affected dependents and propagates the delete.
func (r *Repository[T]) Delete(ctx context.Context, id string) (WriteResult, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cascade, err := r.deps.Store.Delete(ctx, r.et, id)
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s/%s: %w", ErrLocalStore, r.et, id, err)
	}

	if !cascade.Empty() {
		r.mirrorCascade(ctx, cascade)
	}

	return r.propagate(ctx, models.OpDelete, id, nil)
}

func (r *Repository[T]) mirrorCascade(ctx context.Context, cascade *storage.Cascade) {
	if r.registry == nil {
		r.deps.Logger.Warn("No registry, cascade not mirrored", "entity_type", r.et)
		return
	}

	for _, ref := range cascade.Deleted {
		if _, err := r.registry.mirror(ctx, ref.Type, models.OpDelete, ref.ID, nil); err != nil {
			r.deps.Logger.Warn("Failed to mirror cascade delete", "entity_type", ref.Type, "record_id", ref.ID, "error", err)
		}
	}
	for _, snap := range cascade.Updated {
		if _, err := r.registry.mirror(ctx, snap.Type, models.OpUpdate, snap.ID, snap.Payload); err != nil {
			r.deps.Logger.Warn("Failed to mirror cascade update", "entity_type", snap.Type, "record_id", snap.ID, "error", err)
		}
	}
}

// mirrorWrite propagates a change already applied to the local store by a cascade
func (r *Repository[T]) mirrorWrite(ctx context.Context, op models.Operation, id string, payload []byte) (WriteResult, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.propagate(ctx, op, id, payload)
}

// propagate sends the mutation directly when that cannot overtake queued
// mutations of the same type, and enqueues it otherwise. Caller holds writeMu.
func (r *Repository[T]) propagate(ctx context.Context, op models.Operation, id string, payload []byte) (WriteResult, error) {
	m := &models.QueuedMutation{EntityType: r.et, Operation: op, RecordID: id, Payload: payload}

	if r.deps.Conn.Reachable() {
		synced, err := r.tryDirect(ctx, m)
		switch {
		case synced:
			return Synced, nil
		case remote.IsRejected(err):
			// сервер отклонил запись: в очередь не ставим, локальная запись остаётся
			return 0, err
		case err != nil:
			r.deps.Logger.Info("Remote write failed, queueing", "entity_type", r.et, "record_id", id, "error", err)
		}
	}

	seq, err := r.deps.Queue.Enqueue(ctx, r.et, op, id, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: enqueue %s/%s: %w", ErrLocalStore, r.et, id, err)
	}
	r.deps.Logger.Debug("Mutation queued", "entity_type", r.et, "operation", op, "record_id", id, "seq", seq)

	if r.deps.Sync != nil && r.deps.Conn.Reachable() {
		r.deps.Sync.Trigger()
	}
	return SavedLocally, nil
}

// tryDirect returns synced=false with a nil error when the direct path is not allowed
func (r *Repository[T]) tryDirect(ctx context.Context, m *models.QueuedMutation) (bool, error) {
	// воркер дренирует этот тип: прямая запись могла бы обогнать очередь
	unlock, ok := r.deps.Locks.TryLock(r.et)
	if !ok {
		return false, nil
	}
	defer unlock()

	pending, err := r.deps.Queue.Pending(ctx, r.et)
	if err != nil || pending > 0 {
		return false, nil
	}

	if err := r.ApplyRemote(ctx, m); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyRemote implements sync.Syncable: it performs the remote call for one
// mutation. Undecodable payloads return ErrCorruptPayload.
func (r *Repository[T]) ApplyRemote(ctx context.Context, m *models.QueuedMutation) error {
	switch m.Operation {
	case models.OpAdd, models.OpUpdate:
		rec := r.newRecord()
		if err := json.Unmarshal(m.Payload, rec); err != nil {
			return fmt.Errorf("%w: %s/%s: %w", ErrCorruptPayload, r.et, m.RecordID, err)
		}
		if rec.GetID() != m.RecordID {
			return fmt.Errorf("%w: %s/%s: payload id %q", ErrCorruptPayload, r.et, m.RecordID, rec.GetID())
		}
		return r.deps.Remote.Put(ctx, string(r.et), m.RecordID, m.Payload)
	case models.OpDelete:
		return r.deps.Remote.Delete(ctx, string(r.et), m.RecordID)
	}
	return fmt.Errorf("%w: unknown operation %q", ErrCorruptPayload, m.Operation)
}

func (r *Repository[T]) decode(raw []byte) (T, error) {
	rec := r.newRecord()
	if err := json.Unmarshal(raw, rec); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: decode %s: %w", ErrLocalStore, r.et, err)
	}
	return rec, nil
}

// GetByID reads a record from the local store
func (r *Repository[T]) GetByID(ctx context.Context, id string) (T, error) {
	raw, err := r.deps.Store.Get(ctx, r.et, id)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: get %s/%s: %w", ErrLocalStore, r.et, id, err)
	}
	return r.decode(raw)
}

// All lazily iterates over the local records matching filter
func (r *Repository[T]) All(ctx context.Context, filter storage.Filter) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for raw, err := range r.deps.Store.List(ctx, r.et, filter) {
			if err != nil {
				var zero T
				yield(zero, fmt.Errorf("%w: list %s: %w", ErrLocalStore, r.et, err))
				return
			}
			rec, err := r.decode(raw)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// List collects All into a slice
func (r *Repository[T]) List(ctx context.Context, filter storage.Filter) ([]T, error) {
	items := []T{}
	for rec, err := range r.All(ctx, filter) {
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, nil
}

// Observe emits the full list of records on subscribe and after every local
// change of the type. The channel is closed when ctx is done.
func (r *Repository[T]) Observe(ctx context.Context) <-chan []T {
	out := make(chan []T, 1)
	changes, cancel := r.deps.Store.Subscribe(r.et)

	go func() {
		defer close(out)
		defer cancel()

		emit := func() bool {
			items, err := r.List(ctx, nil)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				r.deps.Logger.Warn("Observe failed to list records", "entity_type", r.et, "error", err)
				return true
			}
			select {
			case out <- items:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !emit() {
					return
				}
			}
		}
	}()

	return out
}

// Pending returns the number of queued mutations of this type
func (r *Repository[T]) Pending(ctx context.Context) (int, error) {
	return r.deps.Queue.Pending(ctx, r.et)
}

// Refresh pulls the remote collection into the local store. It only runs
// while the remote store is reachable and nothing of this type is queued,
// so it never overwrites local changes that have not been synced.
func (r *Repository[T]) Refresh(ctx context.Context) (int, error) {
	if !r.deps.Conn.Reachable() {
		return 0, ErrNotReachable
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	pending, err := r.deps.Queue.Pending(ctx, r.et)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLocalStore, err)
	}
	if pending > 0 {
		return 0, ErrPendingChanges
	}

	docs, err := r.deps.Remote.List(ctx, string(r.et))
	if err != nil {
		return 0, fmt.Errorf("refresh %s: %w", r.et, err)
	}

	stored := 0
	for _, doc := range docs {
		rec := r.newRecord()
		if err := json.Unmarshal(doc, rec); err != nil || rec.GetID() == "" {
			r.deps.Logger.Warn("Skipping malformed remote document", "entity_type", r.et)
			continue
		}
		if err := r.deps.Store.Upsert(ctx, rec); err != nil {
			return stored, fmt.Errorf("%w: upsert %s/%s: %w", ErrLocalStore, r.et, rec.GetID(), err)
		}
		stored++
	}

	r.deps.Logger.Info("Refreshed from remote", "entity_type", r.et, "count", stored)
	return stored, nil
}
