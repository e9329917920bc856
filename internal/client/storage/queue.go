package storage

import (
	"context"
	"time"

	"github.com/iudanet/outreach/internal/models"
)

//go:generate moq -out mutationqueue_mock.go . MutationQueue

// MutationQueue is the durable FIFO log of pending remote writes.
// Sequence numbers are global and strictly increasing; entries of one type
// are never reordered.
type MutationQueue interface {
	// Enqueue appends a mutation and returns its sequence number
	Enqueue(ctx context.Context, t models.EntityType, op models.Operation, recordID string, payload []byte) (uint64, error)

	// PeekPending returns the entries of type t enqueued at or before asOf,
	// ascending by sequence
	PeekPending(ctx context.Context, t models.EntityType, asOf time.Time) ([]models.QueuedMutation, error)

	// Remove deletes the entry. Removing a missing entry is not an error.
	Remove(ctx context.Context, seq uint64) error

	// IsEmpty reports whether nothing is queued for any type
	IsEmpty(ctx context.Context) (bool, error)

	// Pending returns the number of entries queued for type t
	Pending(ctx context.Context, t models.EntityType) (int, error)

	// PurgeCorrupt drops entries that cannot be decoded and returns their count
	PurgeCorrupt(ctx context.Context) (int, error)
}
