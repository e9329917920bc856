package storage

import (
	"context"
	"iter"

	"github.com/tidwall/gjson"

	"github.com/iudanet/outreach/internal/models"
)

//go:generate moq -out localstore_mock.go . LocalStore

// LocalStore is the durable on-device cache of records, keyed by (type, id).
// Values are JSON snapshots of models.Record.
type LocalStore interface {
	// Insert stores a new record. Returns ErrRecordExists if the id is taken.
	Insert(ctx context.Context, rec models.Record) error

	// Update replaces an existing record. Returns ErrRecordNotFound if absent.
	Update(ctx context.Context, rec models.Record) error

	// Upsert stores the record regardless of whether it exists
	Upsert(ctx context.Context, rec models.Record) error

	// Delete removes the record and applies the relation policies of its type
	// in the same transaction. Returns ErrRecordNotFound if absent.
	Delete(ctx context.Context, t models.EntityType, id string) (*Cascade, error)

	// Get returns the raw JSON snapshot of the record
	Get(ctx context.Context, t models.EntityType, id string) ([]byte, error)

	// List lazily iterates over the records of a type in id order.
	// A nil filter matches everything.
	List(ctx context.Context, t models.EntityType, filter Filter) iter.Seq2[[]byte, error]

	// Subscribe returns a channel signalled after every committed change of type t.
	// The returned func releases the subscription.
	Subscribe(t models.EntityType) (<-chan struct{}, func())
}

// Filter selects records by their raw JSON snapshot
type Filter func(raw []byte) bool

// FieldEquals matches records whose JSON field equals value
func FieldEquals(field, value string) Filter {
	return func(raw []byte) bool {
		return gjson.GetBytes(raw, field).String() == value
	}
}

// Ref identifies a stored record
type Ref struct {
	Type models.EntityType
	ID   string
}

// Snapshot is a record rewritten by a delete of its parent
type Snapshot struct {
	Ref
	Payload []byte
}

// Cascade lists the dependents changed by a delete.
// Deleted holds cascaded removals, Updated holds set-null rewrites.
type Cascade struct {
	Deleted []Ref
	Updated []Snapshot
}

// Empty reports whether the delete touched no dependents
func (c *Cascade) Empty() bool {
	return c == nil || (len(c.Deleted) == 0 && len(c.Updated) == 0)
}
