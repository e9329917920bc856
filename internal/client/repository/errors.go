package repository

import (
	"errors"

	"github.com/iudanet/outreach/internal/client/storage"
)

var (
	// ErrLocalStore wraps every local store failure. Nothing is queued or sent when it occurs.
	ErrLocalStore = errors.New("local store failure")

	// ErrCorruptPayload reports a queued mutation whose payload cannot be decoded
	ErrCorruptPayload = storage.ErrCorruptPayload

	// ErrNotReachable is returned by Refresh while the remote store is unreachable
	ErrNotReachable = errors.New("remote store is not reachable")

	// ErrPendingChanges is returned by Refresh while local changes wait in the queue
	ErrPendingChanges = errors.New("local changes are waiting to be synced")
)
