package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrRecordNotFound indicates that record was not found in the local store
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists indicates an insert of an already stored id
	ErrRecordExists = errors.New("record already exists")

	// ErrCorruptPayload indicates a queued mutation whose payload cannot be decoded
	ErrCorruptPayload = errors.New("corrupt queued payload")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
