package models

import (
	"fmt"
	"time"
)

// Operation тип изменения в очереди
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation
func (op Operation) Valid() bool {
	return op == OpAdd || op == OpUpdate || op == OpDelete
}

// ParseOperation converts a string into an Operation
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

// QueuedMutation представляет отложенную операцию записи, ожидающую отправки на сервер.
// Payload содержит JSON-снимок записи на момент постановки в очередь.
type QueuedMutation struct {
	EnqueuedAt time.Time  `cbor:"1,keyasint" json:"enqueued_at"`
	EntityType EntityType `cbor:"2,keyasint" json:"entity_type"`
	Operation  Operation  `cbor:"3,keyasint" json:"operation"`
	RecordID   string     `cbor:"4,keyasint" json:"record_id"`
	Payload    []byte     `cbor:"5,keyasint" json:"payload"`
	Seq        uint64     `cbor:"-" json:"seq"` // Seq ключ в bbolt, не хранится в значении
}
