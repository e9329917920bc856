package models

import (
	"fmt"
	"time"
)

// EntityType идентифицирует тип синхронизируемой записи (и коллекцию на сервере)
type EntityType string

const (
	EntityHomeless   EntityType = "homeless"   // человек, которому помогают
	EntityVolunteer  EntityType = "volunteer"  // профиль волонтёра
	EntityRequest    EntityType = "request"    // запрос помощи
	EntityUpdate     EntityType = "update"     // обновление статуса
	EntityPreference EntityType = "preference" // связь волонтёр <-> подопечный
)

// EntityTypes lists every entity type in a fixed order.
// Parents come before their dependents.
var EntityTypes = []EntityType{
	EntityVolunteer,
	EntityHomeless,
	EntityRequest,
	EntityUpdate,
	EntityPreference,
}

// Valid reports whether t is one of the known entity types
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType converts a collection name into an EntityType
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// Record is implemented by every entity that the engine stores and synchronizes.
type Record interface {
	// GetID returns the client-assigned, stable identifier
	GetID() string
	// SetID assigns the identifier (only used at creation)
	SetID(id string)
	// EntityType returns the type tag of the record
	EntityType() EntityType
	// Validate checks required fields and closed enumerations
	Validate() error
	// Touch sets UpdatedAt (and CreatedAt on first call)
	Touch(now time.Time)
}

// Meta holds the fields shared by all records.
type Meta struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
}

// GetID returns the record identifier
func (m *Meta) GetID() string {
	return m.ID
}

// SetID assigns the record identifier
func (m *Meta) SetID(id string) {
	m.ID = id
}

// Touch обновляет UpdatedAt; CreatedAt выставляется только один раз
func (m *Meta) Touch(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

func (m *Meta) validateID() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	return nil
}
