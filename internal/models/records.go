package models

import (
	"fmt"
	"strings"
)

// Homeless представляет человека, которому помогают волонтёры.
type Homeless struct {
	Meta
	Name        string `json:"name"`                 // Name имя или описание для опознания
	Nickname    string `json:"nickname,omitempty"`   // Nickname прозвище
	Gender      string `json:"gender,omitempty"`     // Gender пол (свободная форма)
	Location    string `json:"location,omitempty"`   // Location где обычно находится
	Description string `json:"description,omitempty"`
	CreatorID   string `json:"creator_id,omitempty"` // CreatorID волонтёр, создавший запись (set-null)
	Age         int    `json:"age,omitempty"`
}

// EntityType implements Record
func (h *Homeless) EntityType() EntityType { return EntityHomeless }

// Validate implements Record
func (h *Homeless) Validate() error {
	if err := h.validateID(); err != nil {
		return err
	}
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: homeless name is required", ErrInvalidRecord)
	}
	if h.Age < 0 {
		return fmt.Errorf("%w: age cannot be negative", ErrInvalidRecord)
	}
	return nil
}

// Volunteer представляет профиль волонтёра.
type Volunteer struct {
	Meta
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// EntityType implements Record
func (v *Volunteer) EntityType() EntityType { return EntityVolunteer }

// Validate implements Record
func (v *Volunteer) Validate() error {
	if err := v.validateID(); err != nil {
		return err
	}
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: volunteer name is required", ErrInvalidRecord)
	}
	if v.Email != "" && !strings.Contains(v.Email, "@") {
		return fmt.Errorf("%w: malformed email %q", ErrInvalidRecord, v.Email)
	}
	return nil
}

// RequestStatus статус запроса помощи
type RequestStatus string

const (
	RequestTodo RequestStatus = "todo"
	RequestDone RequestStatus = "done"
)

// Valid reports whether s is a known request status
func (s RequestStatus) Valid() bool {
	return s == RequestTodo || s == RequestDone
}

// Request представляет запрос помощи для конкретного человека.
type Request struct {
	Meta
	HomelessID  string        `json:"homeless_id"`          // HomelessID владелец (cascade)
	CreatorID   string        `json:"creator_id,omitempty"` // CreatorID автор (set-null)
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      RequestStatus `json:"status"`
}

// EntityType implements Record
func (r *Request) EntityType() EntityType { return EntityRequest }

// Validate implements Record
func (r *Request) Validate() error {
	if err := r.validateID(); err != nil {
		return err
	}
	if r.HomelessID == "" {
		return fmt.Errorf("%w: request must reference a homeless record", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: request title is required", ErrInvalidRecord)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown request status %q", ErrInvalidRecord, r.Status)
	}
	return nil
}

// UpdateStatus цветовой статус обновления
type UpdateStatus string

const (
	UpdateGreen  UpdateStatus = "green"
	UpdateYellow UpdateStatus = "yellow"
	UpdateRed    UpdateStatus = "red"
	UpdateGray   UpdateStatus = "gray"
)

// Valid reports whether s is a known update status
func (s UpdateStatus) Valid() bool {
	switch s {
	case UpdateGreen, UpdateYellow, UpdateRed, UpdateGray:
		return true
	}
	return false
}

// Update представляет заметку о состоянии человека.
type Update struct {
	Meta
	HomelessID string       `json:"homeless_id"`
	CreatorID  string       `json:"creator_id,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	Status     UpdateStatus `json:"status"`
}

// EntityType implements Record
func (u *Update) EntityType() EntityType { return EntityUpdate }

// Validate implements Record
func (u *Update) Validate() error {
	if err := u.validateID(); err != nil {
		return err
	}
	if u.HomelessID == "" {
		return fmt.Errorf("%w: update must reference a homeless record", ErrInvalidRecord)
	}
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown update status %q", ErrInvalidRecord, u.Status)
	}
	return nil
}

// Preference связывает волонтёра с подопечным (избранное).
type Preference struct {
	Meta
	VolunteerID string `json:"volunteer_id"`
	HomelessID  string `json:"homeless_id"`
	Notify      bool   `json:"notify"`
}

// EntityType implements Record
func (p *Preference) EntityType() EntityType { return EntityPreference }

// Validate implements Record
func (p *Preference) Validate() error {
	if err := p.validateID(); err != nil {
		return err
	}
	if p.VolunteerID == "" || p.HomelessID == "" {
		return fmt.Errorf("%w: preference must reference a volunteer and a homeless record", ErrInvalidRecord)
	}
	return nil
}

// NewRecord allocates an empty record of the given type.
func NewRecord(t EntityType) (Record, error) {
	switch t {
	case EntityHomeless:
		return &Homeless{}, nil
	case EntityVolunteer:
		return &Volunteer{}, nil
	case EntityRequest:
		return &Request{}, nil
	case EntityUpdate:
		return &Update{}, nil
	case EntityPreference:
		return &Preference{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}
