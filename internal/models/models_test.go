package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		record  Record
		name    string
		wantErr bool
	}{
		{
			name:   "valid homeless",
			record: &Homeless{Meta: Meta{ID: "h-1"}, Name: "John"},
		},
		{
			name:    "homeless without id",
			record:  &Homeless{Name: "John"},
			wantErr: true,
		},
		{
			name:    "homeless without name",
			record:  &Homeless{Meta: Meta{ID: "h-1"}, Name: "   "},
			wantErr: true,
		},
		{
			name:    "homeless with negative age",
			record:  &Homeless{Meta: Meta{ID: "h-1"}, Name: "John", Age: -1},
			wantErr: true,
		},
		{
			name:   "valid volunteer",
			record: &Volunteer{Meta: Meta{ID: "v-1"}, Name: "Anna", Email: "anna@example.org"},
		},
		{
			name:    "volunteer with malformed email",
			record:  &Volunteer{Meta: Meta{ID: "v-1"}, Name: "Anna", Email: "anna"},
			wantErr: true,
		},
		{
			name:   "valid request",
			record: &Request{Meta: Meta{ID: "r-1"}, HomelessID: "h-1", Title: "Blanket", Status: RequestTodo},
		},
		{
			name:    "request with unknown status",
			record:  &Request{Meta: Meta{ID: "r-1"}, HomelessID: "h-1", Title: "Blanket", Status: "later"},
			wantErr: true,
		},
		{
			name:    "request without owner",
			record:  &Request{Meta: Meta{ID: "r-1"}, Title: "Blanket", Status: RequestDone},
			wantErr: true,
		},
		{
			name:   "valid update",
			record: &Update{Meta: Meta{ID: "u-1"}, HomelessID: "h-1", Status: UpdateGray},
		},
		{
			name:    "update with unknown status",
			record:  &Update{Meta: Meta{ID: "u-1"}, HomelessID: "h-1", Status: "blue"},
			wantErr: true,
		},
		{
			name:   "valid preference",
			record: &Preference{Meta: Meta{ID: "p-1"}, VolunteerID: "v-1", HomelessID: "h-1"},
		},
		{
			name:    "preference without volunteer",
			record:  &Preference{Meta: Meta{ID: "p-1"}, HomelessID: "h-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMeta_Touch(t *testing.T) {
	h := &Homeless{Name: "John"}
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	h.Touch(first)
	assert.Equal(t, first, h.CreatedAt)
	assert.Equal(t, first, h.UpdatedAt)

	// CreatedAt не должен меняться при повторном вызове
	h.Touch(second)
	assert.Equal(t, first, h.CreatedAt)
	assert.Equal(t, second, h.UpdatedAt)
}

func TestNewRecord(t *testing.T) {
	for _, et := range EntityTypes {
		t.Run(string(et), func(t *testing.T) {
			rec, err := NewRecord(et)
			require.NoError(t, err)
			assert.Equal(t, et, rec.EntityType())
		})
	}

	_, err := NewRecord("unknown")
	assert.Error(t, err)
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("request")
	require.NoError(t, err)
	assert.Equal(t, EntityRequest, et)

	_, err = ParseEntityType("requests")
	assert.Error(t, err)
}

func TestDependents(t *testing.T) {
	deps := Dependents(EntityHomeless)
	require.Len(t, deps, 3)
	for _, rel := range deps {
		assert.Equal(t, Cascade, rel.Policy)
		assert.Equal(t, "homeless_id", rel.Field)
	}

	var setNull int
	for _, rel := range Dependents(EntityVolunteer) {
		if rel.Policy == SetNull {
			setNull++
			assert.Equal(t, "creator_id", rel.Field)
		}
	}
	assert.Equal(t, 3, setNull)

	assert.Empty(t, Dependents(EntityRequest))
}
