package repository

import (
	"context"
	"fmt"

	clientsync "github.com/iudanet/outreach/internal/client/sync"
	"github.com/iudanet/outreach/internal/models"
)

// Entity is the type-erased view of a Repository
type Entity interface {
	clientsync.Syncable
	Pending(ctx context.Context) (int, error)
	Refresh(ctx context.Context) (int, error)
	mirrorWrite(ctx context.Context, op models.Operation, id string, payload []byte) (WriteResult, error)
}

var (
	_ Entity = (*Repository[*models.Homeless])(nil)
	_ Entity = (*Repository[*models.Volunteer])(nil)
	_ Entity = (*Repository[*models.Request])(nil)
	_ Entity = (*Repository[*models.Update])(nil)
	_ Entity = (*Repository[*models.Preference])(nil)
)

// Registry owns one repository per entity type and routes cascade mirrors
// between them.
type Registry struct {
	Homeless   *Repository[*models.Homeless]
	Volunteer  *Repository[*models.Volunteer]
	Request    *Repository[*models.Request]
	Update     *Repository[*models.Update]
	Preference *Repository[*models.Preference]
	byType     map[models.EntityType]Entity
}

// NewRegistry builds every repository from the shared dependencies
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		Homeless:   New(deps, func() *models.Homeless { return &models.Homeless{} }),
		Volunteer:  New(deps, func() *models.Volunteer { return &models.Volunteer{} }),
		Request:    New(deps, func() *models.Request { return &models.Request{} }),
		Update:     New(deps, func() *models.Update { return &models.Update{} }),
		Preference: New(deps, func() *models.Preference { return &models.Preference{} }),
	}
	r.Homeless.registry = r
	r.Volunteer.registry = r
	r.Request.registry = r
	r.Update.registry = r
	r.Preference.registry = r

	r.byType = map[models.EntityType]Entity{
		models.EntityHomeless:   r.Homeless,
		models.EntityVolunteer:  r.Volunteer,
		models.EntityRequest:    r.Request,
		models.EntityUpdate:     r.Update,
		models.EntityPreference: r.Preference,
	}
	return r
}

// Get returns the repository of t
func (r *Registry) Get(t models.EntityType) (Entity, bool) {
	e, ok := r.byType[t]
	return e, ok
}

// All returns the repositories in models.EntityTypes order
func (r *Registry) All() []Entity {
	all := make([]Entity, 0, len(models.EntityTypes))
	for _, t := range models.EntityTypes {
		all = append(all, r.byType[t])
	}
	return all
}

// Syncables returns the worker's replay targets
func (r *Registry) Syncables() []clientsync.Syncable {
	targets := make([]clientsync.Syncable, 0, len(models.EntityTypes))
	for _, e := range r.All() {
		targets = append(targets, e)
	}
	return targets
}

func (r *Registry) mirror(ctx context.Context, t models.EntityType, op models.Operation, id string, payload []byte) (WriteResult, error) {
	e, ok := r.byType[t]
	if !ok {
		return 0, fmt.Errorf("no repository for %q", t)
	}
	return e.mirrorWrite(ctx, op, id, payload)
}
