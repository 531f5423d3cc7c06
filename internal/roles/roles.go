// Package roles resolves the fine-grained permission grants of a role.
package roles

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
	"github.com/opsdesk/backend/pkg/metrics"
)

// Permission is one (action, module, resource) capability.
type Permission struct {
	Action   string `json:"action"`
	Module   string `json:"module"`
	Resource string `json:"resource"`
}

// String renders the permission as module:resource:action.
func (p Permission) String() string {
	return p.Module + ":" + p.Resource + ":" + p.Action
}

// Set is the grant set of a role. Membership is exact; there are no wildcards.
type Set map[Permission]struct{}

// NewSet builds a Set from permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Can reports whether an explicit grant for (action, module, resource) exists.
func (s Set) Can(action, module, resource string) bool {
	_, ok := s[Permission{Action: action, Module: module, Resource: resource}]
	return ok
}

// List returns the grants sorted by module, resource, action.
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Repository reads role permission grants.
type Repository struct {
	runner *query.Runner
}

// NewRepository creates a roles repository.
func NewRepository(runner *query.Runner) *Repository {
	return &Repository{runner: runner}
}

// ListGrants returns every grant of the role.
func (r *Repository) ListGrants(ctx context.Context, roleID uuid.UUID) ([]models.RolePermission, error) {
	rows, err := r.runner.Query(ctx, query.Spec{
		Table:   "role_permissions",
		Columns: []string{"id", "role_id", "module", "resource", "action"},
		Where:   []query.Predicate{query.Eq("role_id", roleID)},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.RolePermission
	for rows.Next() {
		var rp models.RolePermission
		if err := rows.Scan(&rp.ID, &rp.RoleID, &rp.Module, &rp.Resource, &rp.Action); err != nil {
			return nil, err
		}
		list = append(list, rp)
	}
	return list, rows.Err()
}

// Store is the data access the resolver needs.
type Store interface {
	ListGrants(ctx context.Context, roleID uuid.UUID) ([]models.RolePermission, error)
}

// Resolver resolves role grants.
type Resolver struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a role permission resolver.
func NewResolver(store Store, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger, metrics: m}
}

// Grants returns the role's grant set. A nil role or backend failure yields an empty set.
func (r *Resolver) Grants(ctx context.Context, roleID *uuid.UUID) Set {
	if roleID == nil || *roleID == uuid.Nil {
		return Set{}
	}
	list, err := r.store.ListGrants(ctx, *roleID)
	if err != nil {
		r.logger.Error("resolve role grants", zap.String("role_id", roleID.String()), zap.Error(err))
		r.metrics.ResolverFailure("roles")
		return Set{}
	}
	s := make(Set, len(list))
	for _, rp := range list {
		s[Permission{Action: rp.Action, Module: rp.Module, Resource: rp.Resource}] = struct{}{}
	}
	return s
}
