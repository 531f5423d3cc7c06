// Package modules resolves which feature modules an organization is subscribed to.
package modules

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
	"github.com/opsdesk/backend/pkg/metrics"
)

// Set is the closed set of module codes an organization may use.
type Set map[string]struct{}

// NewSet builds a Set from codes.
func NewSet(codes ...string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether code has an active subscription. Absent means denied.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the codes in sorted order.
func (s Set) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Repository reads organization subscriptions.
type Repository struct {
	runner *query.Runner
}

// NewRepository creates a modules repository.
func NewRepository(runner *query.Runner) *Repository {
	return &Repository{runner: runner}
}

// ListActiveCodes returns module codes with an active subscription for the organization.
func (r *Repository) ListActiveCodes(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	rows, err := r.runner.Query(ctx, query.Spec{
		Table:   "organization_subscriptions",
		Columns: []string{"modules.code"},
		Joins:   []query.Join{{Table: "modules", Column: "id", On: "organization_subscriptions.module_id"}},
		Scope:   query.ForOrganization(orgID),
		Where:   []query.Predicate{query.Eq("organization_subscriptions.status", models.SubscriptionActive)},
		OrderBy: []query.Order{query.Asc("modules.code")},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Store is the data access the resolver needs.
type Store interface {
	ListActiveCodes(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// Resolver resolves module subscriptions.
type Resolver struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a module subscription resolver.
func NewResolver(store Store, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger, metrics: m}
}

// ActiveModules returns the organization's subscribed modules. A nil
// organization or a backend failure yields an empty set.
func (r *Resolver) ActiveModules(ctx context.Context, orgID uuid.UUID) Set {
	if orgID == uuid.Nil {
		return Set{}
	}
	codes, err := r.store.ListActiveCodes(ctx, orgID)
	if err != nil {
		r.logger.Error("resolve modules", zap.String("organization_id", orgID.String()), zap.Error(err))
		r.metrics.ResolverFailure("modules")
		return Set{}
	}
	return NewSet(codes...)
}
