// Package partners answers cross-organization access questions for a host organization.
package partners

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
)

// Repository reads cross_organization_access rows.
type Repository struct {
	runner *query.Runner
}

// NewRepository creates a partners repository.
func NewRepository(runner *query.Runner) *Repository {
	return &Repository{runner: runner}
}

func activePartnerSpec(hostID uuid.UUID, extra ...query.Predicate) query.Spec {
	return query.Spec{
		Table:   "cross_organization_access",
		Columns: []string{"id", "host_organization_id", "partner_organization_id", "relationship_type", "status", "created_at"},
		Scope:   query.ForOrganization(hostID),
		Where: append([]query.Predicate{
			query.Eq("relationship_type", models.RelationshipPartner),
			query.Eq("status", models.AccessActive),
		}, extra...),
	}
}

// CountActive counts active partner rows of the host.
func (r *Repository) CountActive(ctx context.Context, hostID uuid.UUID) (int64, error) {
	return r.runner.Count(ctx, activePartnerSpec(hostID))
}

// CountActivePair counts active partner rows linking host to candidate.
func (r *Repository) CountActivePair(ctx context.Context, hostID, candidateID uuid.UUID) (int64, error) {
	return r.runner.Count(ctx, activePartnerSpec(hostID, query.Eq("partner_organization_id", candidateID)))
}

// ListActive returns the host's active partner rows, oldest first.
func (r *Repository) ListActive(ctx context.Context, hostID uuid.UUID) ([]models.CrossOrganizationAccess, error) {
	spec := activePartnerSpec(hostID)
	spec.OrderBy = []query.Order{query.Asc("created_at")}
	rows, err := r.runner.Query(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CrossOrganizationAccess
	for rows.Next() {
		var a models.CrossOrganizationAccess
		if err := rows.Scan(&a.ID, &a.HostOrganizationID, &a.PartnerOrganizationID, &a.RelationshipType, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
