package organizations

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
)

// Repository handles organization and organization_user reads.
type Repository struct {
	runner *query.Runner
}

// NewRepository creates an organizations repository.
func NewRepository(runner *query.Runner) *Repository {
	return &Repository{runner: runner}
}

var orgColumns = []string{"id", "name", "slug", "status", "created_at", "updated_at"}

func (r *Repository) getOne(ctx context.Context, where query.Predicate) (*models.Organization, error) {
	row, err := r.runner.QueryRow(ctx, query.Spec{
		Table:   "organizations",
		Columns: orgColumns,
		Where:   []query.Predicate{where},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	var org models.Organization
	err = row.Scan(&org.ID, &org.Name, &org.Slug, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetByID returns an organization by ID, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.getOne(ctx, query.Eq("id", id))
}

// GetBySlug returns an organization by slug, or nil if it does not exist.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return r.getOne(ctx, query.Eq("slug", slug))
}

// List returns every organization ordered by name.
func (r *Repository) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.runner.Query(ctx, query.Spec{
		Table:   "organizations",
		Columns: orgColumns,
		OrderBy: []query.Order{query.Asc("name")},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}

// ListMembers returns the members of the scoped organization with user details.
func (r *Repository) ListMembers(ctx context.Context, scope query.Scope) ([]models.Member, error) {
	rows, err := r.runner.Query(ctx, query.Spec{
		Table: "organization_users",
		Columns: []string{
			"organization_users.id",
			"organization_users.user_id",
			"users.email",
			"users.full_name",
			"organization_users.is_owner",
			"staff_positions.name",
			"organization_users.status",
			"organization_users.created_at",
		},
		Joins: []query.Join{
			{Table: "users", Column: "id", On: "organization_users.user_id"},
			{Kind: query.LeftJoin, Table: "staff_positions", Column: "id", On: "organization_users.primary_position_id"},
		},
		Scope:   scope,
		OrderBy: []query.Order{query.Asc("organization_users.created_at")},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Member
	for rows.Next() {
		var (
			m        models.Member
			position sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.IsOwner, &position, &m.Status, &m.AddedAt); err != nil {
			return nil, err
		}
		m.PositionName = position.String
		list = append(list, m)
	}
	return list, rows.Err()
}
