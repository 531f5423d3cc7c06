package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
)

// Repository reads users and their memberships.
type Repository struct {
	runner *query.Runner
}

// NewRepository creates a session repository.
func NewRepository(runner *query.Runner) *Repository {
	return &Repository{runner: runner}
}

var userColumns = []string{
	"id", "email", "password_hash", "full_name", "is_active", "is_platform_admin", "created_at", "updated_at",
}

// GetActiveUserByEmail returns the active user with this email, or nil if none.
func (r *Repository) GetActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row, err := r.runner.QueryRow(ctx, query.Spec{
		Table:   "users",
		Columns: userColumns,
		Where:   []query.Predicate{query.Eq("email", email), query.Eq("is_active", true)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	var (
		u    models.User
		hash sql.NullString
	)
	err = row.Scan(&u.ID, &u.Email, &hash, &u.FullName, &u.IsActive, &u.IsPlatformAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Password = hash.String
	return &u, nil
}

var membershipColumns = []string{
	"organization_users.id",
	"organization_users.organization_id",
	"organization_users.user_id",
	"organization_users.is_owner",
	"organization_users.primary_position_id",
	"organization_users.status",
	"organization_users.created_at",
	"organization_users.updated_at",
	"organizations.name",
	"organizations.slug",
	"organizations.status",
	"staff_positions.id",
	"staff_positions.name",
	"staff_positions.color",
	"staff_positions.default_role_id",
}

// ListActiveMemberships returns up to limit active memberships of the user, oldest first,
// joined with organization and primary position.
func (r *Repository) ListActiveMemberships(ctx context.Context, userID uuid.UUID, limit int) ([]models.Membership, error) {
	rows, err := r.runner.Query(ctx, query.Spec{
		Table:   "organization_users",
		Columns: membershipColumns,
		Joins: []query.Join{
			{Table: "organizations", Column: "id", On: "organization_users.organization_id"},
			{Kind: query.LeftJoin, Table: "staff_positions", Column: "id", On: "organization_users.primary_position_id"},
		},
		// Membership lookup is keyed by user, before any organization is known.
		Scope: query.AllOrganizations(),
		Where: []query.Predicate{
			query.Eq("organization_users.user_id", userID),
			query.Eq("organization_users.status", models.MembershipActive),
		},
		OrderBy: []query.Order{query.Asc("organization_users.created_at")},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Membership
	for rows.Next() {
		var (
			m             models.Membership
			primaryPos    uuid.NullUUID
			posID         uuid.NullUUID
			posName       sql.NullString
			posColor      sql.NullString
			defaultRoleID uuid.NullUUID
		)
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.UserID, &m.IsOwner, &primaryPos, &m.Status, &m.CreatedAt, &m.UpdatedAt,
			&m.Organization.Name, &m.Organization.Slug, &m.Organization.Status,
			&posID, &posName, &posColor, &defaultRoleID,
		); err != nil {
			return nil, err
		}
		m.Organization.ID = m.OrganizationID
		if primaryPos.Valid {
			id := primaryPos.UUID
			m.PrimaryPositionID = &id
		}
		if posID.Valid {
			m.Position = &models.StaffPosition{ID: posID.UUID, Name: posName.String, Color: posColor.String}
			if defaultRoleID.Valid {
				roleID := defaultRoleID.UUID
				m.Position.DefaultRoleID = &roleID
			}
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
