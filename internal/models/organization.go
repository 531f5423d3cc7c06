package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Organization status values.
const (
	OrgStatusActive    = "active"
	OrgStatusSuspended = "suspended"
)

// Membership status values.
const (
	MembershipActive   = "active"
	MembershipInactive = "inactive"
)

// Organization represents a tenant. Slug is the stable handle used in org-scoped URLs.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the organization is not suspended.
func (o *Organization) IsActive() bool {
	return o != nil && o.Status == OrgStatusActive
}

// StaffPosition is a named role template inside an organization.
type StaffPosition struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Color         string     `json:"color,omitempty"`
	DefaultRoleID *uuid.UUID `json:"default_role_id,omitempty"`
}

// OrganizationUser links a user to an organization.
type OrganizationUser struct {
	ID                uuid.UUID  `json:"id"`
	OrganizationID    uuid.UUID  `json:"organization_id"`
	UserID            uuid.UUID  `json:"user_id"`
	IsOwner           bool       `json:"is_owner"`
	PrimaryPositionID *uuid.UUID `json:"primary_position_id,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Membership is an active OrganizationUser joined with its organization and primary position.
type Membership struct {
	OrganizationUser
	Organization Organization   `json:"organization"`
	Position     *StaffPosition `json:"position,omitempty"`
}

// RoleID returns the permission role derived from the primary position, or nil.
func (m *Membership) RoleID() *uuid.UUID {
	if m == nil || m.Position == nil {
		return nil
	}
	return m.Position.DefaultRoleID
}

// Member is an organization member with user details (for GET /members).
type Member struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	IsOwner      bool      `json:"is_owner"`
	PositionName string    `json:"position_name,omitempty"`
	Status       string    `json:"status"`
	AddedAt      time.Time `json:"added_at"`
}

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// NormalizeSlug trims and lower-cases a slug from a path or form.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidSlug reports whether s is a well-formed organization slug.
func ValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}
