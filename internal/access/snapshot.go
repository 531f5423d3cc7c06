// Package access combines the session, module and role resolvers into a
// per-session permission snapshot, and gates handlers on it.
//
// Gate decisions only decide what a caller is shown. Every query is still
// scoped by the effective organization and the database policies remain the
// authorization boundary.
package access

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/modules"
	"github.com/opsdesk/backend/internal/query"
	"github.com/opsdesk/backend/internal/roles"
)

// ErrNoEffectiveOrganization is returned by Scope when the session has no organization to read from.
var ErrNoEffectiveOrganization = errors.New("access: no effective organization")

// Snapshot is the immutable permission state of one session. Any identity or
// admin-context change produces a new Snapshot instead of mutating this one.
type Snapshot struct {
	User              *models.User
	Membership        *models.Membership
	PlatformAdmin     bool
	OrgAdmin          bool
	AdminOrganization *models.Organization
	Modules           modules.Set
	Permissions       roles.Set
	LoadedAt          time.Time
}

// Authenticated reports whether the snapshot belongs to a resolved user.
func (s *Snapshot) Authenticated() bool {
	return s != nil && s.User != nil
}

// IsPlatformAdmin reports whether the user has cross-organization rights.
func (s *Snapshot) IsPlatformAdmin() bool {
	return s != nil && s.PlatformAdmin
}

// IsOrgAdmin reports whether the user is an organization admin or higher.
func (s *Snapshot) IsOrgAdmin() bool {
	return s != nil && (s.OrgAdmin || s.PlatformAdmin)
}

// EffectiveOrganization returns the admin-selected organization, else the
// membership organization, else nil.
func (s *Snapshot) EffectiveOrganization() *models.Organization {
	if s == nil {
		return nil
	}
	if s.AdminOrganization != nil {
		return s.AdminOrganization
	}
	if s.Membership != nil {
		return &s.Membership.Organization
	}
	return nil
}

// EffectiveOrgID returns the id every data query must be scoped by, or uuid.Nil.
func (s *Snapshot) EffectiveOrgID() uuid.UUID {
	if org := s.EffectiveOrganization(); org != nil {
		return org.ID
	}
	return uuid.Nil
}

// Scope returns the query scope for the effective organization.
func (s *Snapshot) Scope() (query.Scope, error) {
	id := s.EffectiveOrgID()
	if id == uuid.Nil {
		return query.Scope{}, ErrNoEffectiveOrganization
	}
	return query.ForOrganization(id), nil
}

// HasModule reports whether the effective organization subscribes to code.
func (s *Snapshot) HasModule(code string) bool {
	return s != nil && s.Modules.Has(code)
}

// Can reports whether the user's role grants (action, module, resource).
func (s *Snapshot) Can(action, module, resource string) bool {
	return s != nil && s.Permissions.Can(action, module, resource)
}

// View is the JSON form of a snapshot.
type View struct {
	User                  *models.UserPublic   `json:"user"`
	Membership            *models.Membership   `json:"membership,omitempty"`
	PlatformAdmin         bool                 `json:"platform_admin"`
	OrgAdmin              bool                 `json:"org_admin"`
	EffectiveOrganization *models.Organization `json:"effective_organization,omitempty"`
	AdminContext          bool                 `json:"admin_context"`
	Modules               []string             `json:"modules"`
	Permissions           []roles.Permission   `json:"permissions"`
}

// View renders the snapshot for API responses.
func (s *Snapshot) View() View {
	if s == nil {
		return View{Modules: []string{}, Permissions: []roles.Permission{}}
	}
	v := View{
		Membership:            s.Membership,
		PlatformAdmin:         s.PlatformAdmin,
		OrgAdmin:              s.IsOrgAdmin(),
		EffectiveOrganization: s.EffectiveOrganization(),
		AdminContext:          s.AdminOrganization != nil,
		Modules:               s.Modules.Codes(),
		Permissions:           s.Permissions.List(),
	}
	if s.User != nil {
		pub := s.User.ToPublic()
		v.User = &pub
	}
	return v
}
