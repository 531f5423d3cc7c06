package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/modules"
	"github.com/opsdesk/backend/internal/roles"
	"github.com/opsdesk/backend/internal/session"
	"github.com/opsdesk/backend/pkg/metrics"
)

// ErrOrganizationNotFound is returned when an admin context target does not exist.
var ErrOrganizationNotFound = errors.New("access: organization not found")

// DefaultOrgAdminPositions are the staff positions that make a member an organization admin.
var DefaultOrgAdminPositions = []string{"Admin", "Super Admin"}

// OrganizationLookup finds organizations by id or slug, returning nil when absent.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
}

// Auditor records effective admin context changes.
type Auditor interface {
	Publish(ctx context.Context, event models.AdminContextEvent) error
}

// Deps wires the Service to its collaborators. Contexts and Auditor are optional.
type Deps struct {
	Sessions          *session.Resolver
	Modules           *modules.Resolver
	Roles             *roles.Resolver
	Organizations     OrganizationLookup
	Contexts          ContextStore
	Auditor           Auditor
	OrgAdminPositions []string
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// Service builds snapshots and switches the admin context.
type Service struct {
	sessions       *session.Resolver
	modules        *modules.Resolver
	roles          *roles.Resolver
	orgs           OrganizationLookup
	contexts       ContextStore
	auditor        Auditor
	adminPositions map[string]struct{}
	logger         *zap.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewService creates an access service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	positions := d.OrgAdminPositions
	if len(positions) == 0 {
		positions = DefaultOrgAdminPositions
	}
	set := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		set[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	return &Service{
		sessions:       d.Sessions,
		modules:        d.Modules,
		roles:          d.Roles,
		orgs:           d.Organizations,
		contexts:       d.Contexts,
		auditor:        d.Auditor,
		adminPositions: set,
		logger:         logger,
		metrics:        d.Metrics,
		now:            time.Now,
	}
}

func (s *Service) isOrgAdmin(m *models.Membership) bool {
	if m == nil {
		return false
	}
	if m.IsOwner {
		return true
	}
	if m.Position == nil {
		return false
	}
	_, ok := s.adminPositions[strings.ToLower(m.Position.Name)]
	return ok
}

// Load resolves the snapshot for an authenticated email. An unknown or
// inactive user yields an unauthenticated snapshot. The only error is
// session.ErrAmbiguousMembership.
func (s *Service) Load(ctx context.Context, email string) (*Snapshot, error) {
	user := s.sessions.ResolveUser(ctx, email)
	if user == nil {
		return &Snapshot{LoadedAt: s.now()}, nil
	}
	membership, err := s.sessions.ResolveMembership(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	base := Snapshot{
		User:          user,
		Membership:    membership,
		PlatformAdmin: user.IsPlatformAdmin,
		OrgAdmin:      s.isOrgAdmin(membership),
	}
	if base.PlatformAdmin {
		base.AdminOrganization = s.storedAdminOrganization(ctx, user.ID)
	}
	return s.build(ctx, base), nil
}

// storedAdminOrganization returns the organization a platform admin selected earlier, if it still exists.
func (s *Service) storedAdminOrganization(ctx context.Context, userID uuid.UUID) *models.Organization {
	if s.contexts == nil {
		return nil
	}
	orgID, ok, err := s.contexts.Get(ctx, userID)
	if err != nil {
		s.logger.Error("load admin context", zap.String("user_id", userID.String()), zap.Error(err))
		s.metrics.ResolverFailure("admin_context")
		return nil
	}
	if !ok {
		return nil
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		s.logger.Error("load admin context organization", zap.String("organization_id", orgID.String()), zap.Error(err))
		s.metrics.ResolverFailure("admin_context")
		return nil
	}
	if org == nil {
		s.logger.Warn("admin context organization no longer exists", zap.String("organization_id", orgID.String()))
		if err := s.contexts.Clear(ctx, userID); err != nil {
			s.logger.Error("clear stale admin context", zap.Error(err))
		}
	}
	return org
}

// build resolves modules for the effective organization and grants for the
// membership role concurrently, returning a new snapshot.
func (s *Service) build(ctx context.Context, base Snapshot) *Snapshot {
	snap := base
	snap.LoadedAt = s.now()
	orgID := snap.EffectiveOrgID()
	roleID := snap.Membership.RoleID()

	var (
		mods   modules.Set
		grants roles.Set
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mods = s.modules.ActiveModules(gctx, orgID)
		return nil
	})
	g.Go(func() error {
		grants = s.roles.Grants(gctx, roleID)
		return nil
	})
	// Resolvers degrade to empty sets instead of failing.
	_ = g.Wait()
	snap.Modules = mods
	snap.Permissions = grants
	return &snap
}

// SetAdminOrgContext makes orgID the effective organization for a platform
// admin. For anyone else it is a no-op returning snap unchanged.
func (s *Service) SetAdminOrgContext(ctx context.Context, snap *Snapshot, orgID uuid.UUID) (*Snapshot, error) {
	if !snap.IsPlatformAdmin() {
		s.ignored(snap, "set")
		return snap, nil
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		s.logger.Error("lookup admin context organization", zap.String("organization_id", orgID.String()), zap.Error(err))
		s.metrics.ResolverFailure("admin_context")
		return snap, err
	}
	if org == nil {
		return snap, ErrOrganizationNotFound
	}
	return s.switchTo(ctx, snap, org)
}

// SwitchToSlug resolves slug and makes it the effective organization when
// the caller is allowed to. It returns the resolved organization so callers
// can check whether the switch took effect.
func (s *Service) SwitchToSlug(ctx context.Context, snap *Snapshot, slug string) (*Snapshot, *models.Organization, error) {
	slug = models.NormalizeSlug(slug)
	if !models.ValidSlug(slug) {
		return snap, nil, ErrOrganizationNotFound
	}
	org, err := s.orgs.GetBySlug(ctx, slug)
	if err != nil {
		s.logger.Error("lookup organization slug", zap.String("slug", slug), zap.Error(err))
		s.metrics.ResolverFailure("admin_context")
		return snap, nil, err
	}
	if org == nil {
		return snap, nil, ErrOrganizationNotFound
	}
	if snap.EffectiveOrgID() == org.ID {
		return snap, org, nil
	}
	if !snap.IsPlatformAdmin() {
		s.ignored(snap, "set")
		return snap, org, nil
	}
	next, err := s.switchTo(ctx, snap, org)
	return next, org, err
}

func (s *Service) switchTo(ctx context.Context, snap *Snapshot, org *models.Organization) (*Snapshot, error) {
	if snap.AdminOrganization != nil && snap.AdminOrganization.ID == org.ID {
		return snap, nil
	}
	if s.contexts != nil {
		if err := s.contexts.Set(ctx, snap.User.ID, org.ID); err != nil {
			s.logger.Error("store admin context", zap.String("user_id", snap.User.ID.String()), zap.Error(err))
			return snap, err
		}
	}
	base := *snap
	base.AdminOrganization = org
	next := s.build(ctx, base)

	toID := org.ID
	s.audit(ctx, snap, models.AdminContextSet, &toID)
	s.metrics.AdminContextSwitch(models.AdminContextSet)
	s.logger.Info("admin context set",
		zap.String("user_id", snap.User.ID.String()),
		zap.String("organization_id", org.ID.String()),
		zap.String("slug", org.Slug),
	)
	return next, nil
}

// ClearAdminOrgContext drops a platform admin's selection so the effective
// organization reverts to their own membership.
func (s *Service) ClearAdminOrgContext(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	if !snap.IsPlatformAdmin() {
		s.ignored(snap, "clear")
		return snap, nil
	}
	if s.contexts != nil {
		if err := s.contexts.Clear(ctx, snap.User.ID); err != nil {
			s.logger.Error("clear admin context", zap.String("user_id", snap.User.ID.String()), zap.Error(err))
			return snap, err
		}
	}
	if snap.AdminOrganization == nil {
		return snap, nil
	}
	base := *snap
	base.AdminOrganization = nil
	next := s.build(ctx, base)

	s.audit(ctx, snap, models.AdminContextClear, nil)
	s.metrics.AdminContextSwitch(models.AdminContextClear)
	s.logger.Info("admin context cleared", zap.String("user_id", snap.User.ID.String()))
	return next, nil
}

func (s *Service) ignored(snap *Snapshot, action string) {
	s.metrics.AdminContextSwitch("ignored")
	fields := []zap.Field{zap.String("action", action)}
	if snap.Authenticated() {
		fields = append(fields, zap.String("user_id", snap.User.ID.String()))
	}
	s.logger.Debug("admin context change ignored for non platform admin", fields...)
}

func (s *Service) audit(ctx context.Context, prev *Snapshot, action string, to *uuid.UUID) {
	if s.auditor == nil {
		return
	}
	event := models.AdminContextEvent{
		ID:               uuid.New(),
		UserID:           prev.User.ID,
		Action:           action,
		ToOrganizationID: to,
		OccurredAt:       s.now().UTC(),
	}
	if prev.AdminOrganization != nil {
		from := prev.AdminOrganization.ID
		event.FromOrganizationID = &from
	}
	if err := s.auditor.Publish(ctx, event); err != nil {
		s.logger.Error("publish admin context event", zap.String("event_id", event.ID.String()), zap.Error(err))
	}
}
