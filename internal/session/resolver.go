// Package session turns an authenticated email into a user and its organization membership.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/pkg/metrics"
)

// ErrAmbiguousMembership is returned when a user has more than one active membership.
// No tie-break is defined, so the session is refused rather than guessing an organization.
var ErrAmbiguousMembership = errors.New("session: user has more than one active membership")

// Store is the data access the resolver needs.
type Store interface {
	GetActiveUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListActiveMemberships(ctx context.Context, userID uuid.UUID, limit int) ([]models.Membership, error)
}

// Resolver resolves users and memberships. Backend failures are logged and
// reported as "not found" so callers deny by default.
type Resolver struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a session resolver.
func NewResolver(store Store, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger, metrics: m}
}

// NormalizeEmail lower-cases and trims an email for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveUser returns the active user for email, or nil.
func (r *Resolver) ResolveUser(ctx context.Context, email string) *models.User {
	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}
	u, err := r.store.GetActiveUserByEmail(ctx, email)
	if err != nil {
		r.logger.Error("resolve user", zap.String("email", email), zap.Error(err))
		r.metrics.ResolverFailure("session_user")
		return nil
	}
	return u
}

// ResolveMembership returns the user's single active membership, or nil when
// the user is unaffiliated. It fails only with ErrAmbiguousMembership.
func (r *Resolver) ResolveMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	list, err := r.store.ListActiveMemberships(ctx, userID, 2)
	if err != nil {
		r.logger.Error("resolve membership", zap.String("user_id", userID.String()), zap.Error(err))
		r.metrics.ResolverFailure("session_membership")
		return nil, nil
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return &list[0], nil
	default:
		r.logger.Error("ambiguous membership",
			zap.String("user_id", userID.String()),
			zap.String("first_org", list[0].OrganizationID.String()),
			zap.String("second_org", list[1].OrganizationID.String()),
		)
		r.metrics.AmbiguousMembership()
		return nil, ErrAmbiguousMembership
	}
}
