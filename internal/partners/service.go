package partners

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/pkg/metrics"
)

// Store is the data access the service needs.
type Store interface {
	CountActive(ctx context.Context, hostID uuid.UUID) (int64, error)
	CountActivePair(ctx context.Context, hostID, candidateID uuid.UUID) (int64, error)
	ListActive(ctx context.Context, hostID uuid.UUID) ([]models.CrossOrganizationAccess, error)
}

// Service checks partner relationships. Every call issues its own query;
// nothing is cached. Backend failures are logged and treated as "no partner".
type Service struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a partners service.
func NewService(store Store, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, metrics: m}
}

// IsPartnerOf reports whether candidateID is an active partner of hostID.
func (s *Service) IsPartnerOf(ctx context.Context, hostID, candidateID uuid.UUID) bool {
	if hostID == uuid.Nil || candidateID == uuid.Nil {
		return false
	}
	n, err := s.store.CountActivePair(ctx, hostID, candidateID)
	if err != nil {
		s.fail("is partner", hostID, err)
		return false
	}
	return n > 0
}

// CountActivePartners returns the number of active partner relationships of hostID.
func (s *Service) CountActivePartners(ctx context.Context, hostID uuid.UUID) int64 {
	if hostID == uuid.Nil {
		return 0
	}
	n, err := s.store.CountActive(ctx, hostID)
	if err != nil {
		s.fail("count partners", hostID, err)
		return 0
	}
	return n
}

// ListActivePartners returns hostID's active partner relationships.
func (s *Service) ListActivePartners(ctx context.Context, hostID uuid.UUID) []models.CrossOrganizationAccess {
	if hostID == uuid.Nil {
		return []models.CrossOrganizationAccess{}
	}
	list, err := s.store.ListActive(ctx, hostID)
	if err != nil {
		s.fail("list partners", hostID, err)
		return []models.CrossOrganizationAccess{}
	}
	if list == nil {
		list = []models.CrossOrganizationAccess{}
	}
	return list
}

func (s *Service) fail(op string, hostID uuid.UUID, err error) {
	s.logger.Error(op, zap.String("host_organization_id", hostID.String()), zap.Error(err))
	s.metrics.ResolverFailure("partners")
}
