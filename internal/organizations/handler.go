// Package organizations serves organization lookups and member lists.
package organizations

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/access"
	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
	"github.com/opsdesk/backend/pkg/response"
)

// Store is the data access the handler needs.
type Store interface {
	List(ctx context.Context) ([]*models.Organization, error)
	ListMembers(ctx context.Context, scope query.Scope) ([]models.Member, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /organizations. Platform admins see every organization,
// members only their own.
func (h *Handler) List(c *gin.Context) {
	snap := access.FromContext(c)
	if !snap.IsPlatformAdmin() {
		list := []*models.Organization{}
		if snap != nil && snap.Membership != nil {
			org := snap.Membership.Organization
			list = append(list, &org)
		}
		response.OK(c, list)
		return
	}
	orgs, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list organizations", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /members for the effective organization.
func (h *Handler) ListMembers(c *gin.Context) {
	scope, err := access.FromContext(c).Scope()
	if err != nil {
		response.Forbidden(c, "no effective organization")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), scope)
	if err != nil {
		h.logger.Error("list members", zap.String("organization_id", scope.OrganizationID().String()), zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	if members == nil {
		members = []models.Member{}
	}
	response.OK(c, members)
}
