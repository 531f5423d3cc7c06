package access

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsdesk/backend/pkg/response"
)

// Handler serves the snapshot and admin context endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an access handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetContextRequest is the body for POST /admin/context.
type SetContextRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

// ContextResponse reports whether an admin context change took effect.
type ContextResponse struct {
	Applied bool `json:"applied"`
	Access  View `json:"access"`
}

// Me handles GET /me/access and GET /orgs/:slug/access.
func (h *Handler) Me(c *gin.Context) {
	response.OK(c, FromContext(c).View())
}

// SetContext handles POST /admin/context. Non platform admins get the
// unchanged snapshot with applied=false.
func (h *Handler) SetContext(c *gin.Context) {
	var body SetContextRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "organization_id required")
		return
	}
	orgID, err := uuid.Parse(body.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	snap := FromContext(c)
	next, err := h.svc.SetAdminOrgContext(c.Request.Context(), snap, orgID)
	if errors.Is(err, ErrOrganizationNotFound) {
		response.NotFound(c, "Organization not found")
		return
	}
	if err != nil {
		response.ServiceUnavailable(c, "failed to set admin context")
		return
	}
	c.Set(ContextSnapshot, next)
	response.OK(c, ContextResponse{Applied: next.EffectiveOrgID() == orgID, Access: next.View()})
}

// ClearContext handles DELETE /admin/context.
func (h *Handler) ClearContext(c *gin.Context) {
	snap := FromContext(c)
	next, err := h.svc.ClearAdminOrgContext(c.Request.Context(), snap)
	if err != nil {
		response.ServiceUnavailable(c, "failed to clear admin context")
		return
	}
	c.Set(ContextSnapshot, next)
	response.OK(c, ContextResponse{Applied: next.IsPlatformAdmin() && next.AdminOrganization == nil, Access: next.View()})
}
