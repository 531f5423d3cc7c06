package partners

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsdesk/backend/internal/access"
	"github.com/opsdesk/backend/pkg/response"
)

// Handler serves partner endpoints for the effective organization.
type Handler struct {
	svc *Service
}

// NewHandler creates a partners handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CountResponse is the body of GET /partners/count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CheckResponse is the body of GET /partners/:id/check.
type CheckResponse struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Partner        bool      `json:"partner"`
}

func hostID(c *gin.Context) (uuid.UUID, bool) {
	id := access.FromContext(c).EffectiveOrgID()
	if id == uuid.Nil {
		response.Forbidden(c, "no effective organization")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /partners.
func (h *Handler) List(c *gin.Context) {
	host, ok := hostID(c)
	if !ok {
		return
	}
	response.OK(c, h.svc.ListActivePartners(c.Request.Context(), host))
}

// Count handles GET /partners/count.
func (h *Handler) Count(c *gin.Context) {
	host, ok := hostID(c)
	if !ok {
		return
	}
	response.OK(c, CountResponse{Count: h.svc.CountActivePartners(c.Request.Context(), host)})
}

// Check handles GET /partners/:id/check.
func (h *Handler) Check(c *gin.Context) {
	candidate, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	host, ok := hostID(c)
	if !ok {
		return
	}
	response.OK(c, CheckResponse{OrganizationID: candidate, Partner: h.svc.IsPartnerOf(c.Request.Context(), host, candidate)})
}
