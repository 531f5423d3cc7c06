package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/middleware"
	"github.com/opsdesk/backend/internal/session"
	"github.com/opsdesk/backend/pkg/response"
)

const (
	// ContextSnapshot is the gin context key for the request's *Snapshot.
	ContextSnapshot = "access_snapshot"
	// ContextOrganization is the gin context key for the organization resolved from a slug.
	ContextOrganization = "access_organization"
)

// FromContext returns the snapshot set by LoadSnapshot, or nil.
func FromContext(c *gin.Context) *Snapshot {
	v, ok := c.Get(ContextSnapshot)
	if !ok {
		return nil
	}
	snap, _ := v.(*Snapshot)
	return snap
}

// LoadSnapshot builds the caller's snapshot from the JWT email claim. Call after middleware.JWT.
func LoadSnapshot(svc *Service, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		email := c.GetString(middleware.ContextUserEmail)
		snap, err := svc.Load(c.Request.Context(), email)
		if err != nil {
			if errors.Is(err, session.ErrAmbiguousMembership) {
				response.Conflict(c, "account has more than one active organization membership")
			} else {
				logger.Error("load access snapshot", zap.Error(err))
				response.Internal(c, "failed to load access")
			}
			c.Abort()
			return
		}
		if !snap.Authenticated() {
			response.Unauthorized(c, "unknown or inactive user")
			c.Abort()
			return
		}
		c.Set(ContextSnapshot, snap)
		c.Next()
	}
}

// RequireAccess runs the remaining handlers only when req is satisfied. On
// deny it calls fallback, or answers 403. With req.Omit the route answers 404
// as if it did not exist.
func RequireAccess(gate *Gate, req Requirement, fallback gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := gate.Check(FromContext(c), req)
		if d.Allowed {
			c.Next()
			return
		}
		c.Abort()
		switch {
		case req.Omit:
			response.NotFound(c, "not found")
		case fallback != nil:
			fallback(c)
		default:
			response.Forbidden(c, string(d.Reason))
		}
	}
}

// OrgSlugContext switches the effective organization to the one named by the
// :slug path segment before running children. Unknown slugs redirect to
// listPath with the context untouched; a caller who may not switch gets 403.
func OrgSlugContext(svc *Service, listPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := FromContext(c)
		next, org, err := svc.SwitchToSlug(c.Request.Context(), snap, c.Param("slug"))
		if errors.Is(err, ErrOrganizationNotFound) {
			c.Redirect(http.StatusFound, listPath)
			c.Abort()
			return
		}
		if err != nil {
			response.ServiceUnavailable(c, "failed to switch organization")
			c.Abort()
			return
		}
		if next.EffectiveOrgID() != org.ID {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		c.Set(ContextSnapshot, next)
		c.Set(ContextOrganization, org)
		c.Next()
	}
}
