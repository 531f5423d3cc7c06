package access

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/backend/internal/middleware"
	"github.com/opsdesk/backend/pkg/response"
)

const listPath = "/organizations"

// newRouter mimics cmd/server wiring with a header standing in for the JWT email claim.
func newRouter(f *fixture, mounted *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	gate := NewGate(f.metrics)
	h := NewHandler(f.svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserEmail, c.GetHeader("X-Test-Email"))
		c.Next()
	})
	r.Use(LoadSnapshot(f.svc, nil))

	r.GET("/me/access", h.Me)
	r.POST("/admin/context", h.SetContext)
	r.DELETE("/admin/context", h.ClearContext)
	r.GET("/orgs/:slug/access", OrgSlugContext(f.svc, listPath), h.Me)

	record := func(c *gin.Context) {
		*mounted++
		response.OK(c, "ok")
	}
	r.GET("/platform", RequireAccess(gate, Requirement{PlatformAdmin: true}, nil), record)
	r.GET("/platform/fallback", RequireAccess(gate, Requirement{PlatformAdmin: true}, func(c *gin.Context) {
		response.OK(c, "fallback")
	}), record)
	r.GET("/platform/omit", RequireAccess(gate, Requirement{PlatformAdmin: true, Omit: true}, nil), record)
	r.GET("/crm", RequireAccess(gate, Requirement{Module: "crm", Permission: &Permission{Action: "create", Module: "crm", Resource: "customers"}}, nil), record)
	return r
}

func do(r *gin.Engine, method, path, email string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Email", email)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) View {
	t.Helper()
	var body struct {
		Data View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestLoadSnapshot(t *testing.T) {
	f := newFixture(t)
	mounted := 0
	r := newRouter(f, &mounted)

	w := do(r, http.MethodGet, "/me/access", "alice@co.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeView(t, w)
	assert.Equal(t, []string{"crm"}, v.Modules)
	require.NotNil(t, v.EffectiveOrganization)
	assert.Equal(t, "acme", v.EffectiveOrganization.Slug)
	assert.True(t, v.OrgAdmin)
	assert.Equal(t, "crm:customers:create", v.Permissions[0].Module+":"+v.Permissions[0].Resource+":"+v.Permissions[0].Action)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me/access", "ghost@co.com", nil).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodGet, "/me/access", "carol@co.com", nil).Code)
}

func TestRequireAccess(t *testing.T) {
	f := newFixture(t)
	mounted := 0
	r := newRouter(f, &mounted)

	w := do(r, http.MethodGet, "/platform", "alice@co.com", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(ReasonPlatformAdmin))
	assert.Equal(t, 0, mounted)

	w = do(r, http.MethodGet, "/platform/fallback", "alice@co.com", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fallback")
	assert.Equal(t, 0, mounted)

	w = do(r, http.MethodGet, "/platform/omit", "alice@co.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, mounted)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/platform", "root@co.com", nil).Code)
	assert.Equal(t, 1, mounted)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/crm", "alice@co.com", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/crm", "bob@co.com", nil).Code)
	assert.Equal(t, 2, mounted)
}

func TestOrgSlugContext(t *testing.T) {
	f := newFixture(t)
	mounted := 0
	r := newRouter(f, &mounted)

	t.Run("unknown slug redirects to the organization list", func(t *testing.T) {
		w := do(r, http.MethodGet, "/orgs/beta/access", "root@co.com", nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, listPath, w.Header().Get("Location"))
		_, ok, err := f.contexts.Get(context.Background(), f.root.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, f.auditor.all())
	})

	t.Run("platform admin switches to slug organization", func(t *testing.T) {
		w := do(r, http.MethodGet, "/orgs/globex/access", "root@co.com", nil)
		require.Equal(t, http.StatusOK, w.Code)
		v := decodeView(t, w)
		assert.Equal(t, f.globex.ID, v.EffectiveOrganization.ID)
		assert.True(t, v.AdminContext)
		assert.Equal(t, []string{"finance"}, v.Modules)
	})

	t.Run("member of slug organization", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/orgs/acme/access", "alice@co.com", nil).Code)
	})

	t.Run("member of another organization", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/orgs/globex/access", "alice@co.com", nil).Code)
	})
}

func TestAdminContextHandlers(t *testing.T) {
	f := newFixture(t)
	mounted := 0
	r := newRouter(f, &mounted)

	decode := func(w *httptest.ResponseRecorder) ContextResponse {
		var body struct {
			Data ContextResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Data
	}

	w := do(r, http.MethodPost, "/admin/context", "alice@co.com", SetContextRequest{OrganizationID: f.globex.ID.String()})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(w)
	assert.False(t, res.Applied)
	assert.Equal(t, f.acme.ID, res.Access.EffectiveOrganization.ID)

	w = do(r, http.MethodPost, "/admin/context", "root@co.com", SetContextRequest{OrganizationID: f.globex.ID.String()})
	require.Equal(t, http.StatusOK, w.Code)
	res = decode(w)
	assert.True(t, res.Applied)
	assert.Equal(t, f.globex.ID, res.Access.EffectiveOrganization.ID)

	v := decodeView(t, do(r, http.MethodGet, "/me/access", "root@co.com", nil))
	assert.Equal(t, f.globex.ID, v.EffectiveOrganization.ID)

	w = do(r, http.MethodDelete, "/admin/context", "root@co.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, f.hq.ID, decode(w).Access.EffectiveOrganization.ID)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/admin/context", "root@co.com", SetContextRequest{OrganizationID: uuid.NewString()}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/admin/context", "root@co.com", SetContextRequest{OrganizationID: "acme"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/admin/context", "root@co.com", nil).Code)
}
