package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		write  func(*gin.Context)
		status int
		body   Body
	}{
		{"ok", func(c *gin.Context) { OK(c, "x") }, http.StatusOK, Body{Success: true, Data: "x"}},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "module_missing") }, http.StatusForbidden, Body{Error: "module_missing"}},
		{"conflict", func(c *gin.Context) { Conflict(c, "ambiguous") }, http.StatusConflict, Body{Error: "ambiguous"}},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "down") }, http.StatusServiceUnavailable, Body{Error: "down"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)
			assert.Equal(t, tt.status, w.Code)
			var got Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.body, got)
		})
	}
}
