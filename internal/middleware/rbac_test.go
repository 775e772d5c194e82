package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campushub-api/internal/models"
)

func withIdentity(identity *models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity != nil {
			c.Set(ContextIdentityKey, identity)
		}
		c.Next()
	}
}

func performWithRole(t *testing.T, identity *models.Identity, path string, guard gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users/:id", withIdentity(identity), guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	identity := &models.Identity{ID: "u1", Role: models.RoleAdmin, Active: true}
	w := performWithRole(t, identity, "/users/u9", RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesDeniesWithRoleDetails(t *testing.T) {
	identity := &models.Identity{ID: "u1", Role: models.RoleStudent, Active: true}
	w := performWithRole(t, identity, "/users/u9", RequireRoles(models.RoleAdmin, models.RoleTeacher))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Errors  struct {
			RequiredRoles []string `json:"required_roles"`
			ActualRole    string   `json:"actual_role"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", body.Code)
	assert.ElementsMatch(t, []string{string(models.RoleAdmin), string(models.RoleTeacher)}, body.Errors.RequiredRoles)
	assert.Equal(t, string(models.RoleStudent), body.Errors.ActualRole)
}

func TestRequireRolesUnauthenticated(t *testing.T) {
	w := performWithRole(t, nil, "/users/u9", RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRolesOrSelfAllowsOwnRecord(t *testing.T) {
	identity := &models.Identity{ID: "u1", Role: models.RoleStudent, Active: true}

	w := performWithRole(t, identity, "/users/u1", RequireRolesOrSelf("id", models.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	w = performWithRole(t, identity, "/users/u2", RequireRolesOrSelf("id", models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
