package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/fratpos/internal/database/testutil"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/permissions"
)

func TestRequirePermissionWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/secure", RequirePermission(&permissions.Checker{}, permissions.UsersView), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermissionChecksRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)

	var posRole models.Role
	require.NoError(t, db.First(&posRole, "name = ?", testutil.OperationalRole).Error)

	bartender := &models.User{Email: "bartender@example.com", Password: "x", Active: true}
	require.NoError(t, db.Create(bartender).Error)
	require.NoError(t, db.Model(bartender).Association("Roles").Append(&models.Role{BaseModel: posRole.BaseModel}))

	as := func(userID string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(CtxUserIDKey, userID)
			c.Next()
		}
	}

	r := gin.New()
	r.GET("/pos", as(bartender.ID), RequirePermission(checker, permissions.PosModify), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/roles", as(bartender.ID), RequirePermission(checker, permissions.RolesView), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ghost", as("missing"), RequirePermission(checker, permissions.PosView), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]int{
		"/pos":   http.StatusOK,
		"/roles": http.StatusForbidden,
		"/ghost": http.StatusUnauthorized,
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, w.Code, path)
	}
}
