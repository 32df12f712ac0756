package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fratpos/internal/handlers/testutil"
	"github.com/charlesng35/fratpos/internal/models"
)

func TestUserHandler_Lifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.AdminToken()

	create := env.Request(http.MethodPost, "/api/users", map[string]any{
		"email":      "Member@Example.com",
		"password":   "member-pass",
		"first_name": "Mari",
		"last_name":  "Maasikas",
		"balance":    10,
	}, token)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())

	var created testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &created)
	require.Equal(t, "member@example.com", created.Email)
	require.True(t, created.Active)

	dup := env.Request(http.MethodPost, "/api/users", map[string]any{
		"email":    "member@example.com",
		"password": "member-pass",
	}, token)
	require.Equal(t, http.StatusConflict, dup.Code)

	list := env.Request(http.MethodGet, "/api/users?q=maasikas", nil, token)
	require.Equal(t, http.StatusOK, list.Code)
	listResp := testutil.DecodeResponse(t, list)
	require.NotNil(t, listResp.Meta)
	require.Equal(t, 1, listResp.Meta.Total)

	update := env.Request(http.MethodPost, "/api/users/"+created.ID, map[string]any{
		"nickname": "Mass",
		"active":   false,
	}, token)
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())

	var updated testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, update).Data, &updated)
	require.False(t, updated.Active)
	require.Equal(t, "Mari", updated.FirstName)

	pw := env.Request(http.MethodPost, "/api/users/"+created.ID+"/password", map[string]string{"password": "123"}, token)
	require.Equal(t, http.StatusBadRequest, pw.Code)

	del := env.Request(http.MethodDelete, "/api/users/"+created.ID, nil, token)
	require.Equal(t, http.StatusOK, del.Code, del.Body.String())

	missing := env.Request(http.MethodGet, "/api/users/"+created.ID, nil, token)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestUserHandler_RolesAndProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.AdminToken()
	member := env.CreateUser("member-pass")

	var role models.Role
	require.NoError(t, env.DB.Where("name = ?", "ROLES").First(&role).Error)

	add := env.Request(http.MethodPut, "/api/users/"+member.ID+"/role/"+role.ID, nil, token)
	require.Equal(t, http.StatusOK, add.Code, add.Body.String())

	// adding twice leaves a single membership
	add = env.Request(http.MethodPut, "/api/users/"+member.ID+"/role/"+role.ID, nil, token)
	require.Equal(t, http.StatusOK, add.Code)
	require.Equal(t, 1, int(env.DB.Model(&models.User{BaseModel: models.BaseModel{ID: member.ID}}).Association("Roles").Count()))

	remove := env.Request(http.MethodDelete, "/api/users/"+member.ID+"/role/"+role.ID, nil, token)
	require.Equal(t, http.StatusOK, remove.Code)
	require.Zero(t, env.DB.Model(&models.User{BaseModel: models.BaseModel{ID: member.ID}}).Association("Roles").Count())

	unknown := env.Request(http.MethodPut, "/api/users/"+member.ID+"/role/00000000-0000-0000-0000-000000000000", nil, token)
	require.Equal(t, http.StatusNotFound, unknown.Code)

	profile := env.Request(http.MethodPost, "/api/users/"+member.ID+"/userprofile", map[string]string{"phone": "5551234"}, token)
	require.Equal(t, http.StatusCreated, profile.Code, profile.Body.String())

	var stored models.UserProfile
	testutil.DecodeInto(t, testutil.DecodeResponse(t, profile).Data, &stored)

	again := env.Request(http.MethodPost, "/api/users/"+member.ID+"/userprofile", map[string]string{"phone": "5550000"}, token)
	require.Equal(t, http.StatusBadRequest, again.Code)

	edit := env.Request(http.MethodPost, "/api/users/"+member.ID+"/userprofile/"+stored.ID, map[string]string{"phone": "5559999"}, token)
	require.Equal(t, http.StatusOK, edit.Code, edit.Body.String())
}

func TestUserHandler_MeAndStat(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin("admin-pass")
	token := env.Login(admin.Email, "admin-pass").AccessToken

	me := env.Request(http.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())

	var payload testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, me).Data, &payload)
	require.Equal(t, admin.ID, payload.ID)

	stat := env.Request(http.MethodGet, "/api/users/"+admin.ID+"/stat", nil, token)
	require.Equal(t, http.StatusOK, stat.Code, stat.Body.String())

	var stats struct {
		TransactionCount int64   `json:"transaction_count"`
		TotalSpent       float64 `json:"total_spent"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, stat).Data, &stats)
	require.Zero(t, stats.TransactionCount)
	require.Zero(t, stats.TotalSpent)
}

func TestPermissionHandler_RoleLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.AdminToken()

	catalog := env.Request(http.MethodGet, "/api/permissions", nil, token)
	require.Equal(t, http.StatusOK, catalog.Code)
	var defs []struct {
		ID string `json:"id"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, catalog).Data, &defs)
	require.Len(t, defs, 6)

	create := env.Request(http.MethodPost, "/api/roles", map[string]any{
		"name":        "Bartender",
		"description": "Runs the bar",
		"permissions": []string{"POS_VIEW"},
	}, token)
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())

	var role models.Role
	testutil.DecodeInto(t, testutil.DecodeResponse(t, create).Data, &role)
	require.Equal(t, []string{"POS_VIEW"}, role.PermissionNames())

	dup := env.Request(http.MethodPost, "/api/roles", map[string]any{"name": "Bartender"}, token)
	require.Equal(t, http.StatusConflict, dup.Code)

	bad := env.Request(http.MethodPut, "/api/roles/"+role.ID+"/permissions", map[string]any{
		"permissions": []string{"POS_VIEW", "BEER_DRINK"},
	}, token)
	require.Equal(t, http.StatusBadRequest, bad.Code)

	set := env.Request(http.MethodPut, "/api/roles/"+role.ID+"/permissions", map[string]any{
		"permissions": []string{"POS_VIEW", "POS_MODIFY"},
	}, token)
	require.Equal(t, http.StatusOK, set.Code, set.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, set).Data, &role)
	require.ElementsMatch(t, []string{"POS_VIEW", "POS_MODIFY"}, role.PermissionNames())

	patch := env.Request(http.MethodPatch, "/api/roles/"+role.ID, map[string]any{"description": "Bar staff"}, token)
	require.Equal(t, http.StatusOK, patch.Code, patch.Body.String())

	del := env.Request(http.MethodDelete, "/api/roles/"+role.ID, nil, token)
	require.Equal(t, http.StatusOK, del.Code)

	gone := env.Request(http.MethodGet, "/api/roles/"+role.ID, nil, token)
	require.Equal(t, http.StatusNotFound, gone.Code)
}

func TestAuditHandler_ListsLogins(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.AdminToken()

	w := env.Request(http.MethodGet, "/api/audit?action=auth.login", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var logs []models.AuditLog
	testutil.DecodeInto(t, resp.Data, &logs)
	require.NotEmpty(t, logs)
	require.Equal(t, "auth.login", logs[0].Action)
	require.Equal(t, 1, resp.Meta.Total)

	bad := env.Request(http.MethodGet, "/api/audit?since=yesterday", nil, token)
	require.Equal(t, http.StatusBadRequest, bad.Code)
	failure := testutil.DecodeResponse(t, bad)
	require.Equal(t, "since", failure.Error.Details[0].Field)

	inverted := env.Request(http.MethodGet, "/api/audit?since=2024-02-01T00:00:00Z&until=2024-01-01T00:00:00Z", nil, token)
	require.Equal(t, http.StatusBadRequest, inverted.Code)
}

func TestHandlers_PermissionDenied(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("plain-pass")
	token := env.Login(user.Email, "plain-pass").AccessToken

	for _, path := range []string{"/api/users", "/api/roles", "/api/product", "/api/audit"} {
		w := env.Request(http.MethodGet, path, nil, token)
		require.Equal(t, http.StatusForbidden, w.Code, path)
	}
}
