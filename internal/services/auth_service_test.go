package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/pkg/crypto"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
)

func TestAuthServiceLogin(t *testing.T) {
	users, db := newUserService(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "fratpos"})
	require.NoError(t, err)

	svc, err := NewAuthService(users, jwtSvc, audit)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := users.Create(ctx, CreateUserInput{Email: "bar@example.com", Password: "secret123"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, " BAR@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, user.ID, result.User.ID)

	actor, err := svc.Authenticate(result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, actor.UserID)
	require.Equal(t, "bar@example.com", actor.Email)

	_, err = svc.Login(ctx, "bar@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "secret123")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	inactive := false
	_, err = users.Update(ctx, user.ID, UpdateUserInput{Active: &inactive})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "bar@example.com", "secret123")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate("garbage")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, total, err := audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: "auth.login", Result: "failure"}})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
}

func TestAuthServiceLoginUpgradesWeakHash(t *testing.T) {
	users, db := newUserService(t)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "fratpos"})
	require.NoError(t, err)
	svc, err := NewAuthService(users, jwtSvc, nil)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := users.Create(ctx, CreateUserInput{Email: "old@example.com", Password: "secret123"})
	require.NoError(t, err)

	weak, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("password", string(weak)).Error)

	_, err = svc.Login(ctx, "old@example.com", "secret123")
	require.NoError(t, err)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.NotEqual(t, string(weak), reloaded.Password)
	require.False(t, crypto.NeedsRehash(reloaded.Password))
	require.True(t, crypto.VerifyPassword(reloaded.Password, "secret123"))
}

func TestUserServiceRejectsOverlongPassword(t *testing.T) {
	users, _ := newUserService(t)
	_, err := users.Create(context.Background(), CreateUserInput{Email: "long@example.com", Password: strings.Repeat("p", 73)})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}
