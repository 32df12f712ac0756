package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/internal/auditctx"
	"github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/pkg/crypto"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/logger"
	"github.com/charlesng35/fratpos/pkg/metrics"
)

// LoginResult is returned after a successful password login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService verifies credentials and issues bearer tokens.
type AuthService struct {
	users *UserService
	jwt   *auth.JWTService
	audit *AuditService
}

// NewAuthService constructs an AuthService.
func NewAuthService(users *UserService, jwt *auth.JWTService, audit *AuditService) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("auth service: user service is required")
	}
	if jwt == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{users: users, jwt: jwt, audit: audit}, nil
}

// Login checks the password of an active user and returns a signed token.
// Unknown emails, wrong passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if user == nil || !user.Active || !crypto.VerifyPassword(user.Password, password) {
		s.record(ctx, email, nil, "failure")
		return nil, apperrors.ErrInvalidCredentials
	}
	if crypto.NeedsRehash(user.Password) {
		if err := s.users.rehashPassword(ctx, user.ID, password); err != nil {
			logger.WithModule("auth").Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	s.record(ctx, user.Email, &user.ID, "success")
	return &LoginResult{Token: token.Token, ExpiresAt: token.ExpiresAt, User: user}, nil
}

// Authenticate validates a bearer token and returns the actor it identifies.
func (s *AuthService) Authenticate(token string) (auditctx.Actor, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return auditctx.Actor{}, apperrors.ErrUnauthorized.WithInternal(err)
	}
	return auditctx.Actor{UserID: claims.UserID, Email: claims.Email}, nil
}

func (s *AuthService) record(ctx context.Context, email string, userID *string, result string) {
	metrics.AuthAttempts.WithLabelValues(result).Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID: userID,
		Email:  email,
		Action: "auth.login",
		Result: result,
	})
}
