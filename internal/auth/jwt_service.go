// Package auth issues and validates the bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL keeps POS terminals signed in for a whole evening.
const DefaultAccessTokenTTL = 12 * time.Hour

// clockSkew tolerates terminals whose clocks drift slightly.
const clockSkew = 30 * time.Second

var (
	// ErrInvalidToken covers malformed, forged and foreign tokens.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
)

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims are the registered claims plus the user the token was issued to.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type AccessTokenInput struct {
	UserID   string
	Email    string
	Audience []string
}

// AccessToken is a signed token and its expiry.
type AccessToken struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// JWTService signs and verifies HS256 access tokens.
type JWTService struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	svc := &JWTService{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTokenTTL,
		now:    cfg.Clock,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return svc.now() }),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if svc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(svc.issuer))
	}
	svc.parser = jwt.NewParser(opts...)

	return svc, nil
}

// GenerateAccessToken signs a token for the user valid for the configured TTL.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (AccessToken, error) {
	if input.UserID == "" {
		return AccessToken{}, errors.New("jwt: user id is required")
	}

	issuedAt := s.now()
	out := AccessToken{
		ID:        uuid.NewString(),
		ExpiresAt: issuedAt.Add(s.ttl),
	}

	claims := Claims{
		UserID: input.UserID,
		Email:  input.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        out.ID,
			Subject:   input.UserID,
			Issuer:    s.issuer,
			Audience:  input.Audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(out.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return AccessToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	out.Token = signed
	return out, nil
}

// ValidateAccessToken verifies signature, issuer and validity window. Failures
// wrap ErrTokenExpired or ErrInvalidToken together with the parser's error.
func (s *JWTService) ValidateAccessToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var claims Claims
	if _, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}
	return &claims, nil
}
