package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/pkg/crypto"
	"github.com/charlesng35/fratpos/pkg/logger"
)

const (
	generatedSecretBytes   = 48
	defaultOperationalRole = "POS"
)

// ApplyRuntimeDefaults fills values a bare install cannot start without and
// returns the keys it generated, sorted. Values are never returned so they
// stay out of logs. A generated JWT secret invalidates tokens on restart.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(generatedSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated = append(generated, "auth.jwt.secret")
	}

	cfg.POS.Role = strings.TrimSpace(cfg.POS.Role)
	if cfg.POS.Role == "" {
		cfg.POS.Role = defaultOperationalRole
		generated = append(generated, "pos.role")
	}

	sort.Strings(generated)
	return generated, nil
}

// TokenConfig maps the auth section onto JWT service parameters.
func (c AuthConfig) TokenConfig() auth.JWTConfig {
	cfg := auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: c.JWT.TTL,
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	return cfg
}

// ConfigureLogging installs the global zap logger for the server section.
// An empty level means info and an empty format means json.
func ConfigureLogging(server ServerConfig) error {
	level := strings.ToLower(strings.TrimSpace(server.LogLevel))
	if level == "" {
		level = "info"
	}

	var opts []logger.Option
	if format := strings.ToLower(strings.TrimSpace(server.LogFormat)); format != "" {
		if format != "json" && format != "console" {
			return fmt.Errorf("unknown log format %q", server.LogFormat)
		}
		opts = append(opts, logger.WithEncoding(format))
	}
	return logger.Init(level, opts...)
}
