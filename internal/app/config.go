package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the fratpos backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	POS         POSConfig         `mapstructure:"pos"`
	Seed        SeedConfig        `mapstructure:"seed"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Realtime    RealtimeConfig    `mapstructure:"realtime"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQuery       time.Duration `mapstructure:"slow_query_threshold"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures token settings.
type AuthConfig struct {
	JWT            JWTSettings     `mapstructure:"jwt"`
	LoginRateLimit RateLimitConfig `mapstructure:"login_rate_limit"`
}

// RateLimitConfig allows Requests per client within Window. Zero requests
// disables the limit.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// POSConfig holds point-of-sale settings. Role names the operational role the
// seeder provisions with user and POS permissions.
type POSConfig struct {
	Role               string `mapstructure:"role"`
	RecentTransactions int    `mapstructure:"recent_transactions"`
}

// SeedConfig controls reference data seeding at startup.
type SeedConfig struct {
	BackfillPermissions bool `mapstructure:"backfill_permissions"`
}

// AdminConfig optionally provisions an administrator account on startup.
type AdminConfig struct {
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

// Enabled reports whether both credentials are configured.
func (a AdminConfig) Enabled() bool {
	return strings.TrimSpace(a.Email) != "" && a.Password != ""
}

// MaintenanceConfig configures scheduled background jobs.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	ObligationSchedule string `mapstructure:"obligation_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// RealtimeConfig configures the websocket event stream.
type RealtimeConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig searches paths in order for config.yaml. Without paths it
// searches ./config. A missing file leaves defaults and environment in place.
func LoadConfig(paths ...string) (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	if len(paths) == 0 {
		paths = []string{"./config"}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	return load(v)
}

// LoadConfigFile reads the named YAML file, which must exist.
func LoadConfigFile(file string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(file)
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigType("yaml")
	return v
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("FRATPOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if strings.TrimSpace(config.POS.Role) == "" {
		return nil, errors.New("config: pos.role must not be empty")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/fratpos.sqlite")
	v.SetDefault("database.slow_query_threshold", "200ms")

	v.SetDefault("auth.jwt.issuer", "fratpos")
	v.SetDefault("auth.jwt.access_token_ttl", "12h")
	v.SetDefault("auth.login_rate_limit.requests", 10)
	v.SetDefault("auth.login_rate_limit.window", "1m")

	v.SetDefault("pos.role", defaultOperationalRole)
	v.SetDefault("pos.recent_transactions", 50)

	v.SetDefault("seed.backfill_permissions", false)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.obligation_schedule", "@daily")
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.audit_retention_days", 90)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
