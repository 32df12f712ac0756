package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported driver names after normalisation.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var errMissingCredentials = errors.New("database user and name are required")

func dialectorFor(driver string, cfg Config) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		dsn, err := sqliteDSN(cfg)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case DriverPostgres:
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	case DriverMySQL:
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// MemoryDSN returns a DSN for a named in-memory SQLite database. Connections
// sharing a name share the database.
func MemoryDSN(name string) string {
	name = strings.NewReplacer("/", "_", " ", "_", "?", "_", "&", "_").Replace(name)
	if name == "" {
		name = "fratpos"
	}
	return "file:" + name + "?mode=memory&cache=shared&_foreign_keys=1"
}

func sqliteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return MemoryDSN("fratpos"), nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return "file:" + filepath.ToSlash(path) + "?_foreign_keys=1&_journal_mode=WAL", nil
}

// postgresDSN renders a key/value connection string. Application name and
// sslmode default to values suitable for a local install.
func postgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("postgres: %w", errMissingCredentials)
	}

	fields := []string{
		"host=" + orDefault(cfg.Host, "localhost"),
		fmt.Sprintf("port=%d", portOrDefault(cfg.Port, 5432)),
		"user=" + cfg.User,
		"dbname=" + cfg.Name,
	}
	if cfg.Password != "" {
		fields = append(fields, "password="+cfg.Password)
	}

	opts := withDefaults(cfg.Options, map[string]string{
		"sslmode":          "disable",
		"application_name": "fratpos",
	})
	for _, key := range sortedKeys(opts) {
		fields = append(fields, key+"="+opts[key])
	}
	return strings.Join(fields, " "), nil
}

// mysqlDSN renders a go-sql-driver DSN with UTC time parsing enabled.
func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("mysql: %w", errMissingCredentials)
	}

	account := cfg.User
	if cfg.Password != "" {
		account += ":" + cfg.Password
	}

	opts := withDefaults(cfg.Options, map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "true",
		"loc":       "UTC",
	})
	query := make([]string, 0, len(opts))
	for _, key := range sortedKeys(opts) {
		query = append(query, key+"="+opts[key])
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		account,
		orDefault(cfg.Host, "127.0.0.1"),
		portOrDefault(cfg.Port, 3306),
		cfg.Name,
		strings.Join(query, "&"),
	), nil
}

func withDefaults(options, defaults map[string]string) map[string]string {
	merged := make(map[string]string, len(options)+len(defaults))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range options {
		merged[key] = value
	}
	return merged
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}

func portOrDefault(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}
