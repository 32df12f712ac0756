// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/database"
	"github.com/charlesng35/fratpos/internal/repository"
	"github.com/charlesng35/fratpos/internal/seeding"
)

// OperationalRole is the operational role seeded by WithSeedData.
const OperationalRole = "POS"

type TestDBOption func(*options)

type options struct {
	migrate bool
	seed    bool
	role    string
}

// WithAutoMigrate creates the schema.
func WithAutoMigrate() TestDBOption {
	return func(o *options) { o.migrate = true }
}

// WithSeedData creates the schema, the permission catalog and the default roles.
func WithSeedData() TestDBOption {
	return func(o *options) {
		o.migrate = true
		o.seed = true
	}
}

// WithOperationalRole seeds role instead of OperationalRole.
func WithOperationalRole(role string) TestDBOption {
	return func(o *options) { o.role = role }
}

// MustOpenTestDB opens an in-memory database private to t and closes it on cleanup.
// The pool holds one connection so concurrent writers in a test queue up
// instead of failing with SQLITE_LOCKED.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	o := options{role: OperationalRole}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{
		Driver:       database.DriverSQLite,
		DSN:          database.MemoryDSN(t.Name()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if o.migrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	if o.seed {
		seeder := seeding.New(repository.NewPermissionRepository(db), repository.NewRoleRepository(db))
		require.NoError(t, seeder.Seed(context.Background(), o.role))
	}
	return db
}
