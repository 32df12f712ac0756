// Package seeding ensures the reference data the application needs at startup
// exists: the permission catalog, the role administration role and the
// configured operational role. Records are only ever created, never updated.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/pkg/logger"
	"github.com/charlesng35/fratpos/pkg/metrics"
)

// RolesRole is the name of the role granted role administration.
const RolesRole = "ROLES"

// ErrEmptyRoleName is returned when a role to ensure has a blank name.
var ErrEmptyRoleName = errors.New("seeding: role name must not be empty")

// PermissionStore persists permission records.
type PermissionStore interface {
	Count(ctx context.Context) (int64, error)
	FindByNameIn(ctx context.Context, names []string) ([]models.Permission, error)
	Save(ctx context.Context, permission *models.Permission) error
}

// RoleStore persists roles. FindOneByName returns nil without error when no role matches.
type RoleStore interface {
	FindOneByName(ctx context.Context, name string) (*models.Role, error)
	Save(ctx context.Context, role *models.Role) error
}

// RolesRolePermissions are granted to the RolesRole.
var RolesRolePermissions = []permissions.Permission{
	permissions.RolesModify,
	permissions.RolesView,
}

// OperationalRolePermissions are granted to the configured operational role.
var OperationalRolePermissions = []permissions.Permission{
	permissions.UsersView,
	permissions.UsersModify,
	permissions.PosView,
	permissions.PosModify,
}

// Option customises a Seeder.
type Option func(*Seeder)

// WithPermissionBackfill makes EnsurePermissionsExist create catalog entries that
// are missing even when the store already holds permissions.
func WithPermissionBackfill() Option {
	return func(s *Seeder) {
		s.backfill = true
	}
}

// WithLogger overrides the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Seeder) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCatalog replaces the permission catalog to seed.
func WithCatalog(catalog []permissions.Permission) Option {
	return func(s *Seeder) {
		s.catalog = append([]permissions.Permission(nil), catalog...)
	}
}

// Seeder creates reference data that is absent.
type Seeder struct {
	permissions PermissionStore
	roles       RoleStore
	catalog     []permissions.Permission
	backfill    bool
	log         *zap.Logger
}

// New constructs a Seeder over the given stores.
func New(permissionStore PermissionStore, roleStore RoleStore, opts ...Option) *Seeder {
	s := &Seeder{
		permissions: permissionStore,
		roles:       roleStore,
		catalog:     permissions.All(),
		log:         logger.WithModule("seeding"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed ensures the permission catalog, then the RolesRole, then the operational
// role exist. The first failure stops the sequence.
func (s *Seeder) Seed(ctx context.Context, operationalRole string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(operationalRole) == "" {
		return fmt.Errorf("seeding: operational role: %w", ErrEmptyRoleName)
	}

	if err := s.EnsurePermissionsExist(ctx); err != nil {
		return err
	}
	if err := s.EnsureRoleExists(ctx, RolesRole, RolesRolePermissions...); err != nil {
		return err
	}
	return s.EnsureRoleExists(ctx, operationalRole, OperationalRolePermissions...)
}

// EnsurePermissionsExist creates one record per catalog identifier, in catalog
// order, when the permission store is empty. A non-empty store is left alone
// unless backfill is enabled, in which case only missing identifiers are created.
func (s *Seeder) EnsurePermissionsExist(ctx context.Context) error {
	count, err := s.permissions.Count(ctx)
	if err != nil {
		return fmt.Errorf("seeding: count permissions: %w", err)
	}

	missing := s.catalog
	if count > 0 {
		if !s.backfill {
			return nil
		}
		missing, err = s.missingPermissions(ctx)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			return nil
		}
		s.log.Info("Permissions incomplete, creating missing", zap.Strings("permissions", permissions.Names(missing...)))
	} else {
		s.log.Info("Permissions don't exist, creating")
	}

	for _, p := range missing {
		record := &models.Permission{Name: string(p)}
		if err := s.permissions.Save(ctx, record); err != nil {
			return fmt.Errorf("seeding: save permission %s: %w", p, err)
		}
		metrics.SeededRecords.WithLabelValues("permission").Inc()
	}
	return nil
}

func (s *Seeder) missingPermissions(ctx context.Context) ([]permissions.Permission, error) {
	stored, err := s.permissions.FindByNameIn(ctx, permissions.Names(s.catalog...))
	if err != nil {
		return nil, fmt.Errorf("seeding: load permissions: %w", err)
	}

	present := make(map[string]struct{}, len(stored))
	for _, perm := range stored {
		present[perm.Name] = struct{}{}
	}

	var missing []permissions.Permission
	for _, p := range s.catalog {
		if _, ok := present[string(p)]; !ok {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// EnsureRoleExists creates the role with whichever of the required permissions
// are stored. An existing role with the same name is left untouched, whatever
// permissions it holds.
func (s *Seeder) EnsureRoleExists(ctx context.Context, name string, required ...permissions.Permission) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyRoleName
	}

	existing, err := s.roles.FindOneByName(ctx, name)
	if err != nil {
		return fmt.Errorf("seeding: find role %q: %w", name, err)
	}
	if existing != nil {
		return nil
	}

	s.log.Info("role doesn't exist, creating", zap.String("role", name))

	resolved, err := s.permissions.FindByNameIn(ctx, permissions.Names(required...))
	if err != nil {
		return fmt.Errorf("seeding: resolve permissions for role %q: %w", name, err)
	}
	if len(resolved) < len(required) {
		s.log.Debug("role created without unknown permissions",
			zap.String("role", name),
			zap.Int("requested", len(required)),
			zap.Int("resolved", len(resolved)))
	}

	role := &models.Role{Name: name, Permissions: resolved}
	if err := s.roles.Save(ctx, role); err != nil {
		return fmt.Errorf("seeding: save role %q: %w", name, err)
	}
	metrics.SeededRecords.WithLabelValues("role").Inc()
	return nil
}
