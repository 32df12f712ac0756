package seeding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/permissions"
)

type memoryPermissionStore struct {
	records  []models.Permission
	saved    []string
	countErr error
	findErr  error
	failOn   string
}

func (m *memoryPermissionStore) Count(context.Context) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.records)), nil
}

func (m *memoryPermissionStore) FindByNameIn(_ context.Context, names []string) ([]models.Permission, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	var out []models.Permission
	for _, record := range m.records {
		if _, ok := wanted[record.Name]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memoryPermissionStore) Save(_ context.Context, p *models.Permission) error {
	if p.Name == m.failOn {
		return errors.New("disk full")
	}
	for _, record := range m.records {
		if record.Name == p.Name {
			return fmt.Errorf("duplicate permission %s", p.Name)
		}
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("perm-%d", len(m.records)+1)
	}
	m.records = append(m.records, *p)
	m.saved = append(m.saved, p.Name)
	return nil
}

func (m *memoryPermissionStore) names() []string {
	out := make([]string, len(m.records))
	for i, record := range m.records {
		out[i] = record.Name
	}
	return out
}

type memoryRoleStore struct {
	roles   map[string]*models.Role
	saved   []string
	findErr error
	saveErr error
}

func newMemoryRoleStore() *memoryRoleStore {
	return &memoryRoleStore{roles: map[string]*models.Role{}}
}

func (m *memoryRoleStore) FindOneByName(_ context.Context, name string) (*models.Role, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	role, ok := m.roles[name]
	if !ok {
		return nil, nil
	}
	cpy := *role
	return &cpy, nil
}

func (m *memoryRoleStore) Save(_ context.Context, role *models.Role) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if role.ID == "" {
		role.ID = "role-" + role.Name
	}
	cpy := *role
	m.roles[role.Name] = &cpy
	m.saved = append(m.saved, role.Name)
	return nil
}

func allNames() []string {
	return permissions.Names(permissions.All()...)
}

func TestSeedFreshStore(t *testing.T) {
	perms := &memoryPermissionStore{}
	roles := newMemoryRoleStore()

	require.NoError(t, New(perms, roles).Seed(context.Background(), "POS"))

	require.Equal(t, allNames(), perms.saved)
	require.Equal(t, []string{RolesRole, "POS"}, roles.saved)
	require.ElementsMatch(t, []string{"ROLES_MODIFY", "ROLES_VIEW"}, roles.roles[RolesRole].PermissionNames())
	require.ElementsMatch(t, []string{"USERS_VIEW", "USERS_MODIFY", "POS_VIEW", "POS_MODIFY"}, roles.roles["POS"].PermissionNames())
}

func TestSeedIsIdempotent(t *testing.T) {
	perms := &memoryPermissionStore{}
	roles := newMemoryRoleStore()
	seeder := New(perms, roles)

	require.NoError(t, seeder.Seed(context.Background(), "POS"))
	permsAfterFirst := perms.names()
	rolesAfterFirst := len(roles.roles)

	require.NoError(t, seeder.Seed(context.Background(), "POS"))
	require.Equal(t, permsAfterFirst, perms.names())
	require.Len(t, roles.roles, rolesAfterFirst)
	require.Equal(t, []string{RolesRole, "POS"}, roles.saved)
}

func TestSeedNeverDuplicatesNames(t *testing.T) {
	perms := &memoryPermissionStore{}
	roles := newMemoryRoleStore()
	seeder := New(perms, roles, WithPermissionBackfill())

	for i := 0; i < 3; i++ {
		require.NoError(t, seeder.Seed(context.Background(), "POS"))
	}

	seen := map[string]int{}
	for _, name := range perms.names() {
		seen[name]++
	}
	for name, n := range seen {
		require.Equal(t, 1, n, name)
	}
	require.Len(t, seen, len(permissions.All()))
}

func TestSeedExistingRoleIsNotReconciled(t *testing.T) {
	perms := &memoryPermissionStore{}
	roles := newMemoryRoleStore()
	roles.roles[RolesRole] = &models.Role{
		BaseModel:   models.BaseModel{ID: "existing"},
		Name:        RolesRole,
		Permissions: []models.Permission{{Name: "USERS_VIEW"}},
	}

	require.NoError(t, New(perms, roles).Seed(context.Background(), "POS"))

	require.Equal(t, []string{"USERS_VIEW"}, roles.roles[RolesRole].PermissionNames())
	require.Equal(t, "existing", roles.roles[RolesRole].ID)
	require.Equal(t, []string{"POS"}, roles.saved)
}

func TestSeedOperationalRoleAlreadyExists(t *testing.T) {
	perms := &memoryPermissionStore{}
	roles := newMemoryRoleStore()
	roles.roles["POS"] = &models.Role{Name: "POS"}

	require.NoError(t, New(perms, roles).Seed(context.Background(), "POS"))

	require.Empty(t, roles.roles["POS"].Permissions)
	require.Equal(t, []string{RolesRole}, roles.saved)
}

func TestSeedPartiallyPopulatedStoreSkipsCatalog(t *testing.T) {
	perms := &memoryPermissionStore{records: []models.Permission{{Name: "ROLES_VIEW"}}}
	roles := newMemoryRoleStore()

	require.NoError(t, New(perms, roles).Seed(context.Background(), "POS"))

	require.Empty(t, perms.saved)
	require.Equal(t, []string{"ROLES_VIEW"}, roles.roles[RolesRole].PermissionNames())
	require.Empty(t, roles.roles["POS"].Permissions)
}

func TestSeedPartiallyPopulatedStoreWithBackfill(t *testing.T) {
	perms := &memoryPermissionStore{records: []models.Permission{{Name: "ROLES_VIEW"}}}
	roles := newMemoryRoleStore()

	require.NoError(t, New(perms, roles, WithPermissionBackfill()).Seed(context.Background(), "POS"))

	require.Equal(t, []string{"ROLES_MODIFY", "USERS_VIEW", "USERS_MODIFY", "POS_VIEW", "POS_MODIFY"}, perms.saved)
	require.Len(t, roles.roles["POS"].Permissions, 4)
}

func TestEnsureRoleExistsOmitsUnknownPermissions(t *testing.T) {
	perms := &memoryPermissionStore{records: []models.Permission{{Name: "ROLES_VIEW"}, {Name: "POS_VIEW"}}}
	roles := newMemoryRoleStore()

	err := New(perms, roles).EnsureRoleExists(context.Background(), "AUDITOR",
		permissions.RolesView, permissions.UsersView, permissions.Permission("NOT_IN_CATALOG"))
	require.NoError(t, err)

	require.Equal(t, []string{"ROLES_VIEW"}, roles.roles["AUDITOR"].PermissionNames())
}

func TestEnsureRoleExistsWithNoRequiredPermissions(t *testing.T) {
	perms := &memoryPermissionStore{}
	roles := newMemoryRoleStore()

	require.NoError(t, New(perms, roles).EnsureRoleExists(context.Background(), "GUEST"))
	require.Empty(t, roles.roles["GUEST"].Permissions)
}

func TestEnsureRoleExistsRejectsBlankName(t *testing.T) {
	seeder := New(&memoryPermissionStore{}, newMemoryRoleStore())

	require.ErrorIs(t, seeder.EnsureRoleExists(context.Background(), "  "), ErrEmptyRoleName)
	require.ErrorIs(t, seeder.Seed(context.Background(), ""), ErrEmptyRoleName)
}

func TestSeedStopsOnPermissionSaveFailure(t *testing.T) {
	perms := &memoryPermissionStore{failOn: "USERS_VIEW"}
	roles := newMemoryRoleStore()

	err := New(perms, roles).Seed(context.Background(), "POS")
	require.ErrorContains(t, err, "save permission USERS_VIEW")

	require.Equal(t, []string{"ROLES_VIEW", "ROLES_MODIFY"}, perms.saved)
	require.Empty(t, roles.saved)
}

func TestSeedPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")

	cases := []struct {
		name  string
		perms *memoryPermissionStore
		roles *memoryRoleStore
	}{
		{"count", &memoryPermissionStore{countErr: boom}, newMemoryRoleStore()},
		{"find permissions", &memoryPermissionStore{findErr: boom}, newMemoryRoleStore()},
		{"find role", &memoryPermissionStore{}, &memoryRoleStore{roles: map[string]*models.Role{}, findErr: boom}},
		{"save role", &memoryPermissionStore{}, &memoryRoleStore{roles: map[string]*models.Role{}, saveErr: boom}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.perms, tc.roles).Seed(context.Background(), "POS")
			require.ErrorIs(t, err, boom)
		})
	}
}

func TestSeedOrdersPermissionsBeforeRoles(t *testing.T) {
	var events []string
	perms := &recordingPermissionStore{memoryPermissionStore: &memoryPermissionStore{}, events: &events}
	roles := &recordingRoleStore{memoryRoleStore: newMemoryRoleStore(), events: &events}

	require.NoError(t, New(perms, roles).Seed(context.Background(), "POS"))

	want := append(permissions.Names(permissions.All()...), "role:"+RolesRole, "role:POS")
	require.Equal(t, want, events)
}

func TestSeedLogsCreations(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	seeder := New(&memoryPermissionStore{}, newMemoryRoleStore(), WithLogger(zap.New(core)))

	require.NoError(t, seeder.Seed(context.Background(), "POS"))

	entries := recorded.All()
	require.Len(t, entries, 3)
	require.Equal(t, "Permissions don't exist, creating", entries[0].Message)
	for i, role := range []string{RolesRole, "POS"} {
		entry := entries[i+1]
		require.Equal(t, "role doesn't exist, creating", entry.Message)
		require.Equal(t, role, entry.ContextMap()["role"])
	}
}

func TestWithCatalogRestrictsSeededPermissions(t *testing.T) {
	perms := &memoryPermissionStore{}
	seeder := New(perms, newMemoryRoleStore(), WithCatalog([]permissions.Permission{permissions.PosView}))

	require.NoError(t, seeder.EnsurePermissionsExist(context.Background()))
	require.Equal(t, []string{"POS_VIEW"}, perms.saved)
}

type recordingPermissionStore struct {
	*memoryPermissionStore
	events *[]string
}

func (r *recordingPermissionStore) Save(ctx context.Context, p *models.Permission) error {
	*r.events = append(*r.events, p.Name)
	return r.memoryPermissionStore.Save(ctx, p)
}

type recordingRoleStore struct {
	*memoryRoleStore
	events *[]string
}

func (r *recordingRoleStore) Save(ctx context.Context, role *models.Role) error {
	*r.events = append(*r.events, "role:"+role.Name)
	return r.memoryRoleStore.Save(ctx, role)
}
