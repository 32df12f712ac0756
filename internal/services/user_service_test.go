package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/fratpos/internal/database/testutil"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/seeding"
	"github.com/charlesng35/fratpos/pkg/crypto"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	auditSvc, err := NewAuditService(db)
	require.NoError(t, err)

	userSvc, err := NewUserService(db, auditSvc)
	require.NoError(t, err)
	return userSvc, db
}

func TestUserServiceCreateAndUpdate(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	status := &models.Status{Name: "Member"}
	require.NoError(t, db.Create(status).Error)

	user, err := svc.Create(ctx, CreateUserInput{
		Email:     " Alice@Example.com ",
		Password:  "secret123",
		FirstName: "Alice",
		StatusID:  status.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.True(t, user.Active)
	require.NotNil(t, user.Status)
	require.Equal(t, "Member", user.Status.Name)
	require.True(t, crypto.VerifyPassword(user.Password, "secret123"))

	_, err = svc.Create(ctx, CreateUserInput{Email: "alice@example.com", Password: "another1"})
	require.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Create(ctx, CreateUserInput{Email: "bob@example.com", Password: "secret123", StatusID: "missing"})
	require.Error(t, err)

	nickname := "Al"
	inactive := false
	balance := 12.345
	empty := ""
	updated, err := svc.Update(ctx, user.ID, UpdateUserInput{
		Nickname: &nickname,
		Active:   &inactive,
		Balance:  &balance,
		StatusID: &empty,
	})
	require.NoError(t, err)
	require.Equal(t, "Al", updated.Nickname)
	require.False(t, updated.Active)
	require.Equal(t, 12.35, updated.Balance)
	require.Nil(t, updated.StatusID)

	_, err = svc.Update(ctx, "missing", UpdateUserInput{Nickname: &nickname})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceListFilters(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Email: "carol@example.com", Password: "secret123", FirstName: "Carol"})
	require.NoError(t, err)
	dave, err := svc.Create(ctx, CreateUserInput{Email: "dave@example.com", Password: "secret123", FirstName: "Dave"})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, dave.ID, UpdateUserInput{Active: &inactive})
	require.NoError(t, err)

	users, total, err := svc.List(ctx, ListUsersOptions{Filters: UserFilters{Query: "car"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "carol@example.com", users[0].Email)

	active := true
	_, total, err = svc.List(ctx, ListUsersOptions{Filters: UserFilters{Active: &active}})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestUserServiceRoleMembership(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: "erin@example.com", Password: "secret123"})
	require.NoError(t, err)

	var role models.Role
	require.NoError(t, db.First(&role, "name = ?", seeding.RolesRole).Error)

	updated, err := svc.AddRole(ctx, user.ID, role.ID)
	require.NoError(t, err)
	require.Len(t, updated.Roles, 1)
	require.ElementsMatch(t, []string{"ROLES_MODIFY", "ROLES_VIEW"}, updated.Roles[0].PermissionNames())

	updated, err = svc.AddRole(ctx, user.ID, role.ID)
	require.NoError(t, err)
	require.Len(t, updated.Roles, 1)

	updated, err = svc.RemoveRole(ctx, user.ID, role.ID)
	require.NoError(t, err)
	require.Empty(t, updated.Roles)

	_, err = svc.AddRole(ctx, user.ID, "missing")
	require.ErrorIs(t, err, ErrRoleNotFound)
	_, err = svc.AddRole(ctx, "missing", role.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Role{}).Where("id = ?", role.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.Zero(t, svc.locks.size())
}

func TestUserServiceConcurrentRoleChanges(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: "grace@example.com", Password: "secret123"})
	require.NoError(t, err)

	const roleCount = 8
	roles := make([]models.Role, roleCount)
	for i := range roles {
		roles[i] = models.Role{Name: fmt.Sprintf("shift-%d", i)}
		require.NoError(t, db.Create(&roles[i]).Error)
	}

	run := func(workers int, change func(roleID string) error) {
		t.Helper()
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := range workers {
			wg.Add(1)
			go func(roleID string) {
				defer wg.Done()
				errs <- change(roleID)
			}(roles[i%roleCount].ID)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	}
	countGrants := func() int64 {
		var n int64
		require.NoError(t, db.Table("user_roles").Where("user_id = ?", user.ID).Count(&n).Error)
		return n
	}

	run(2*roleCount, func(roleID string) error {
		_, err := svc.AddRole(ctx, user.ID, roleID)
		return err
	})
	require.EqualValues(t, roleCount, countGrants())
	require.Zero(t, svc.locks.size())

	run(2*roleCount, func(roleID string) error {
		_, err := svc.RemoveRole(ctx, user.ID, roleID)
		return err
	})
	require.Zero(t, countGrants())
	require.Zero(t, svc.locks.size())
}

func TestUserServiceProfileLifecycle(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: "frank@example.com", Password: "secret123"})
	require.NoError(t, err)

	profile, err := svc.CreateProfile(ctx, user.ID, ProfileInput{Phone: "555-0100"})
	require.NoError(t, err)
	require.Equal(t, user.ID, profile.UserID)

	_, err = svc.CreateProfile(ctx, user.ID, ProfileInput{Phone: "555-0101"})
	require.ErrorIs(t, err, ErrProfileExists)

	updated, err := svc.UpdateProfile(ctx, user.ID, profile.ID, ProfileInput{Phone: "555-0199", StudentCode: "A1"})
	require.NoError(t, err)
	require.Equal(t, "555-0199", updated.Phone)
	require.Equal(t, "A1", updated.StudentCode)

	_, err = svc.UpdateProfile(ctx, "other", profile.ID, ProfileInput{})
	require.ErrorIs(t, err, ErrProfileNotFound)

	loaded, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Profile)
	require.Equal(t, "555-0199", loaded.Profile.Phone)
}

func TestUserServiceDelete(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: "gina@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.CreateProfile(ctx, user.ID, ProfileInput{Phone: "1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID))
	require.ErrorIs(t, svc.Delete(ctx, user.ID), ErrUserNotFound)

	var profiles int64
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&profiles).Error)
	require.Zero(t, profiles)

	withHistory, err := svc.Create(ctx, CreateUserInput{Email: "hank@example.com", Password: "secret123"})
	require.NoError(t, err)
	obligation := &models.Obligation{Name: "Fee", Amount: 10}
	require.NoError(t, db.Create(obligation).Error)
	require.NoError(t, db.Create(&models.UserObligation{UserID: withHistory.ID, ObligationID: obligation.ID, Amount: 10}).Error)

	require.ErrorIs(t, svc.Delete(ctx, withHistory.ID), ErrUserHasHistory)
}

func TestUserServiceChangePassword(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: "ivy@example.com", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "newsecret"))
	reloaded, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, crypto.VerifyPassword(reloaded.Password, "newsecret"))

	require.Error(t, svc.ChangePassword(ctx, user.ID, " "))
	require.ErrorIs(t, svc.ChangePassword(ctx, "missing", "newsecret"), ErrUserNotFound)
}

func TestUserServiceStats(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{Email: "jack@example.com", Password: "secret123"})
	require.NoError(t, err)
	paytype := &models.Paytype{Name: "Cash"}
	require.NoError(t, db.Create(paytype).Error)

	beer := &models.Product{Name: "Beer", Price: 2.5, Active: true}
	chips := &models.Product{Name: "Chips", Price: 1.2, Active: true}
	require.NoError(t, db.Create(beer).Error)
	require.NoError(t, db.Create(chips).Error)

	require.NoError(t, db.Create(&models.Transaction{
		UserID: user.ID, PaytypeID: paytype.ID, Sum: 8.7,
		Products: []models.TransactionProduct{
			{ProductID: beer.ID, Name: "Beer", Price: 2.5, Quantity: 3},
			{ProductID: chips.ID, Name: "Chips", Price: 1.2, Quantity: 1},
		},
	}).Error)
	require.NoError(t, db.Create(&models.Transaction{
		UserID: user.ID, PaytypeID: paytype.ID, Sum: 12, Invalid: true,
		Products: []models.TransactionProduct{
			{ProductID: chips.ID, Name: "Chips", Price: 1.2, Quantity: 10},
		},
	}).Error)

	stats, err := svc.Stats(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.TransactionCount)
	require.Equal(t, 8.7, stats.TotalSpent)
	require.Len(t, stats.PopularProducts, 2)
	require.Equal(t, beer.ID, stats.PopularProducts[0].ProductID)
	require.Equal(t, 3, stats.PopularProducts[0].Quantity)
	require.Equal(t, 7.5, stats.PopularProducts[0].Total)

	_, err = svc.Stats(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceEnsureAdmin(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, AdminInput{Email: "admin@example.com", Password: "admin123"}, seeding.RolesRole, testutil.OperationalRole)
	require.NoError(t, err)
	require.True(t, created)

	admin, err := svc.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.Len(t, admin.Roles, 2)

	created, err = svc.EnsureAdmin(ctx, AdminInput{Email: "admin@example.com", Password: "different"}, seeding.RolesRole)
	require.NoError(t, err)
	require.False(t, created)

	again, err := svc.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.Len(t, again.Roles, 2)
	require.Equal(t, admin.Password, again.Password)

	_, err = svc.EnsureAdmin(ctx, AdminInput{Email: "other@example.com", Password: "x"}, "NOPE")
	require.Error(t, err)
}
