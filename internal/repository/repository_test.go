package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/database"
	"github.com/charlesng35/fratpos/internal/models"
)

func TestRepositoryCRUD(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := New[models.Product](db, WithOrder("name ASC"))
	ctx := context.Background()

	beer := &models.Product{Name: "Beer", Price: 1.5, Quantity: 24, Active: true}
	cider := &models.Product{Name: "Cider", Price: 2, Quantity: 12, Active: true}
	require.NoError(t, repo.Create(ctx, cider))
	require.NoError(t, repo.Create(ctx, beer))
	require.NotEmpty(t, beer.ID)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Beer", list[0].Name)

	loaded, err := repo.Get(ctx, beer.ID)
	require.NoError(t, err)
	require.Equal(t, 24, loaded.Quantity)

	loaded.Quantity = 20
	require.NoError(t, repo.Save(ctx, loaded))

	loaded, err = repo.Get(ctx, beer.ID)
	require.NoError(t, err)
	require.Equal(t, 20, loaded.Quantity)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	require.NoError(t, repo.Delete(ctx, beer.ID))
	require.ErrorIs(t, repo.Delete(ctx, beer.ID), ErrNotFound)

	_, err = repo.Get(ctx, beer.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryCreateDuplicateIsUniqueViolation(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := New[models.Status](db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Status{Name: "member"}))
	err := repo.Create(ctx, &models.Status{Name: "member"})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
}

func TestPermissionRepositoryFindByNameInDropsUnknown(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := NewPermissionRepository(db)
	ctx := context.Background()

	for _, name := range []string{"ROLES_VIEW", "USERS_VIEW"} {
		require.NoError(t, repo.Save(ctx, &models.Permission{Name: name}))
	}

	found, err := repo.FindByNameIn(ctx, []string{"USERS_VIEW", "GHOST"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "USERS_VIEW", found[0].Name)

	found, err = repo.FindByNameIn(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, found)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestPermissionRepositorySaveAssignsIdentifier(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := NewPermissionRepository(db)

	perm := &models.Permission{Name: "POS_VIEW"}
	require.NoError(t, repo.Save(context.Background(), perm))
	require.NotEmpty(t, perm.ID)

	err := repo.Save(context.Background(), &models.Permission{Name: "POS_VIEW"})
	require.True(t, IsUniqueViolation(err))
}

func TestRoleRepositoryFindOneByNameAndSave(t *testing.T) {
	db := openRepositoryTestDB(t)
	perms := NewPermissionRepository(db)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	missing, err := roles.FindOneByName(ctx, "ROLES")
	require.NoError(t, err)
	require.Nil(t, missing)

	view := &models.Permission{Name: "ROLES_VIEW"}
	modify := &models.Permission{Name: "ROLES_MODIFY"}
	require.NoError(t, perms.Save(ctx, view))
	require.NoError(t, perms.Save(ctx, modify))

	role := &models.Role{Name: "ROLES", Permissions: []models.Permission{*modify, *view}}
	require.NoError(t, roles.Save(ctx, role))
	require.NotEmpty(t, role.ID)

	found, err := roles.FindOneByName(ctx, "ROLES")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.ElementsMatch(t, []string{"ROLES_VIEW", "ROLES_MODIFY"}, found.PermissionNames())

	caseMismatch, err := roles.FindOneByName(ctx, "roles")
	require.NoError(t, err)
	require.Nil(t, caseMismatch)

	found.Permissions = []models.Permission{*view}
	require.NoError(t, roles.Save(ctx, found))

	reloaded, err := roles.Get(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"ROLES_VIEW"}, reloaded.PermissionNames())

	reloaded.Permissions = nil
	require.NoError(t, roles.Save(ctx, reloaded))
	reloaded, err = roles.Get(ctx, role.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.Permissions)

	require.Error(t, roles.Save(ctx, nil))
}

func TestRepositoryWithTxRollsBack(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := New[models.Status](db)
	ctx := context.Background()

	sentinel := errors.New("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, repo.WithTx(tx).Create(ctx, &models.Status{Name: "alumni"}))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, IsUniqueViolation(nil))
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: roles.name")))
	require.False(t, IsUniqueViolation(errors.New("FOREIGN KEY constraint failed")))
}

func openRepositoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", DSN: database.MemoryDSN(t.Name())})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	require.NoError(t, database.AutoMigrate(db))
	return db
}
