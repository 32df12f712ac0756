package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/fratpos/internal/models"
)

// RoleRepository stores roles together with their permission sets.
type RoleRepository struct {
	*Repository[models.Role]
}

// NewRoleRepository constructs a RoleRepository.
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{Repository: New[models.Role](db, WithPreload("Permissions"), WithOrder("name ASC"))}
}

// FindOneByName returns the role with exactly this name, or nil when none exists.
func (r *RoleRepository) FindOneByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.DB(ctx).Preload("Permissions").Take(&role, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("role repository: find %q: %w", name, err)
	}
	return &role, nil
}

// Save upserts the role and replaces its stored permission set with role.Permissions.
func (r *RoleRepository) Save(ctx context.Context, role *models.Role) error {
	if role == nil {
		return errors.New("role repository: role is nil")
	}

	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(role).Error; err != nil {
			return fmt.Errorf("role repository: save %q: %w", role.Name, err)
		}
		assoc := tx.Model(role).Association("Permissions")
		var err error
		if len(role.Permissions) == 0 {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(role.Permissions)
		}
		if err != nil {
			return fmt.Errorf("role repository: replace permissions of %q: %w", role.Name, err)
		}
		return nil
	})
}
