package permissions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
)

// Checker resolves the effective permissions of a user from the roles they
// hold. Inactive users hold nothing.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// Check reports whether userID holds permission, directly or implied by a
// stronger one. An unknown user yields gorm.ErrRecordNotFound.
func (c *Checker) Check(ctx context.Context, userID string, permission Permission) (bool, error) {
	if !permission.Valid() {
		return false, fmt.Errorf("%w %q", ErrUnknownPermission, permission)
	}
	held, err := c.effective(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := held[permission]
	return ok, nil
}

// GetUserPermissions lists the effective permissions of userID in catalog order.
func (c *Checker) GetUserPermissions(ctx context.Context, userID string) ([]Permission, error) {
	held, err := c.effective(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog := All()
	return slices.DeleteFunc(catalog, func(p Permission) bool {
		_, ok := held[p]
		return !ok
	}), nil
}

func (c *Checker) effective(ctx context.Context, userID string) (map[Permission]struct{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, errors.New("permission checker: user id is required")
	}
	db := c.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id", "active").Take(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("permission checker: load user: %w", err)
	}
	if !user.Active {
		return map[Permission]struct{}{}, nil
	}

	var names []string
	err := db.Model(&models.Permission{}).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Joins("JOIN user_roles ur ON ur.role_id = rp.role_id").
		Where("ur.user_id = ?", userID).
		Pluck("permissions.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("permission checker: load grants: %w", err)
	}

	held := make([]Permission, len(names))
	for i, name := range names {
		held[i] = Permission(name)
	}
	return Expand(held...), nil
}
