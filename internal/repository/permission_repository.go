package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
)

// PermissionRepository stores permission records.
type PermissionRepository struct {
	*Repository[models.Permission]
}

// NewPermissionRepository constructs a PermissionRepository.
func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{Repository: New[models.Permission](db)}
}

// FindByNameIn returns the stored permissions whose names appear in names.
// Names with no stored record are silently left out.
func (r *PermissionRepository) FindByNameIn(ctx context.Context, names []string) ([]models.Permission, error) {
	if len(names) == 0 {
		return []models.Permission{}, nil
	}

	var out []models.Permission
	if err := r.DB(ctx).Where("name IN ?", names).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("permission repository: find by names: %w", err)
	}
	return out, nil
}
