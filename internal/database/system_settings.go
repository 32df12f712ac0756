package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/fratpos/internal/models"
)

// OperationalRoleSetting remembers the operational role name used at the last startup.
const OperationalRoleSetting = "pos.operational_role"

var errNilDB = errors.New("system settings: db is nil")

// GetSystemSetting returns the stored value for key, or "" when none is stored.
func GetSystemSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	if db == nil {
		return "", errNilDB
	}
	if key = strings.TrimSpace(key); key == "" {
		return "", nil
	}

	var setting models.SystemSetting
	err := db.WithContext(ctx).Where(&models.SystemSetting{Key: key}).Take(&setting).Error
	switch {
	case err == nil:
		return setting.Value, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("system settings: get %q: %w", key, err)
	}
}

// UpsertSystemSetting writes value under key in a single statement.
func UpsertSystemSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	if db == nil {
		return errNilDB
	}
	if key = strings.TrimSpace(key); key == "" {
		return errors.New("system settings: key is required")
	}

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&models.SystemSetting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("system settings: upsert %q: %w", key, err)
	}
	return nil
}

// RecordOperationalRole stores role as the operational role and returns the
// name recorded by the previous startup ("" on first start). Startup uses the
// difference to warn that the previous role was left as it is.
func RecordOperationalRole(ctx context.Context, db *gorm.DB, role string) (string, error) {
	if role = strings.TrimSpace(role); role == "" {
		return "", errors.New("system settings: operational role is empty")
	}

	previous, err := GetSystemSetting(ctx, db, OperationalRoleSetting)
	if err != nil || previous == role {
		return previous, err
	}
	return previous, UpsertSystemSetting(ctx, db, OperationalRoleSetting, role)
}
