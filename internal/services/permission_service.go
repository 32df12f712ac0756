package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/internal/repository"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
)

// PermissionService provides role management and permission assignment helpers.
type PermissionService struct {
	db           *gorm.DB
	roles        *repository.RoleRepository
	perms        *repository.PermissionRepository
	checker      *permissions.Checker
	auditService *AuditService
}

// NewPermissionService constructs a PermissionService using the provided database handle.
func NewPermissionService(db *gorm.DB, audit *AuditService) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}
	return &PermissionService{
		db:           db,
		roles:        repository.NewRoleRepository(db),
		perms:        repository.NewPermissionRepository(db),
		checker:      checker,
		auditService: audit,
	}, nil
}

// CreateRoleInput describes the payload accepted by CreateRole.
type CreateRoleInput struct {
	Name        string   `json:"name" validate:"required,notblank,max=128"`
	Description string   `json:"description" validate:"omitempty,max=255"`
	Permissions []string `json:"permissions"`
}

// UpdateRoleInput describes mutable fields on a role.
type UpdateRoleInput struct {
	Name        *string `json:"name" validate:"omitempty,max=128"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// ListPermissions returns the permission catalog.
func (s *PermissionService) ListPermissions() []permissions.Definition {
	return permissions.Definitions()
}

// ListRoles returns all roles ordered by name.
func (s *PermissionService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.roles.List(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("permission service: list roles: %w", err)
	}
	return roles, nil
}

// GetRole loads a role with its permissions.
func (s *PermissionService) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	role, err := s.roles.Get(ensureContext(ctx), roleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permission service: load role: %w", err)
	}
	return role, nil
}

// CreateRole registers a new role holding the requested permissions.
func (s *PermissionService) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("role name is required")
	}

	perms, err := s.resolvePermissions(ctx, input.Permissions)
	if err != nil {
		return nil, err
	}

	role := &models.Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Permissions: perms,
	}

	if err := s.roles.Save(ctx, role); err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("permission service: create role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.create",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{
			"name":        role.Name,
			"permissions": role.PermissionNames(),
		},
	})

	return s.GetRole(ctx, role.ID)
}

// UpdateRole modifies existing role metadata.
func (s *PermissionService) UpdateRole(ctx context.Context, roleID string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != role.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != role.Description {
			updates["description"] = desc
		}
	}

	if len(updates) == 0 {
		return role, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Role{BaseModel: models.BaseModel{ID: role.ID}}).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("permission service: update role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.update",
		Resource: role.ID,
		Result:   "success",
		Metadata: updates,
	})

	return s.GetRole(ctx, role.ID)
}

// DeleteRole removes a role along with its permission and membership links.
func (s *PermissionService) DeleteRole(ctx context.Context, roleID string) error {
	ctx = ensureContext(ctx)

	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, "id = ?", roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("permission service: load role: %w", err)
		}
		name = role.Name

		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return fmt.Errorf("permission service: clear role permissions: %w", err)
		}
		if err := tx.Model(&role).Association("Users").Clear(); err != nil {
			return fmt.Errorf("permission service: clear role users: %w", err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("permission service: delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.delete",
		Resource: roleID,
		Result:   "success",
		Metadata: map[string]any{"name": name},
	})

	return nil
}

// SetRolePermissions replaces the role's permissions with the provided set.
func (s *PermissionService) SetRolePermissions(ctx context.Context, roleID string, names []string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	perms, err := s.resolvePermissions(ctx, names)
	if err != nil {
		return nil, err
	}

	role.Permissions = perms
	if err := s.roles.Save(ctx, role); err != nil {
		return nil, fmt.Errorf("permission service: update permissions: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.set_permissions",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"permissions": role.PermissionNames()},
	})

	return s.GetRole(ctx, role.ID)
}

// ListUserPermissions resolves the effective permissions granted to the supplied user.
func (s *PermissionService) ListUserPermissions(ctx context.Context, userID string) ([]permissions.Permission, error) {
	return s.checker.GetUserPermissions(ensureContext(ctx), userID)
}

// resolvePermissions maps identifiers onto stored permission records. Unknown
// identifiers and identifiers without a stored record are rejected.
func (s *PermissionService) resolvePermissions(ctx context.Context, names []string) ([]models.Permission, error) {
	parsed, err := permissions.ParseAll(normaliseIDs(names))
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	if len(parsed) == 0 {
		return nil, nil
	}

	stored, err := s.perms.FindByNameIn(ctx, permissions.Names(parsed...))
	if err != nil {
		return nil, fmt.Errorf("permission service: load permissions: %w", err)
	}
	if len(stored) != len(parsed) {
		return nil, apperrors.NewBadRequest("one or more permissions are not provisioned")
	}
	return stored, nil
}
