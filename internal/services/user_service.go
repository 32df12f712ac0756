package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/pkg/crypto"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	FirstName string  `json:"first_name" validate:"omitempty,max=128"`
	LastName  string  `json:"last_name" validate:"omitempty,max=128"`
	Nickname  string  `json:"nickname" validate:"omitempty,max=64"`
	StatusID  string  `json:"status_id" validate:"omitempty,uuid"`
	Balance   float64 `json:"balance"`
}

// UpdateUserInput enumerates mutable user attributes. Password, roles and
// profile have dedicated operations.
type UpdateUserInput struct {
	Email     *string  `json:"email" validate:"omitempty,email"`
	FirstName *string  `json:"first_name" validate:"omitempty,max=128"`
	LastName  *string  `json:"last_name" validate:"omitempty,max=128"`
	Nickname  *string  `json:"nickname" validate:"omitempty,max=64"`
	StatusID  *string  `json:"status_id"`
	Balance   *float64 `json:"balance"`
	Active    *bool    `json:"active"`
}

// ProfileInput carries the contact details stored on a user profile.
type ProfileInput struct {
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Address     string `json:"address" validate:"omitempty,max=255"`
	StudentCode string `json:"student_code" validate:"omitempty,max=32"`
	Notes       string `json:"notes"`
}

// AdminInput describes the bootstrap administrator account.
type AdminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserFilters captures listing filters.
type UserFilters struct {
	Active *bool
	Query  string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// ProductStat summarises how much of a product a user has bought.
type ProductStat struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

// UserStats is the purchase summary shown on the user page.
type UserStats struct {
	UserID           string        `json:"user_id"`
	TransactionCount int64         `json:"transaction_count"`
	TotalSpent       float64       `json:"total_spent"`
	PopularProducts  []ProductStat `json:"popular_products"`
}

const popularProductsLimit = 10

// UserService manages the user lifecycle including roles, profile and password.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	locks        *keyedMutex
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:           db,
		auditService: auditService,
		locks:        newKeyedMutex(),
	}, nil
}

// Create provisions a new active user with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Nickname:  strings.TrimSpace(input.Nickname),
		Balance:   roundMoney(input.Balance),
		Active:    true,
	}

	if statusID := strings.TrimSpace(input.StatusID); statusID != "" {
		if err := s.ensureStatus(ctx, s.db, statusID); err != nil {
			return nil, err
		}
		user.StatusID = &statusID
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"email": user.Email},
	})

	return s.GetByID(ctx, user.ID)
}

// GetByID loads a user by identifier including status, roles and profile.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Status").
		Preload("Roles.Permissions").
		Preload("Profile").
		First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by email address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Status").
		Preload("Roles.Permissions").
		Preload("Profile").
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user by email: %w", err)
	}
	return &user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 500 {
		perPage = 100
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Filters.Active != nil {
		query = query.Where("active = ?", *opts.Filters.Active)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(nickname) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("first_name ASC, last_name ASC, email ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Preload("Status").
		Preload("Roles").
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// Update persists mutable attributes for an existing user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	updates := map[string]any{}

	if input.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*input.Email)); email != "" && email != user.Email {
			updates["email"] = email
		}
	}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Nickname != nil {
		updates["nickname"] = strings.TrimSpace(*input.Nickname)
	}
	if input.Balance != nil {
		updates["balance"] = roundMoney(*input.Balance)
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if input.StatusID != nil {
		statusID := strings.TrimSpace(*input.StatusID)
		if statusID == "" {
			updates["status_id"] = nil
		} else {
			if err := s.ensureStatus(ctx, s.db, statusID); err != nil {
				return nil, err
			}
			updates["status_id"] = statusID
		}
	}

	if len(updates) == 0 {
		return s.GetByID(ctx, id)
	}

	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.update",
		Resource: user.ID,
		Result:   "success",
		Metadata: updates,
	})

	return s.GetByID(ctx, id)
}

// Delete removes a user that has no transaction or obligation history.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("user service: load user: %w", err)
		}

		var transactions, obligations int64
		if err := tx.Model(&models.Transaction{}).Where("user_id = ?", user.ID).Count(&transactions).Error; err != nil {
			return fmt.Errorf("user service: count transactions: %w", err)
		}
		if err := tx.Model(&models.UserObligation{}).Where("user_id = ?", user.ID).Count(&obligations).Error; err != nil {
			return fmt.Errorf("user service: count obligations: %w", err)
		}
		if transactions > 0 || obligations > 0 {
			return ErrUserHasHistory
		}

		if err := tx.Model(&user).Association("Roles").Clear(); err != nil {
			return fmt.Errorf("user service: clear user roles: %w", err)
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserProfile{}).Error; err != nil {
			return fmt.Errorf("user service: delete profile: %w", err)
		}
		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.delete",
		Resource: id,
		Result:   "success",
	})

	return nil
}

// ChangePassword hashes and updates the user's password.
func (s *UserService) ChangePassword(ctx context.Context, id, newPassword string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password", hashed)

	if result.Error != nil {
		return fmt.Errorf("user service: change password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.password_change",
		Resource: id,
		Result:   "success",
	})

	return nil
}

// rehashPassword replaces a hash made with an outdated cost. It is only
// called after password has been verified.
func (s *UserService) rehashPassword(ctx context.Context, id, password string) error {
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password", hashed).Error
}

func hashPassword(password string) (string, error) {
	hashed, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return "", apperrors.NewBadRequest("password must not exceed 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("user service: hash password: %w", err)
	}
	return hashed, nil
}

// AddRole grants roleID to the user. Granting a role the user already holds is a no-op.
func (s *UserService) AddRole(ctx context.Context, userID, roleID string) (*models.User, error) {
	return s.changeRole(ctx, userID, roleID, true)
}

// RemoveRole revokes roleID from the user. Revoking a role the user does not hold is a no-op.
func (s *UserService) RemoveRole(ctx context.Context, userID, roleID string) (*models.User, error) {
	return s.changeRole(ctx, userID, roleID, false)
}

func (s *UserService) changeRole(ctx context.Context, userID, roleID string, grant bool) (*models.User, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return nil, apperrors.NewBadRequest("user id and role id are required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("user service: load user: %w", err)
		}

		var role models.Role
		if err := tx.First(&role, "id = ?", roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("user service: load role: %w", err)
		}

		if user.HasRole(role.ID) == grant {
			return nil
		}

		assoc := tx.Model(&user).Association("Roles")
		var err error
		if grant {
			err = assoc.Append(&role)
		} else {
			err = assoc.Delete(&role)
		}
		if err != nil {
			return fmt.Errorf("user service: update roles: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		action := "user.role_add"
		if !grant {
			action = "user.role_remove"
		}
		recordAudit(s.auditService, ctx, AuditEntry{
			Action:   action,
			Resource: userID,
			Result:   "success",
			Metadata: map[string]any{"role_id": roleID},
		})
	}

	return s.GetByID(ctx, userID)
}

// CreateProfile attaches a profile to a user that has none.
func (s *UserService) CreateProfile(ctx context.Context, userID string, input ProfileInput) (*models.UserProfile, error) {
	ctx = ensureContext(ctx)

	unlock := s.locks.Lock(userID)
	defer unlock()

	profile := &models.UserProfile{
		UserID:      userID,
		Phone:       strings.TrimSpace(input.Phone),
		Address:     strings.TrimSpace(input.Address),
		StudentCode: strings.TrimSpace(input.StudentCode),
		Notes:       input.Notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("user service: load user: %w", err)
		}
		if count == 0 {
			return ErrUserNotFound
		}

		if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("user service: count profiles: %w", err)
		}
		if count > 0 {
			return ErrProfileExists
		}

		if err := tx.Create(profile).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrProfileExists
			}
			return fmt.Errorf("user service: create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.profile_create",
		Resource: userID,
		Result:   "success",
	})

	return profile, nil
}

// UpdateProfile overwrites the contact details of the user's profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID, profileID string, input ProfileInput) (*models.UserProfile, error) {
	ctx = ensureContext(ctx)

	var profile models.UserProfile
	err := s.db.WithContext(ctx).First(&profile, "id = ? AND user_id = ?", profileID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load profile: %w", err)
	}

	profile.Phone = strings.TrimSpace(input.Phone)
	profile.Address = strings.TrimSpace(input.Address)
	profile.StudentCode = strings.TrimSpace(input.StudentCode)
	profile.Notes = input.Notes

	if err := s.db.WithContext(ctx).Save(&profile).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.profile_update",
		Resource: userID,
		Result:   "success",
	})

	return &profile, nil
}

// Stats summarises valid purchases made by the user.
func (s *UserService) Stats(ctx context.Context, userID string) (*UserStats, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	stats := &UserStats{UserID: userID, PopularProducts: []ProductStat{}}

	var totals struct {
		Count int64
		Spent float64
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COUNT(*) AS count, COALESCE(SUM(sum), 0) AS spent").
		Where("user_id = ? AND invalid = ?", userID, false).
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("user service: transaction totals: %w", err)
	}
	stats.TransactionCount = totals.Count
	stats.TotalSpent = roundMoney(totals.Spent)

	if err := s.db.WithContext(ctx).
		Table("transaction_products AS tp").
		Select("tp.product_id AS product_id, MAX(tp.name) AS name, SUM(tp.quantity) AS quantity, SUM(tp.price * tp.quantity) AS total").
		Joins("JOIN transactions t ON t.id = tp.transaction_id").
		Where("t.user_id = ? AND t.invalid = ?", userID, false).
		Group("tp.product_id").
		Order("quantity DESC").
		Limit(popularProductsLimit).
		Scan(&stats.PopularProducts).Error; err != nil {
		return nil, fmt.Errorf("user service: popular products: %w", err)
	}
	for i := range stats.PopularProducts {
		stats.PopularProducts[i].Total = roundMoney(stats.PopularProducts[i].Total)
	}

	return stats, nil
}

// EnsureAdmin creates the bootstrap administrator holding roleNames unless a
// user with the same email already exists. Existing users are left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, input AdminInput, roleNames ...string) (bool, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return false, apperrors.NewBadRequest("admin email and password are required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("user service: lookup admin: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		return false, err
	}

	names := normaliseIDs(roleNames)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roles []models.Role
		if len(names) > 0 {
			if err := tx.Where("name IN ?", names).Find(&roles).Error; err != nil {
				return fmt.Errorf("user service: load admin roles: %w", err)
			}
			if len(roles) != len(names) {
				return fmt.Errorf("user service: admin roles missing: expected %d, found %d", len(names), len(roles))
			}
		}

		admin := &models.User{
			Email:     email,
			Password:  hashed,
			FirstName: strings.TrimSpace(input.FirstName),
			LastName:  strings.TrimSpace(input.LastName),
			Active:    true,
			Roles:     roles,
		}
		if err := tx.Create(admin).Error; err != nil {
			return fmt.Errorf("user service: create admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.bootstrap_admin",
		Resource: email,
		Result:   "success",
		Metadata: map[string]any{"roles": names},
	})

	return true, nil
}

func (s *UserService) ensureStatus(ctx context.Context, db *gorm.DB, statusID string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Status{}).Where("id = ?", statusID).Count(&count).Error; err != nil {
		return fmt.Errorf("user service: load status: %w", err)
	}
	if count == 0 {
		return apperrors.NewBadRequest("status not found")
	}
	return nil
}
