package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/logger"
)

// AssignObligationInput customises an obligation charged to a user. Zero values
// fall back to the obligation's amount and description.
type AssignObligationInput struct {
	Amount      float64 `json:"amount" validate:"gte=0"`
	Description string  `json:"description"`
	DayOfMonth  int     `json:"day_of_month" validate:"omitempty,min=1,max=31"`
}

// ObligationService charges obligations to user balances.
type ObligationService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// NewObligationService constructs an ObligationService.
func NewObligationService(db *gorm.DB, audit *AuditService) (*ObligationService, error) {
	if db == nil {
		return nil, errors.New("obligation service: db is required")
	}
	return &ObligationService{db: db, audit: audit, now: time.Now}, nil
}

// Assign charges a one-off obligation to the user immediately.
func (s *ObligationService) Assign(ctx context.Context, userID, obligationID string, input AssignObligationInput) (*models.UserObligation, error) {
	return s.assign(ensureContext(ctx), userID, obligationID, input, false)
}

// AssignRecurring registers an obligation charged every month on DayOfMonth.
// The first charge happens when the scheduler next runs on or after that day.
func (s *ObligationService) AssignRecurring(ctx context.Context, userID, obligationID string, input AssignObligationInput) (*models.UserObligation, error) {
	if input.DayOfMonth < 1 || input.DayOfMonth > 31 {
		return nil, apperrors.NewBadRequest("day_of_month must be between 1 and 31")
	}
	return s.assign(ensureContext(ctx), userID, obligationID, input, true)
}

func (s *ObligationService) assign(ctx context.Context, userID, obligationID string, input AssignObligationInput, recurring bool) (*models.UserObligation, error) {
	var assigned *models.UserObligation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}

		var obligation models.Obligation
		if err := tx.First(&obligation, "id = ?", strings.TrimSpace(obligationID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrObligationNotFound
			}
			return fmt.Errorf("load obligation: %w", err)
		}

		amount := obligation.Amount
		if input.Amount > 0 {
			amount = input.Amount
		}
		description := strings.TrimSpace(input.Description)
		if description == "" {
			description = obligation.Description
		}

		assigned = &models.UserObligation{
			UserID:       user.ID,
			ObligationID: obligation.ID,
			Amount:       roundMoney(amount),
			Description:  description,
			Recurring:    recurring,
		}
		if recurring {
			assigned.DayOfMonth = input.DayOfMonth
			return tx.Create(assigned).Error
		}

		now := s.now()
		assigned.LastAppliedAt = &now
		if err := tx.Create(assigned).Error; err != nil {
			return err
		}
		return charge(tx, user.ID, assigned.Amount)
	})
	if err != nil {
		return nil, translateServiceError("obligation service", err)
	}

	action := "user.obligation_assign"
	if recurring {
		action = "user.obligation_assign_recurring"
	}
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   action,
		Resource: assigned.UserID,
		Result:   "success",
		Metadata: map[string]any{
			"obligation_id": assigned.ObligationID,
			"amount":        assigned.Amount,
		},
	})

	return assigned, nil
}

// ListForUser returns the obligations charged to a user, newest first.
func (s *ObligationService) ListForUser(ctx context.Context, userID string) ([]models.UserObligation, error) {
	var out []models.UserObligation
	if err := s.db.WithContext(ensureContext(ctx)).
		Preload("Obligation").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("obligation service: list: %w", err)
	}
	return out, nil
}

// ApplyRecurring charges every recurring obligation due at now that has not
// been charged this month. It returns the number of charges applied.
func (s *ObligationService) ApplyRecurring(ctx context.Context, now time.Time) (int, error) {
	ctx = ensureContext(ctx)
	log := logger.WithModule("obligations")

	var recurring []models.UserObligation
	if err := s.db.WithContext(ctx).Where("recurring = ?", true).Find(&recurring).Error; err != nil {
		return 0, fmt.Errorf("obligation service: load recurring: %w", err)
	}

	applied := 0
	for _, item := range recurring {
		if !item.DueOn(now) {
			continue
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// guard against a concurrent run charging the same month
			monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
			query := tx.Model(&models.UserObligation{}).
				Where("id = ? AND (last_applied_at IS NULL OR last_applied_at < ?)", item.ID, monthStart)
			result := query.Update("last_applied_at", now)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return nil
			}
			if err := charge(tx, item.UserID, item.Amount); err != nil {
				return err
			}
			applied++
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("obligation service: apply %s: %w", item.ID, err)
		}
		log.Debug("recurring obligation charged", zap.String("user_id", item.UserID), zap.Float64("amount", item.Amount))
	}

	if applied > 0 {
		recordAudit(s.audit, ctx, AuditEntry{
			Action:   "obligation.apply_recurring",
			Result:   "success",
			Metadata: map[string]any{"applied": applied},
		})
	}
	return applied, nil
}

func charge(tx *gorm.DB, userID string, amount float64) error {
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
		return fmt.Errorf("charge balance: %w", err)
	}
	return nil
}
