package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/realtime"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
)

// ErrPaytypeExists indicates the paytype name is taken.
var ErrPaytypeExists = apperrors.New("PAYTYPE_EXISTS", "A paytype with this name already exists", http.StatusConflict)

// PaytypeInput is the payload for creating a paytype.
type PaytypeInput struct {
	Name             string   `json:"name" validate:"required,notblank,max=64"`
	AffectsBalance   bool     `json:"affects_balance"`
	AffectsQuantity  bool     `json:"affects_quantity"`
	Credit           bool     `json:"credit"`
	AllowedStatusIDs []string `json:"allowed_for_status"`
}

// PaytypePatch updates the supplied paytype fields. A non-nil AllowedStatusIDs
// replaces the allowed statuses.
type PaytypePatch struct {
	Name             *string   `json:"name" validate:"omitempty,notblank,max=64"`
	AffectsBalance   *bool     `json:"affects_balance"`
	AffectsQuantity  *bool     `json:"affects_quantity"`
	Credit           *bool     `json:"credit"`
	AllowedStatusIDs *[]string `json:"allowed_for_status"`
}

// PaytypeService manages paytypes and the statuses allowed to use them.
type PaytypeService struct {
	db        *gorm.DB
	audit     *AuditService
	publisher EventPublisher
}

var _ Resource[models.Paytype, PaytypeInput, PaytypePatch] = (*PaytypeService)(nil)

// NewPaytypeService constructs a PaytypeService.
func NewPaytypeService(db *gorm.DB, audit *AuditService, publisher EventPublisher) (*PaytypeService, error) {
	if db == nil {
		return nil, errors.New("paytype service: db is required")
	}
	return &PaytypeService{db: db, audit: audit, publisher: publisherOrNoop(publisher)}, nil
}

// List returns all paytypes with their allowed statuses.
func (s *PaytypeService) List(ctx context.Context) ([]models.Paytype, error) {
	var paytypes []models.Paytype
	if err := s.db.WithContext(ensureContext(ctx)).
		Preload("AllowedForStatus", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Order("name ASC").
		Find(&paytypes).Error; err != nil {
		return nil, fmt.Errorf("paytype service: list: %w", err)
	}
	return paytypes, nil
}

// Get loads a paytype by id.
func (s *PaytypeService) Get(ctx context.Context, id string) (*models.Paytype, error) {
	return s.load(ensureContext(ctx), s.db, id)
}

// Create inserts a paytype and links the allowed statuses.
func (s *PaytypeService) Create(ctx context.Context, input PaytypeInput) (*models.Paytype, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("paytype name is required")
	}

	paytype := &models.Paytype{
		Name:            name,
		AffectsBalance:  input.AffectsBalance,
		AffectsQuantity: input.AffectsQuantity,
		Credit:          input.Credit,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		statuses, err := loadStatuses(tx, input.AllowedStatusIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(paytype).Error; err != nil {
			return err
		}
		if len(statuses) > 0 {
			if err := tx.Model(paytype).Association("AllowedForStatus").Replace(statuses); err != nil {
				return fmt.Errorf("link statuses: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(err)
	}

	s.changed(ctx, "create", paytype.ID)
	return s.Get(ctx, paytype.ID)
}

// Update applies the supplied fields to a paytype.
func (s *PaytypeService) Update(ctx context.Context, id string, input PaytypePatch) (*models.Paytype, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paytype, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Name != nil {
			if name := strings.TrimSpace(*input.Name); name != "" && name != paytype.Name {
				updates["name"] = name
			}
		}
		if input.AffectsBalance != nil {
			updates["affects_balance"] = *input.AffectsBalance
		}
		if input.AffectsQuantity != nil {
			updates["affects_quantity"] = *input.AffectsQuantity
		}
		if input.Credit != nil {
			updates["credit"] = *input.Credit
		}

		target := &models.Paytype{BaseModel: models.BaseModel{ID: paytype.ID}}
		if len(updates) > 0 {
			if err := tx.Model(target).Updates(updates).Error; err != nil {
				return err
			}
		}

		if input.AllowedStatusIDs != nil {
			statuses, err := loadStatuses(tx, *input.AllowedStatusIDs)
			if err != nil {
				return err
			}
			assoc := tx.Model(target).Association("AllowedForStatus")
			if len(statuses) == 0 {
				err = assoc.Clear()
			} else {
				err = assoc.Replace(statuses)
			}
			if err != nil {
				return fmt.Errorf("link statuses: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(err)
	}

	s.changed(ctx, "update", id)
	return s.Get(ctx, id)
}

// Delete removes a paytype that no transaction references.
func (s *PaytypeService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paytype, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		var used int64
		if err := tx.Model(&models.Transaction{}).Where("paytype_id = ?", paytype.ID).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return apperrors.New("PAYTYPE_IN_USE", "Paytype is referenced by transactions", http.StatusConflict)
		}

		if err := tx.Model(paytype).Association("AllowedForStatus").Clear(); err != nil {
			return err
		}
		return tx.Delete(paytype).Error
	})
	if err != nil {
		return s.translate(err)
	}

	s.changed(ctx, "delete", id)
	return nil
}

func (s *PaytypeService) load(ctx context.Context, db *gorm.DB, id string) (*models.Paytype, error) {
	var paytype models.Paytype
	err := db.WithContext(ctx).
		Preload("AllowedForStatus", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		First(&paytype, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaytypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("paytype service: load: %w", err)
	}
	return &paytype, nil
}

func (s *PaytypeService) translate(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueConstraintError(err) {
		return ErrPaytypeExists
	}
	return fmt.Errorf("paytype service: %w", err)
}

func (s *PaytypeService) changed(ctx context.Context, action, id string) {
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "paytype." + action,
		Resource: id,
		Result:   "success",
	})
	s.publisher.Publish(realtime.StreamCatalog, realtime.EventCatalogChanged, map[string]any{
		"resource": "paytype",
		"action":   action,
		"id":       id,
	})
}

func loadStatuses(tx *gorm.DB, ids []string) ([]models.Status, error) {
	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var statuses []models.Status
	if err := tx.Where("id IN ?", ids).Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	if len(statuses) != len(ids) {
		return nil, apperrors.NewBadRequest("one or more statuses were not found")
	}
	return statuses, nil
}
