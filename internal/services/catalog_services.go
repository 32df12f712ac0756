package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/auditctx"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/internal/repository"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
)

var (
	// ErrProductExists indicates the product name is taken.
	ErrProductExists = apperrors.New("PRODUCT_EXISTS", "A product with this name already exists", http.StatusConflict)
	// ErrStatusNotFound indicates the requested status does not exist.
	ErrStatusNotFound = apperrors.New("STATUS_NOT_FOUND", "Status not found", http.StatusNotFound)
	// ErrStatusExists indicates the status name is taken.
	ErrStatusExists = apperrors.New("STATUS_EXISTS", "A status with this name already exists", http.StatusConflict)
	// ErrObligationInUse blocks deleting obligations already charged to users.
	ErrObligationInUse = apperrors.New("OBLIGATION_IN_USE", "Obligation is assigned to users", http.StatusConflict)
	// ErrFeedbackNotFound indicates the requested feedback does not exist.
	ErrFeedbackNotFound = apperrors.New("FEEDBACK_NOT_FOUND", "Feedback not found", http.StatusNotFound)
)

// ProductInput is the payload for creating a product.
type ProductInput struct {
	Name     string  `json:"name" validate:"required,notblank,max=128"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity"`
	Active   *bool   `json:"active"`
}

// ProductPatch updates the supplied product fields.
type ProductPatch struct {
	Name     *string  `json:"name" validate:"omitempty,notblank,max=128"`
	Price    *float64 `json:"price" validate:"omitempty,gte=0"`
	Quantity *int     `json:"quantity"`
	Active   *bool    `json:"active"`
}

// StatusInput is the payload for creating a status.
type StatusInput struct {
	Name        string `json:"name" validate:"required,notblank,max=64"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

// StatusPatch updates the supplied status fields.
type StatusPatch struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=64"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// ObligationInput is the payload for creating an obligation.
type ObligationInput struct {
	Name        string  `json:"name" validate:"required,notblank,max=128"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Description string  `json:"description"`
}

// ObligationPatch updates the supplied obligation fields.
type ObligationPatch struct {
	Name        *string  `json:"name" validate:"omitempty,notblank,max=128"`
	Amount      *float64 `json:"amount" validate:"omitempty,gt=0"`
	Description *string  `json:"description"`
}

// FeedbackInput is the payload for leaving feedback.
type FeedbackInput struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// FeedbackPatch edits feedback content.
type FeedbackPatch struct {
	Content *string `json:"content" validate:"omitempty,max=2000"`
}

type (
	// ProductService manages products.
	ProductService = CRUDService[models.Product, ProductInput, ProductPatch]
	// StatusService manages user statuses.
	StatusService = CRUDService[models.Status, StatusInput, StatusPatch]
	// ObligationCatalogService manages obligation definitions.
	ObligationCatalogService = CRUDService[models.Obligation, ObligationInput, ObligationPatch]
	// FeedbackService stores POS feedback.
	FeedbackService = CRUDService[models.Feedback, FeedbackInput, FeedbackPatch]
)

// NewProductService constructs the product service. Products default to active.
func NewProductService(db *gorm.DB, audit *AuditService, publisher EventPublisher) (*ProductService, error) {
	return NewCRUDService[models.Product, ProductInput, ProductPatch](db, audit, publisher, CRUDConfig[models.Product, ProductInput]{
		Name:     "product",
		NotFound: ErrProductNotFound,
		Exists:   ErrProductExists,
		Stream:   realtime.StreamCatalog,
		Repo:     []repository.Option{repository.WithOrder("name ASC")},
		OnCreate: func(_ context.Context, product *models.Product, input ProductInput) {
			product.Active = input.Active == nil || *input.Active
		},
		Normalize: func(product *models.Product) {
			product.Name = strings.TrimSpace(product.Name)
			product.Price = roundMoney(product.Price)
		},
	})
}

// NewStatusService constructs the status service. Deleting a status detaches it
// from users and paytypes.
func NewStatusService(db *gorm.DB, audit *AuditService, publisher EventPublisher) (*StatusService, error) {
	return NewCRUDService[models.Status, StatusInput, StatusPatch](db, audit, publisher, CRUDConfig[models.Status, StatusInput]{
		Name:     "status",
		NotFound: ErrStatusNotFound,
		Exists:   ErrStatusExists,
		Stream:   realtime.StreamCatalog,
		Repo:     []repository.Option{repository.WithOrder("name ASC")},
		Normalize: func(status *models.Status) {
			status.Name = strings.TrimSpace(status.Name)
		},
		BeforeDelete: func(ctx context.Context, tx *gorm.DB, id string) error {
			if err := tx.Model(&models.User{}).Where("status_id = ?", id).Update("status_id", nil).Error; err != nil {
				return fmt.Errorf("detach users: %w", err)
			}
			if err := tx.Exec("DELETE FROM paytype_statuses WHERE status_id = ?", id).Error; err != nil {
				return fmt.Errorf("detach paytypes: %w", err)
			}
			return nil
		},
	})
}

// NewObligationCatalogService constructs the obligation definition service.
func NewObligationCatalogService(db *gorm.DB, audit *AuditService) (*ObligationCatalogService, error) {
	return NewCRUDService[models.Obligation, ObligationInput, ObligationPatch](db, audit, nil, CRUDConfig[models.Obligation, ObligationInput]{
		Name:     "obligation",
		NotFound: ErrObligationNotFound,
		Repo:     []repository.Option{repository.WithOrder("name ASC")},
		Normalize: func(obligation *models.Obligation) {
			obligation.Name = strings.TrimSpace(obligation.Name)
			obligation.Amount = roundMoney(obligation.Amount)
		},
		BeforeDelete: func(ctx context.Context, tx *gorm.DB, id string) error {
			var count int64
			if err := tx.Model(&models.UserObligation{}).Where("obligation_id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("count assignments: %w", err)
			}
			if count > 0 {
				return ErrObligationInUse
			}
			return nil
		},
	})
}

// NewFeedbackService constructs the feedback service. Entries are listed newest
// first and attributed to the request actor.
func NewFeedbackService(db *gorm.DB, audit *AuditService) (*FeedbackService, error) {
	return NewCRUDService[models.Feedback, FeedbackInput, FeedbackPatch](db, audit, nil, CRUDConfig[models.Feedback, FeedbackInput]{
		Name:     "feedback",
		NotFound: ErrFeedbackNotFound,
		Repo:     []repository.Option{repository.WithOrder("created_at DESC")},
		OnCreate: func(ctx context.Context, feedback *models.Feedback, _ FeedbackInput) {
			if actor, ok := auditctx.FromContext(ctx); ok && actor.UserID != "" {
				id := actor.UserID
				feedback.AuthorID = &id
			}
		},
		Normalize: func(feedback *models.Feedback) {
			feedback.Content = strings.TrimSpace(feedback.Content)
		},
	})
}
