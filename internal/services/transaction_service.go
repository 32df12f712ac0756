package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/realtime"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/metrics"
)

// TransactionLine is a requested product and quantity.
type TransactionLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// TransactionInput is the payload for a POS sale.
type TransactionInput struct {
	UserID    string            `json:"user_id" validate:"required"`
	PaytypeID string            `json:"paytype_id" validate:"required"`
	Products  []TransactionLine `json:"products" validate:"required,min=1,dive"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	UserID string
	Limit  int
}

// PosData is everything a POS terminal needs to render.
type PosData struct {
	Users        []models.User        `json:"users"`
	Transactions []models.Transaction `json:"transactions"`
	Products     []models.Product     `json:"products"`
	Paytypes     []models.Paytype     `json:"paytypes"`
	Statuses     []models.Status      `json:"statuses"`
}

const maxTransactionListLimit = 500

// TransactionService records sales and keeps balances and stock consistent.
type TransactionService struct {
	db          *gorm.DB
	audit       *AuditService
	publisher   EventPublisher
	recentLimit int
}

// NewTransactionService constructs a TransactionService. recentLimit bounds the
// transactions returned by PosData and unbounded listings.
func NewTransactionService(db *gorm.DB, audit *AuditService, publisher EventPublisher, recentLimit int) (*TransactionService, error) {
	if db == nil {
		return nil, errors.New("transaction service: db is required")
	}
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &TransactionService{
		db:          db,
		audit:       audit,
		publisher:   publisherOrNoop(publisher),
		recentLimit: recentLimit,
	}, nil
}

// Create records a sale. Prices come from the stored products, stock is
// decremented when the paytype affects quantity and the user's balance is
// charged when it affects balance. Non-credit paytypes cannot overdraw.
func (s *TransactionService) Create(ctx context.Context, input TransactionInput) (*models.Transaction, error) {
	ctx = ensureContext(ctx)

	lines, err := mergeLines(input.Products)
	if err != nil {
		metrics.Transactions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var txn *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Preload("Status").First(&user, "id = ?", strings.TrimSpace(input.UserID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !user.Active {
			return ErrUserInactive
		}

		var paytype models.Paytype
		if err := tx.Preload("AllowedForStatus").First(&paytype, "id = ?", strings.TrimSpace(input.PaytypeID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaytypeNotFound
			}
			return fmt.Errorf("load paytype: %w", err)
		}
		if !paytype.IsAllowed(user.Status) {
			return ErrPaytypeNotAllowed
		}

		ids := make([]string, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		var products []models.Product
		if err := tx.Where("id IN ? AND active = ?", ids, true).Find(&products).Error; err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		if len(products) != len(ids) {
			return ErrProductNotFound
		}
		byID := make(map[string]models.Product, len(products))
		for _, product := range products {
			byID[product.ID] = product
		}

		txn = &models.Transaction{
			UserID:           user.ID,
			PaytypeID:        paytype.ID,
			AffectedBalance:  paytype.AffectsBalance,
			AffectedQuantity: paytype.AffectsQuantity,
		}
		var sum float64
		for _, line := range lines {
			product := byID[line.ProductID]
			item := models.TransactionProduct{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.Price,
				Quantity:  line.Quantity,
			}
			sum += item.Total()
			txn.Products = append(txn.Products, item)
		}
		txn.Sum = roundMoney(sum)

		if paytype.AffectsQuantity {
			for _, item := range txn.Products {
				if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
					Update("quantity", gorm.Expr("quantity - ?", item.Quantity)).Error; err != nil {
					return fmt.Errorf("update stock: %w", err)
				}
			}
		}

		if paytype.AffectsBalance {
			query := tx.Model(&models.User{}).Where("id = ?", user.ID)
			if !paytype.Credit {
				query = query.Where("balance >= ?", txn.Sum)
			}
			result := query.Update("balance", gorm.Expr("balance - ?", txn.Sum))
			if result.Error != nil {
				return fmt.Errorf("update balance: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return ErrInsufficientBalance
			}
		}

		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.Transactions.WithLabelValues("rejected").Inc()
		return nil, translateServiceError("transaction service", err)
	}

	metrics.Transactions.WithLabelValues("created").Inc()

	created, err := s.Get(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "transaction.create",
		Resource: created.ID,
		Result:   "success",
		Metadata: map[string]any{"user_id": created.UserID, "sum": created.Sum},
	})
	s.publisher.Publish(realtime.StreamPOS, realtime.EventTransactionCreated, created)

	return created, nil
}

// Invalidate marks a valid transaction invalid and reverses the balance and
// stock effects it applied.
func (s *TransactionService) Invalidate(ctx context.Context, id string) (*models.Transaction, error) {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Preload("Products").First(&txn, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("load transaction: %w", err)
		}

		result := tx.Model(&models.Transaction{}).
			Where("id = ? AND invalid = ?", txn.ID, false).
			Update("invalid", true)
		if result.Error != nil {
			return fmt.Errorf("mark invalid: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTransactionInvalidated
		}

		if txn.AffectedQuantity {
			for _, item := range txn.Products {
				if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
					Update("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error; err != nil {
					return fmt.Errorf("restore stock: %w", err)
				}
			}
		}
		if txn.AffectedBalance {
			if err := tx.Model(&models.User{}).Where("id = ?", txn.UserID).
				Update("balance", gorm.Expr("balance + ?", txn.Sum)).Error; err != nil {
				return fmt.Errorf("restore balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateServiceError("transaction service", err)
	}

	metrics.Transactions.WithLabelValues("invalidated").Inc()

	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "transaction.invalidate",
		Resource: txn.ID,
		Result:   "success",
	})
	s.publisher.Publish(realtime.StreamPOS, realtime.EventTransactionInvalidated, txn)

	return txn, nil
}

// Get loads a transaction with user, paytype and line items.
func (s *TransactionService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.withDetails(s.db.WithContext(ensureContext(ctx))).
		First(&txn, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction service: load: %w", err)
	}
	return &txn, nil
}

// List returns transactions newest first, optionally for a single user.
func (s *TransactionService) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = s.recentLimit
	}
	if limit > maxTransactionListLimit {
		limit = maxTransactionListLimit
	}

	query := s.withDetails(s.db.WithContext(ensureContext(ctx)))
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var out []models.Transaction
	if err := query.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("transaction service: list: %w", err)
	}
	return out, nil
}

// PosData collects active users, recent transactions, active products, paytypes and statuses.
func (s *TransactionService) PosData(ctx context.Context) (*PosData, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	data := &PosData{}
	if err := db.Preload("Status").Where("active = ?", true).
		Order("first_name ASC, last_name ASC, email ASC").Find(&data.Users).Error; err != nil {
		return nil, fmt.Errorf("transaction service: pos users: %w", err)
	}

	transactions, err := s.List(ctx, TransactionFilter{})
	if err != nil {
		return nil, err
	}
	data.Transactions = transactions

	if err := db.Where("active = ?", true).Order("name ASC").Find(&data.Products).Error; err != nil {
		return nil, fmt.Errorf("transaction service: pos products: %w", err)
	}
	if err := db.Preload("AllowedForStatus").Order("name ASC").Find(&data.Paytypes).Error; err != nil {
		return nil, fmt.Errorf("transaction service: pos paytypes: %w", err)
	}
	if err := db.Order("name ASC").Find(&data.Statuses).Error; err != nil {
		return nil, fmt.Errorf("transaction service: pos statuses: %w", err)
	}
	return data, nil
}

func (s *TransactionService) withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("User").Preload("Paytype").Preload("Products")
}

// mergeLines folds repeated products into one line and rejects empty or non-positive lines.
func mergeLines(lines []TransactionLine) ([]TransactionLine, error) {
	if len(lines) == 0 {
		return nil, apperrors.NewBadRequest("transaction has no products")
	}

	index := make(map[string]int, len(lines))
	out := make([]TransactionLine, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, apperrors.NewBadRequest("product id is required")
		}
		if line.Quantity <= 0 {
			return nil, apperrors.NewBadRequest("quantity must be positive")
		}
		if i, ok := index[id]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, TransactionLine{ProductID: id, Quantity: line.Quantity})
	}
	return out, nil
}

// translateServiceError passes AppErrors through and prefixes everything else.
func translateServiceError(component string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", component, err)
}
