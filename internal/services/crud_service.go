package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/internal/repository"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/validator"
)

// Resource is the service contract served by the generic REST handlers.
type Resource[T any, C any, U any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, input C) (*T, error)
	Update(ctx context.Context, id string, input U) (*T, error)
	Delete(ctx context.Context, id string) error
}

// CRUDConfig customises a CRUDService.
type CRUDConfig[T any, C any] struct {
	// Name is used for audit actions and change events, e.g. "product".
	Name     string
	NotFound *apperrors.AppError
	Exists   *apperrors.AppError
	// Stream receives a catalog.changed event after every write. Empty disables publishing.
	Stream string
	Repo   []repository.Option

	// OnCreate fills fields that are not copied from the input.
	OnCreate func(ctx context.Context, entity *T, input C)
	// Normalize runs before every insert and update.
	Normalize func(entity *T)
	// BeforeDelete runs inside the delete transaction.
	BeforeDelete func(ctx context.Context, tx *gorm.DB, id string) error
}

// CRUDService implements Resource for models without associations. Inputs are
// copied onto the model field by field; updates skip nil and zero fields.
type CRUDService[T any, C any, U any] struct {
	db        *gorm.DB
	repo      *repository.Repository[T]
	cfg       CRUDConfig[T, C]
	audit     *AuditService
	publisher EventPublisher
}

// NewCRUDService constructs a CRUDService.
func NewCRUDService[T any, C any, U any](db *gorm.DB, audit *AuditService, publisher EventPublisher, cfg CRUDConfig[T, C]) (*CRUDService[T, C, U], error) {
	if db == nil {
		return nil, errors.New("crud service: db is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("crud service: name is required")
	}
	if cfg.NotFound == nil {
		cfg.NotFound = apperrors.ErrNotFound
	}
	if cfg.Exists == nil {
		cfg.Exists = apperrors.ErrConflict
	}
	return &CRUDService[T, C, U]{
		db:        db,
		repo:      repository.New[T](db, cfg.Repo...),
		cfg:       cfg,
		audit:     audit,
		publisher: publisherOrNoop(publisher),
	}, nil
}

// List returns every record.
func (s *CRUDService[T, C, U]) List(ctx context.Context) ([]T, error) {
	items, err := s.repo.List(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s service: %w", s.cfg.Name, err)
	}
	return items, nil
}

// Get loads a record by id.
func (s *CRUDService[T, C, U]) Get(ctx context.Context, id string) (*T, error) {
	item, err := s.repo.Get(ensureContext(ctx), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.cfg.NotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s service: %w", s.cfg.Name, err)
	}
	return item, nil
}

// Create inserts a record built from input.
func (s *CRUDService[T, C, U]) Create(ctx context.Context, input C) (*T, error) {
	ctx = ensureContext(ctx)
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	entity := new(T)
	if err := copier.Copy(entity, &input); err != nil {
		return nil, fmt.Errorf("%s service: copy input: %w", s.cfg.Name, err)
	}
	if s.cfg.OnCreate != nil {
		s.cfg.OnCreate(ctx, entity, input)
	}
	if s.cfg.Normalize != nil {
		s.cfg.Normalize(entity)
	}

	if err := s.repo.Create(ctx, entity); err != nil {
		if isUniqueConstraintError(err) {
			return nil, s.cfg.Exists
		}
		return nil, fmt.Errorf("%s service: %w", s.cfg.Name, err)
	}

	id := entityID(entity)
	s.changed(ctx, "create", id)
	return entity, nil
}

// Update applies the non-empty fields of input to the stored record.
func (s *CRUDService[T, C, U]) Update(ctx context.Context, id string, input U) (*T, error) {
	ctx = ensureContext(ctx)
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	entity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := copier.CopyWithOption(entity, &input, copier.Option{IgnoreEmpty: true}); err != nil {
		return nil, fmt.Errorf("%s service: copy input: %w", s.cfg.Name, err)
	}
	if s.cfg.Normalize != nil {
		s.cfg.Normalize(entity)
	}

	if err := s.repo.Save(ctx, entity); err != nil {
		if isUniqueConstraintError(err) {
			return nil, s.cfg.Exists
		}
		return nil, fmt.Errorf("%s service: %w", s.cfg.Name, err)
	}

	s.changed(ctx, "update", id)
	return entity, nil
}

// Delete removes the record with the given id.
func (s *CRUDService[T, C, U]) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.cfg.BeforeDelete != nil {
			if err := s.cfg.BeforeDelete(ctx, tx, id); err != nil {
				return err
			}
		}
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return s.cfg.NotFound
	}
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("%s service: %w", s.cfg.Name, err)
	}

	s.changed(ctx, "delete", id)
	return nil
}

func (s *CRUDService[T, C, U]) changed(ctx context.Context, action, id string) {
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   s.cfg.Name + "." + action,
		Resource: id,
		Result:   "success",
	})
	if s.cfg.Stream != "" {
		s.publisher.Publish(s.cfg.Stream, realtime.EventCatalogChanged, map[string]any{
			"resource": s.cfg.Name,
			"action":   action,
			"id":       id,
		})
	}
}

type identified interface {
	GetID() string
}

func entityID(entity any) string {
	if e, ok := entity.(identified); ok {
		return e.GetID()
	}
	return ""
}

// validateInput applies the validate tags of an input or patch struct.
func validateInput(input any) error {
	if err := validator.ValidateStruct(input); err != nil {
		return apperrors.NewBadRequest(err.Error())
	}
	return nil
}
