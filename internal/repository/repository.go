// Package repository provides gorm-backed stores for the persisted entities.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup by identifier matches no row.
var ErrNotFound = errors.New("repository: record not found")

// Option customises a Repository.
type Option func(*options)

type options struct {
	preloads []string
	order    string
}

// WithPreload eagerly loads the named associations on List and Get.
func WithPreload(associations ...string) Option {
	return func(o *options) {
		o.preloads = append(o.preloads, associations...)
	}
}

// WithOrder sets the ORDER BY clause used by List.
func WithOrder(order string) Option {
	return func(o *options) {
		o.order = strings.TrimSpace(order)
	}
}

// Repository implements basic CRUD for a gorm model whose primary key column is "id".
type Repository[T any] struct {
	db   *gorm.DB
	opts options
}

// New constructs a repository for T.
func New[T any](db *gorm.DB, opts ...Option) *Repository[T] {
	cfg := options{order: "created_at ASC"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository[T]{db: db, opts: cfg}
}

// WithTx returns a copy bound to the supplied transaction.
func (r *Repository[T]) WithTx(tx *gorm.DB) *Repository[T] {
	return &Repository[T]{db: tx, opts: r.opts}
}

// DB returns the underlying handle scoped to ctx.
func (r *Repository[T]) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx)
}

func (r *Repository[T]) query(ctx context.Context) *gorm.DB {
	q := r.DB(ctx)
	for _, assoc := range r.opts.preloads {
		q = q.Preload(assoc)
	}
	return q
}

// List returns every row in the configured order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	q := r.query(ctx)
	if r.opts.order != "" {
		q = q.Order(r.opts.order)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("repository: list: %w", err)
	}
	return out, nil
}

// Get loads a single row by id.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var out T
	if err := r.query(ctx).Take(&out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: get %s: %w", id, err)
	}
	return &out, nil
}

// Create inserts a new row, associations included.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.DB(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("repository: create: %w", err)
	}
	return nil
}

// Save inserts the row when its primary key is empty, otherwise updates every column.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if err := r.DB(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("repository: save: %w", err)
	}
	return nil
}

// Delete removes the row with the given id.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	result := r.DB(ctx).Delete(new(T), "id = ?", strings.TrimSpace(id))
	if result.Error != nil {
		return fmt.Errorf("repository: delete %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored rows.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.DB(ctx).Model(new(T)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("repository: count: %w", err)
	}
	return count, nil
}
