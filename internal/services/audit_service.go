package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/auditctx"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/pkg/jsonutil"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditEntry is one event to persist. Actor fields left blank are taken from
// the auditctx actor on the context.
type AuditEntry struct {
	UserID    *string
	Email     string
	Action    string
	Resource  string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditFilters narrow List. An Action ending in ".*" matches the prefix, so
// "transaction.*" returns both creations and invalidations.
type AuditFilters struct {
	UserID   string
	Action   string
	Result   string
	Resource string
	Since    *time.Time
	Until    *time.Time
}

type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: time.Now}, nil
}

// Log stores entry. The request id of the actor, when known, is added to the
// metadata under "request_id".
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	record, err := s.buildRecord(ctx, entry)
	if err != nil {
		return fmt.Errorf("audit service: %w", err)
	}
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *AuditService) buildRecord(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	record := &models.AuditLog{
		Action:    strings.TrimSpace(entry.Action),
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    strings.TrimSpace(entry.Result),
		Email:     strings.TrimSpace(entry.Email),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
	}
	if record.Action == "" {
		return nil, errors.New("action is required")
	}
	if record.Result == "" {
		return nil, errors.New("result is required")
	}
	if entry.UserID != nil {
		if id := strings.TrimSpace(*entry.UserID); id != "" {
			record.UserID = &id
		}
	}

	metadata := entry.Metadata
	if actor, ok := auditctx.FromContext(ctx); ok {
		if record.UserID == nil && actor.UserID != "" {
			id := actor.UserID
			record.UserID = &id
		}
		record.Email = firstNonEmpty(record.Email, actor.Email)
		record.IPAddress = firstNonEmpty(record.IPAddress, actor.IPAddress)
		record.UserAgent = firstNonEmpty(record.UserAgent, actor.UserAgent)

		if actor.RequestID != "" {
			merged := make(map[string]any, len(metadata)+1)
			for key, value := range metadata {
				merged[key] = value
			}
			merged["request_id"] = actor.RequestID
			metadata = merged
		}
	}

	encoded, err := jsonutil.ToJSON(metadata)
	if err != nil {
		return nil, err
	}
	record.Metadata = encoded
	return record, nil
}

// List returns one page of matching logs, newest first, and the match count.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	page := max(opts.Page, 1)
	size := opts.PageSize
	if size <= 0 || size > maxAuditPageSize {
		size = defaultAuditPageSize
	}

	query := opts.Filters.apply(s.db.WithContext(ctx).Model(&models.AuditLog{}))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	var logs []models.AuditLog
	err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}
	return logs, total, nil
}

// CleanupOlderThan deletes logs created more than retentionDays ago and
// reports how many were removed.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ensureContext(ctx)).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (f AuditFilters) apply(query *gorm.DB) *gorm.DB {
	for column, value := range map[string]string{
		"user_id":  f.UserID,
		"result":   f.Result,
		"resource": f.Resource,
	} {
		if value = strings.TrimSpace(value); value != "" {
			query = query.Where(column+" = ?", value)
		}
	}

	if action := strings.TrimSpace(f.Action); action != "" {
		if prefix, ok := strings.CutSuffix(action, "*"); ok {
			query = query.Where("SUBSTR(action, 1, ?) = ?", len(prefix), prefix)
		} else {
			query = query.Where("action = ?", action)
		}
	}

	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		query = query.Where("created_at <= ?", *f.Until)
	}
	return query
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
