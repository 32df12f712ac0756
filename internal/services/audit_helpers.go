package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("audit entry dropped", zap.String("action", entry.Action), zap.Error(err))
	}
}

// EventPublisher broadcasts domain events to connected clients.
type EventPublisher interface {
	Publish(stream, event string, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
