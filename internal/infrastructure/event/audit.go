package event

import (
	"context"

	"github.com/erp/customerdir/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes every domain event to the log
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// Handle implements shared.EventHandler
func (h *AuditLogHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.logger.Info("domain event",
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("aggregate_type", evt.AggregateType()),
		zap.Int64("aggregate_id", evt.AggregateID()),
		zap.Time("occurred_at", evt.OccurredAt()),
	)
	return nil
}

// EventTypes implements shared.EventHandler; the handler receives all events
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}
