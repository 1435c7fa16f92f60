package eventhandler

import (
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
)

// AuditLogHandler writes every domain event as one structured log line.
type AuditLogHandler struct {
	logger *logger.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler.
func NewAuditLogHandler(log *logger.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: log.Named("audit")}
}

// Register subscribes the handler to all events.
func (h *AuditLogHandler) Register(sub shared.EventSubscriber) error {
	return sub.SubscribeAll(h.Handle)
}

// Handle logs the event envelope.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	env, err := shared.NewEventEnvelope(event)
	if err != nil {
		return err
	}
	fields := []logger.Field{
		logger.String("event_type", string(env.Type)),
		logger.String("aggregate_id", env.AggregateID),
		logger.Time("occurred_at", env.Timestamp),
		logger.String("payload", string(env.Payload)),
	}
	if env.CorrelationID != "" {
		fields = append(fields, logger.String("correlation_id", env.CorrelationID))
	}
	h.logger.Info("domain event", fields...)
	return nil
}
