package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/observability"
)

// ActivityService records domain events in logs and metrics.
type ActivityService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.Named("activity"),
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleTicketStatusChanged)
	a.dispatcher.Subscribe(events.EventTicketMessageRelayed, a.handleTicketMessageRelayed)
	a.dispatcher.Subscribe(events.EventTicketDeliveryFailed, a.handleTicketDeliveryFailed)
}

func (a *ActivityService) handleTicketCreated(_ context.Context, event events.Event) error {
	a.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (a *ActivityService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	a.logger.Info("TicketStatusChanged", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		a.metrics.RecordTransition(string(payload.OldStatus), string(payload.NewStatus), payload.Trigger)
	}
	return nil
}

func (a *ActivityService) handleTicketMessageRelayed(_ context.Context, event events.Event) error {
	a.logger.Debug("TicketMessageRelayed", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (a *ActivityService) handleTicketDeliveryFailed(_ context.Context, event events.Event) error {
	a.logger.Warn("TicketDeliveryFailed", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}
