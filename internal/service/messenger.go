package service

import (
	"context"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

// Messenger sends outbound messages through the chat platform and returns the new message id.
type Messenger interface {
	Send(ctx context.Context, msg domain.OutboundMessage) (int64, error)
}
