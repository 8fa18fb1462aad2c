package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/platform/telegram"
)

// Labels attached to failed sends in logs and the delivery failure counter.
const (
	ReasonNoDestination = "no_destination"
	ReasonBlocked       = "blocked"
	ReasonRateLimited   = "rate_limited"
	ReasonTimeout       = "timeout"
	ReasonRejected      = "rejected"
)

var errNoDestination = errors.New("no destination")

func noDestination(detail string) error {
	return fmt.Errorf("%w: %s", errNoDestination, detail)
}

// DeliveryReason classifies a failed send.
func DeliveryReason(err error) string {
	switch {
	case errors.Is(err, errNoDestination):
		return ReasonNoDestination
	case telegram.IsBotBlocked(err):
		return ReasonBlocked
	case telegram.IsRetryAfter(err):
		return ReasonRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonRejected
	}
}

func deliveryFields(err error) []zap.Field {
	fields := []zap.Field{zap.String("reason", DeliveryReason(err)), zap.Error(err)}
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		fields = append(fields, zap.Int("retry_after_seconds", apiErr.RetryAfter))
	}
	return fields
}
