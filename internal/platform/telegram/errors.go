package telegram

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a structured Bot API error response.
type APIError struct {
	ErrorCode   int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram API error %d: %s (retry_after=%ds)", e.ErrorCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram API error %d: %s", e.ErrorCode, e.Description)
}

// IsBotBlocked reports whether the recipient blocked the bot or removed it from the chat.
func IsBotBlocked(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == http.StatusForbidden
	}
	return false
}

// IsRetryAfter reports whether the API asked the caller to slow down.
func IsRetryAfter(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == http.StatusTooManyRequests && apiErr.RetryAfter > 0
	}
	return false
}
