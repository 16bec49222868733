package baidu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Transport and configuration failures. Provider answers with a non-zero
// status are not errors; they surface as empty results.
var (
	ErrTimedOut           = errors.New("baidu: request timed out")
	ErrServiceUnavailable = errors.New("baidu: service unavailable")
	ErrQuery              = errors.New("baidu: bad query")
	ErrQuotaExceeded      = errors.New("baidu: quota exceeded")
	ErrConfiguration      = errors.New("baidu: configuration error")
	ErrRetriesExhausted   = errors.New("baidu: retries exhausted")
)

// classifyTransportError maps an http.Client.Do failure onto ErrTimedOut.
// Connection failures count as timeouts; caller cancellation is returned unchanged.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTimedOut, op, err)
}

// classifyHTTPStatus maps a non-2xx HTTP status onto the sentinels.
func classifyHTTPStatus(op string, code int, body []byte) error {
	var kind error
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = ErrConfiguration
	case code == http.StatusTooManyRequests:
		kind = ErrQuotaExceeded
	case code >= 500:
		kind = ErrServiceUnavailable
	default:
		kind = ErrQuery
	}
	return fmt.Errorf("%w: %s: status %d: %s", kind, op, code, body)
}

// retryable reports whether a page fetch may be attempted again.
func retryable(err error) bool {
	return errors.Is(err, ErrTimedOut) || errors.Is(err, ErrServiceUnavailable)
}
