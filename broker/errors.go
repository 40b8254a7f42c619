package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error is a broker-level failure with enough context to pick a recovery
// strategy: transient errors are retried with fixed backoff, rejections
// (insufficient margin, invalid price, order gone) are not.
type Error struct {
	Status  int // HTTP status, 0 for transport failures
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("broker: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("broker: %s (status %d)", e.Message, e.Status)
}

// ErrOrderNotFound marks a modify call against an order id the broker no
// longer knows. The cached id is stale (modifications re-issue ids); the
// caller must re-fetch the open-trade snapshot, never repeat the call.
var ErrOrderNotFound = errors.New("broker: order not found")

// IsTransient reports whether err is worth a bounded retry: timeouts,
// connection resets and 5xx responses. Everything else is a rejection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	var berr *Error
	if errors.As(err, &berr) {
		return berr.Status == 0 || berr.Status >= 500
	}
	return false
}
