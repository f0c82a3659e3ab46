package client

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Retryable reports whether a gateway call failure is worth retrying:
// network/timeout trouble, rate limits and transient gateway faults are;
// malformed requests, auth failures and declined instruments are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		switch {
		case gwErr.StatusCode == http.StatusTooManyRequests:
			return true
		case gwErr.StatusCode == http.StatusRequestTimeout:
			return true
		case gwErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// transport-level failures wrapped by net/http (timeouts, conn refused)
	var netErr net.Error
	return errors.As(err, &netErr)
}
