package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError reports a non-2xx HTTP response. Whether it is retryable
// depends on the configured retryable status set.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.Code, e.URL)
}

// ErrClientClosed is returned when a request is issued on a closed client.
var ErrClientClosed = errors.New("httpclient: client is closed")

// isTransient reports whether err is a transient network failure: connection
// errors and timeouts. Context cancellation is not transient.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// errorKind buckets a failure for per-domain accounting.
func errorKind(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("status_%d", statusErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}
