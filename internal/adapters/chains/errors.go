package chains

import (
	"context"
	"net"
	"net/http"

	"feelens/pkg/errors"
)

// maxFetchLimit is the hard upper bound any adapter places on a single
// fetch, whatever the caller asks for.
const maxFetchLimit = 100

// ClampLimit bounds a requested limit to (0, maxFetchLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	if limit > maxFetchLimit {
		return maxFetchLimit
	}
	return limit
}

// IsTransient reports whether an error is worth retrying: rate limiting,
// timeouts, connection failures, 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrTransientFetch) || errors.Is(err, errors.ErrRateLimitExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// ClassifyHTTPStatus maps an HTTP status to the error taxonomy. 2xx maps
// to nil.
func ClassifyHTTPStatus(status int, network string) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		return errors.Wrapf(errors.ErrRateLimitExceeded, "%s http %d", network, status)
	case status >= 500:
		return errors.Wrapf(errors.ErrTransientFetch, "%s http %d", network, status)
	default:
		return errors.Wrapf(errors.ErrFetch, "%s http %d", network, status)
	}
}
