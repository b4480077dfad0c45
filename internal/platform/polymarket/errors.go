package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// UpstreamError is returned by GammaClient once its retry budget is spent, or
// immediately when a successful response carries an undecodable body.
type UpstreamError struct {
	Op     string // e.g. "get events page"
	Status int    // last HTTP status seen; 0 when no response was received
	Cause  error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("polymarket/gamma: %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("polymarket/gamma: %s: HTTP %d", e.Op, e.Status)
}

// Unwrap exposes domain.ErrUpstream, domain.ErrRateLimited for 429s, and the
// underlying cause.
func (e *UpstreamError) Unwrap() []error {
	errs := []error{domain.ErrUpstream}
	if e.Status == http.StatusTooManyRequests {
		errs = append(errs, domain.ErrRateLimited)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsTransient reports whether err is worth retrying: rate limiting, server
// errors, timeouts and network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// statusError is a non-2xx response from a single attempt.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("HTTP %d", e.code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	switch e.code {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return nil
	}
}

const maxErrorBody = 256

// checkHTTPStatus maps a response status onto an error; nil for 2xx.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	bodyStr := string(body)
	if len(bodyStr) > maxErrorBody {
		bodyStr = bodyStr[:maxErrorBody]
	}
	return &statusError{code: statusCode, body: bodyStr}
}
