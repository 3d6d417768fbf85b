package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrInvalidCredentials is returned by Login when the server rejects the
	// email/password pair. The server message is deliberately generic.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated is returned when an operation needs a session and
	// none is active.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned after a refresh fails terminally. Stored
	// credentials have been cleared; the caller must log in again.
	ErrSessionExpired = errors.New("session expired, log in again")

	// ErrBreakerOpen is returned when the refresh circuit breaker is open.
	// No network call was made.
	ErrBreakerOpen = errors.New("refresh suppressed: circuit breaker open")

	// ErrTokenNotFound is returned by token stores for absent or expired
	// entries, and by the encrypted store when decryption fails.
	ErrTokenNotFound = errors.New("token not found")
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration // from the Retry-After header, 0 when absent
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Error codes the server commits to; see utils/response.
const (
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeAccountLocked      = "ACCOUNT_LOCKED"
	codeAccountDisabled    = "ACCOUNT_DISABLED"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeTokenInvalid       = "TOKEN_INVALID"
	codeTokenRevoked       = "TOKEN_REVOKED"
	codeWrongTokenType     = "WRONG_TOKEN_TYPE"
	codeSessionExpired     = "SESSION_EXPIRED"
)

// IsRetryable reports whether the refresh loop should back off and try the
// request again. Rate limits, server errors and transport failures are
// retryable; auth rejections are not, and neither is caller cancellation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Anything else that never produced a response is a transport problem.
	return true
}

// isTerminalRefresh reports whether a refresh failure means the session is
// dead: the stored credentials are wiped and the caller must re-authenticate.
func isTerminalRefresh(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case codeTokenExpired, codeTokenInvalid, codeTokenRevoked,
		codeWrongTokenType, codeSessionExpired:
		return true
	}
	// A 4xx without a known code still means the token was rejected.
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && !isRetryableStatus(apiErr.StatusCode)
}

// isRetryableStatus mirrors the server-side convention: 408, 429 and 5xx.
func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= 500
}

// parseRetryAfter extracts the Retry-After header as a duration. Returns 0
// when the header is missing or unparseable.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
