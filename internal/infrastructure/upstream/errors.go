package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	// ErrUnavailable wraps transport failures: refused connections, DNS
	// failures and timeouts. No response was received.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrUnexpectedShape is returned when a response body is not the JSON
	// shape the endpoint is expected to produce.
	ErrUnexpectedShape = errors.New("unexpected upstream response shape")
)

// maxErrorBody bounds the response excerpt kept on an Error.
const maxErrorBody = 512

// Error describes a failed webservice call. StatusCode is 0 when no
// response arrived.
type Error struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("upstream %s: %v", e.Endpoint, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: HTTP %d: %v", e.Endpoint, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("upstream %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsNotFound reports whether the upstream answered 404, which for optional
// endpoints means the capability is not installed.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the upstream rejected the credential.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsUnavailable reports whether the call failed without a response.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func excerpt(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
