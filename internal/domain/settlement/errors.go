package settlement

import "fmt"

// Error codes used by the settlement domain. They follow the legacy
// SCREAMING_CASE form and are normalized by the HTTP layer.
const (
	CodeAuthenticationRequired = "UNAUTHORIZED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
	CodeValidation             = "VALIDATION_ERROR"
	CodeBusinessRule           = "BUSINESS_RULE"
	CodeOperationFailed        = "OPERATION_FAILED"
	CodeForbidden              = "FORBIDDEN"
)

// DomainError represents a domain-level error.
// Cause carries upstream detail for logging and is never rendered to callers.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on code so that wrapped copies of a sentinel compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithCause returns a copy of the error carrying cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
	}
}

// OperationFailed builds the generic failure returned by the resource proxy.
func OperationFailed(message string, cause error) *DomainError {
	return &DomainError{
		Code:    CodeOperationFailed,
		Message: message,
		Cause:   cause,
	}
}

// Common domain errors
var (
	ErrAuthenticationRequired = NewDomainError(CodeAuthenticationRequired, "Not authenticated")
	ErrInvalidCredentials     = NewDomainError(CodeInvalidCredentials, "Invalid username or password")
	ErrUpstreamUnavailable    = NewDomainError(CodeUpstreamUnavailable, "Unable to connect to the treasury server")
	ErrValidation             = NewDomainError(CodeValidation, "")
	ErrEditDisabled           = NewDomainError(CodeForbidden, "Editing is disabled")

	ErrMissingAllocationInput = NewDomainError(CodeValidation, "invoiceId, paymentId, and amount are required")
	ErrMissingAllocationID    = NewDomainError(CodeValidation, "allocation id is required")
	ErrIncompletePairing      = NewDomainError(CodeValidation, "Select one invoice and one payment")
	ErrZeroAmount             = NewDomainError(CodeValidation, "Cannot allocate zero amount")
	ErrSignMismatch           = NewDomainError(CodeValidation, "Invoice balance and payment amount must have the same sign")
	ErrSelectionNotOpen       = NewDomainError(CodeBusinessRule, "Selected invoice or payment is no longer open")
)

// ValidationError builds a validation error with a specific message.
func ValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}
