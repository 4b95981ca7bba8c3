package checkout

import (
	"errors"
	"fmt"
)

// Error represents a checkout-specific error
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeNotFound           = "not_found"
	ErrCodeSessionRequired    = "session_required"
	ErrCodeUnsupportedProfile = "unsupported_profile"
	ErrCodeHandshakeFailed    = "handshake_failed"
	ErrCodeUpstreamFailure    = "upstream_failure"
	ErrCodeGatewayUnreachable = "gateway_unreachable"
)

// NewError creates a new checkout error
func NewError(code, message string, details map[string]interface{}) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the error code carried by err, or "" if err is not a
// checkout error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err identifies an unknown checkout id.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsInvalidInput reports whether err identifies a malformed cart or line item.
func IsInvalidInput(err error) bool {
	return CodeOf(err) == ErrCodeInvalidInput
}
