package x402

import (
	"errors"
	"fmt"
)

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeMalformedURI              = "malformed_uri"
	ErrCodeInvalidEncoding           = "invalid_encoding"
	ErrCodeInvalidPayload            = "invalid_payload"
	ErrCodeMissingField              = "missing_field"
	ErrCodeUnknownNetwork            = "unknown_network"
	ErrCodeUnknownToken              = "unknown_token"
	ErrCodeTokenUnavailableOnNetwork = "token_unavailable_on_network"
	ErrCodeInvalidTimeout            = "invalid_timeout"
	ErrCodeAmountExceedsMaximum      = "amount_exceeds_maximum"
	ErrCodeSigningFailed             = "signing_failed"
	ErrCodeUnexpectedResponse        = "unexpected_response"
	ErrCodeSettlementRejected        = "settlement_rejected"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapPaymentError creates a payment error that keeps cause in the chain
func WrapPaymentError(code, message string, cause error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewMissingFieldError reports the first absent mandatory field
func NewMissingFieldError(field string) *PaymentError {
	return NewPaymentError(ErrCodeMissingField, fmt.Sprintf("missing required field: %s", field), map[string]interface{}{
		"field": field,
	})
}

// NewSettlementRejectedError carries the provider message verbatim
func NewSettlementRejectedError(message string, details map[string]interface{}) *PaymentError {
	return NewPaymentError(ErrCodeSettlementRejected, message, details)
}

// IsCode reports whether err is a PaymentError with the given code
func IsCode(err error, code string) bool {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// MissingFieldName returns the field named by a missing_field error
func MissingFieldName(err error) (string, bool) {
	var pe *PaymentError
	if !errors.As(err, &pe) || pe.Code != ErrCodeMissingField {
		return "", false
	}
	field, ok := pe.Details["field"].(string)
	return field, ok
}

// ErrorMessage returns the human readable text of err for display
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
