// Package errors provides typed error codes for the scanner.
//
// Codes are grouped by where they originate:
//   - 100-199: validation (configuration updates, risk bounds, unknown symbols)
//   - 200-299: market data (insufficient history, exchange failures)
//   - 300-399: order sizing and placement
//   - 400-499: enrichment services (AI rationale)
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeInvalidPrice, "price must be positive, got %v", price)
//	if errors.HasCode(err, errors.ErrCodeSizingGuard) { ... }
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = 1

	ErrCodeConfigValidation ErrorCode = 100
	ErrCodeInvalidRisk      ErrorCode = 101
	ErrCodeUnknownSymbol    ErrorCode = 102

	ErrCodeInsufficientHistory ErrorCode = 200
	ErrCodeExchange            ErrorCode = 201
	ErrCodeExchangeNotReady    ErrorCode = 202

	ErrCodeInvalidPrice ErrorCode = 300
	ErrCodeSizingGuard  ErrorCode = 301
	ErrCodeOrderFailed  ErrorCode = 302

	ErrCodeAIUnavailable ErrorCode = 400
)

// Error is a structured error with a code and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from err, or ErrCodeUnknown when err carries none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ih *InsufficientHistoryError
	if errors.As(err, &ih) {
		return ErrCodeInsufficientHistory
	}
	return ErrCodeUnknown
}

// HasCode checks if err has the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InsufficientHistoryError reports that fewer candles were available than the
// longest indicator lookback requires.
type InsufficientHistoryError struct {
	Symbol   string
	Required int
	Actual   int
}

func NewInsufficientHistory(symbol string, required, actual int) *InsufficientHistoryError {
	return &InsufficientHistoryError{Symbol: symbol, Required: required, Actual: actual}
}

func (e *InsufficientHistoryError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("insufficient history: need %d candles, have %d", e.Required, e.Actual)
	}
	return fmt.Sprintf("insufficient history for %s: need %d candles, have %d", e.Symbol, e.Required, e.Actual)
}

// IsInsufficientHistory reports whether err's chain contains an InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var ih *InsufficientHistoryError
	return errors.As(err, &ih)
}
