package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeValidation          ErrorType = "VALIDATION_ERROR"
	ErrorTypeConfiguration       ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeProviderTransient   ErrorType = "PROVIDER_TRANSIENT_ERROR"
	ErrorTypeProviderPermanent   ErrorType = "PROVIDER_PERMANENT_ERROR"
	ErrorTypeInsufficientCredits ErrorType = "INSUFFICIENT_CREDITS_ERROR"
	ErrorTypeTimeout             ErrorType = "TIMEOUT_ERROR"
	ErrorTypeEnhancement         ErrorType = "ENHANCEMENT_ERROR"
	ErrorTypeRateLimit           ErrorType = "RATE_LIMIT_ERROR"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeInternal            ErrorType = "INTERNAL_ERROR"
)

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsRetryable determines if the operation that caused the error should be retried
func (e *AppError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeProviderTransient:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is not
// an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsRetryable reports whether err is an AppError eligible for a retry.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	return false
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewConfigurationError creates an error for invalid provider/feature
// combinations, detected before any expensive work starts.
func NewConfigurationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeConfiguration,
		Message:       message,
		StatusCode:    http.StatusUnprocessableEntity,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeNotFound,
		Message:       message,
		StatusCode:    http.StatusNotFound,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeRateLimit,
		Message:       message,
		StatusCode:    http.StatusTooManyRequests,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewProviderTransientError creates an error for network/5xx provider
// failures that are eligible for one automatic retry.
func NewProviderTransientError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeProviderTransient,
		Message:       message,
		StatusCode:    http.StatusBadGateway,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "The provider had a temporary problem; the job will be retried once.",
		Err:           err,
	}
}

// NewProviderPermanentError creates an error for invalid/corrupt input or
// quota exhaustion on the provider side. Never retried.
func NewProviderPermanentError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeProviderPermanent,
		Message:       message,
		StatusCode:    http.StatusUnprocessableEntity,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check that the uploaded media file is valid and try submitting again.",
		Err:           err,
	}
}

// NewInsufficientCreditsError creates an error for a deduction that would
// drive the balance negative.
func NewInsufficientCreditsError(message string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInsufficientCredits,
		Message:       message,
		StatusCode:    http.StatusPaymentRequired,
		ErrorCode:     "INSUFFICIENT_CREDITS",
		IsOperational: true,
		Recovery:      "Purchase additional credits and resubmit the job.",
		Err:           err,
	}
}

// NewTimeoutError creates an error for a soft or hard processing timeout.
// Timed-out jobs are refundable.
func NewTimeoutError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeTimeout,
		Message:       message,
		StatusCode:    http.StatusGatewayTimeout,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Try a shorter file; already-deducted credits have been refunded.",
		Err:           err,
	}
}

// NewEnhancementError creates an error for a failed post-processing stage.
// Stage failures degrade gracefully and are never billed.
func NewEnhancementError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeEnhancement,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "The transcript is still available without enhancement.",
		Err:           err,
	}
}

// NewInternalError creates a new internal error (500)
func NewInternalError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInternal,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: false,
		Err:           err,
	}
}
