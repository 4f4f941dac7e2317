package utils

import (
	"fmt"
	"net/http"
)

// Stable error codes for domain conflicts. Clients branch on these, so they
// never change even if the messages do.
const (
	ErrCodeOrderAlreadyPaid  = "order_already_paid"
	ErrCodePaymentInProgress = "payment_in_progress"
	ErrCodePaymentCompleted  = "payment_already_completed"
	ErrCodePaymentNotFound   = "payment_not_found"
	ErrCodeOrderNotFound     = "order_not_found"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeGatewayFailure    = "gateway_failure"
)

// AppError represents an expected application error
type AppError struct {
	Code    int    `json:"code"`
	ErrCode string `json:"error_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, errCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		ErrCode: errCode,
		Message: message,
		Err:     err,
	}
}

// ConflictError creates a 409 Conflict error with a stable code
func ConflictError(errCode, message string) *AppError {
	return NewAppError(http.StatusConflict, errCode, message, nil)
}

// NotFoundError creates a 404 Not Found error with a stable code
func NotFoundError(errCode, message string) *AppError {
	return NewAppError(http.StatusNotFound, errCode, message, nil)
}

// BadRequestError creates a 400 Bad Request error
func BadRequestError(errCode, message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, errCode, message, err)
}

// GetAppError returns the AppError if the error is one, nil otherwise
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
