package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to callers of production operations
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeUnavailable        = "UNAVAILABLE"
	CodeValidation         = "VALIDATION"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeTransactionFailure = "TRANSACTION_FAILURE"
	CodeServiceError       = "SERVICE_ERROR"

	// Refinements of the codes above used by order processing
	CodeSKUNotFound        = "SKU_NOT_FOUND"
	CodeInvalidOrderStatus = "INVALID_ORDER_STATUS"
)

// kinds maps refined codes onto their general error kind.
var kinds = map[string]string{
	CodeSKUNotFound:        CodeNotFound,
	CodeInvalidOrderStatus: CodeInvalidTransition,
	CodeResourceExhausted:  CodeUnavailable,
}

// AppError represents an application error with HTTP status and error code
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the general error kind. RESOURCE_EXHAUSTED reports itself;
// use Is to test it against UNAVAILABLE.
func (e *AppError) Kind() string {
	if e.Code == CodeResourceExhausted {
		return e.Code
	}
	if kind, ok := kinds[e.Code]; ok {
		return kind
	}
	return e.Code
}

// Is reports whether the error carries code, directly or as a refinement of it.
func (e *AppError) Is(code string) bool {
	if e.Code == code {
		return true
	}
	return kinds[e.Code] == code
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap wraps an existing error
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrInvalidRequest is returned when a request has the wrong type or state for an operation.
func ErrInvalidRequest(message string) *AppError {
	return NewAppError(CodeInvalidRequest, message, http.StatusBadRequest)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrNotFoundWithID creates a not found error with ID
func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

// ErrUnavailable is returned when an entity exists but is in the wrong status.
func ErrUnavailable(message string) *AppError {
	return NewAppError(CodeUnavailable, message, http.StatusConflict)
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusUnprocessableEntity)
}

// ErrValidationWithFields creates a validation error with field details
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

// ErrInvalidTransition creates a state machine violation error
func ErrInvalidTransition(message string) *AppError {
	return NewAppError(CodeInvalidTransition, message, http.StatusConflict)
}

// ErrResourceExhausted is returned when a bin has no capacity left.
func ErrResourceExhausted(message string) *AppError {
	return NewAppError(CodeResourceExhausted, message, http.StatusConflict)
}

// ErrTransactionFailure is returned once transaction retries are exhausted.
func ErrTransactionFailure(operation string) *AppError {
	return NewAppError(CodeTransactionFailure, fmt.Sprintf("%s failed after retries", operation), http.StatusServiceUnavailable)
}

// ErrServiceError hides unexpected failures behind a generic message.
func ErrServiceError(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeServiceError, message, http.StatusInternalServerError)
}

// ErrSKUNotFound is returned when no inventory can fulfill a SKU.
func ErrSKUNotFound(sku string) *AppError {
	return NewAppError(CodeSKUNotFound, fmt.Sprintf("no inventory matches SKU %s", sku), http.StatusNotFound).
		WithDetail("sku", sku)
}

// ErrInvalidOrderStatus is returned when an order is not in the expected status.
func ErrInvalidOrderStatus(orderID, status string) *AppError {
	return NewAppError(CodeInvalidOrderStatus, fmt.Sprintf("order is %s", status), http.StatusConflict).
		WithDetails(map[string]string{"orderId": orderID, "status": status})
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code (or a refinement of it).
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Is(code)
}

// FromError converts a standard error to an AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	return ErrServiceError("").Wrap(err)
}
