package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// User errors
var (
	ErrUserNotFound          = fmt.Errorf("user not found: %w", ErrResourceNotFound)
	ErrUsernameAlreadyExists = fmt.Errorf("username already exists: %w", ErrValidationFailed)
	ErrEmailAlreadyExists    = fmt.Errorf("email already exists: %w", ErrValidationFailed)
	ErrAdminAlreadyExists    = fmt.Errorf("an admin user already exists: %w", ErrValidationFailed)
)

// Student errors
var (
	ErrStudentNotFound       = fmt.Errorf("student not found: %w", ErrResourceNotFound)
	ErrStudentProfileMissing = fmt.Errorf("student profile not found for this user: %w", ErrResourceNotFound)
	ErrStudentNumberExists   = fmt.Errorf("student with this number already exists: %w", ErrValidationFailed)
)

// Course errors
var (
	ErrCourseNotFound      = fmt.Errorf("course not found: %w", ErrResourceNotFound)
	ErrCourseCodeExists    = fmt.Errorf("course with this code already exists: %w", ErrValidationFailed)
	ErrCourseHasEnrollment = fmt.Errorf("cannot delete course with enrolled students: %w", ErrConflict)
	ErrCourseInactive      = fmt.Errorf("course is not active: %w", ErrValidationFailed)
)

// Enrollment errors
var (
	ErrEnrollmentNotFound = fmt.Errorf("enrollment not found: %w", ErrResourceNotFound)
	ErrAlreadyEnrolled    = fmt.Errorf("student is already enrolled in this course: %w", ErrConflict)
	ErrNotEnrolled        = fmt.Errorf("student is not enrolled in this course: %w", ErrConflict)
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err       error
	Message   string
	StatusMsg string
	Code      string
	Details   map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// WithStatusMsg adds a user-friendly status message
func (e *CustomError) WithStatusMsg(msg string) *CustomError {
	e.StatusMsg = msg
	return e
}

// FieldErrors collects per-field validation messages.
type FieldErrors map[string][]string

// Add appends a message for field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// HasErrors reports whether any message was collected.
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

// Err returns nil when no messages were collected, otherwise a validation CustomError
// carrying the messages as details.
func (f FieldErrors) Err() error {
	if !f.HasErrors() {
		return nil
	}
	return NewValidationError(f)
}

// NewValidationError builds a validation CustomError whose details hold field-level messages.
func NewValidationError(fields FieldErrors) *CustomError {
	keys := make([]string, 0, len(fields))
	details := make(map[string]interface{}, len(fields))
	for field, msgs := range fields {
		keys = append(keys, field)
		details[field] = msgs
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(fields[k], "; "))
	}

	return &CustomError{
		Err:     ErrValidationFailed,
		Message: "validation failed: " + strings.Join(parts, ", "),
		Details: details,
	}
}

// NewFieldError is a shorthand for a single-field validation error.
func NewFieldError(field, message string) *CustomError {
	return NewValidationError(FieldErrors{field: {message}})
}
