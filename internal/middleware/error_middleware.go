package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/logger"
)

// sentinelMessages holds the client message of sentinels that carry no CustomError
var sentinelMessages = []struct {
	err     error
	message string
}{
	{apperrors.ErrUserNotFound, "User not found"},
	{apperrors.ErrStudentProfileMissing, "Student profile not found for this user"},
	{apperrors.ErrStudentNotFound, "Student not found"},
	{apperrors.ErrCourseNotFound, "Course not found"},
	{apperrors.ErrEnrollmentNotFound, "Enrollment not found"},
	{apperrors.ErrAlreadyEnrolled, "Student is already enrolled in this course"},
	{apperrors.ErrNotEnrolled, "Student is not enrolled in this course"},
	{apperrors.ErrCourseHasEnrollment, "Cannot delete course with enrolled students"},
	{apperrors.ErrCourseInactive, "Course not found or is not active"},
}

// sentinelFields maps uniqueness sentinels onto the request field they concern
var sentinelFields = []struct {
	err     error
	field   string
	message string
}{
	{apperrors.ErrUsernameAlreadyExists, "username", "A user with that username already exists."},
	{apperrors.ErrEmailAlreadyExists, "email", "A user with this email already exists."},
	{apperrors.ErrAdminAlreadyExists, "role", "An admin user already exists."},
	{apperrors.ErrStudentNumberExists, "student_number", "Student with this number already exists"},
	{apperrors.ErrCourseCodeExists, "course_code", "Course with this code already exists"},
}

func messageFor(err error, fallback string) string {
	var ce *apperrors.CustomError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.message
		}
	}
	return fallback
}

func validationDetail(err error) *dto.ErrorDetail {
	var ce *apperrors.CustomError
	if errors.As(err, &ce) && len(ce.Details) > 0 {
		detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Validation failed").WithDetails(ce.Details)
		if len(ce.Details) == 1 {
			for field := range ce.Details {
				detail.WithField(field)
			}
		}
		return detail
	}
	for _, s := range sentinelFields {
		if errors.Is(err, s.err) {
			return dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Validation failed").
				WithField(s.field).
				WithDetails(map[string][]string{s.field: {s.message}})
		}
	}
	return dto.NewErrorDetail(dto.ErrorCodeValidationFailed, messageFor(err, "Validation failed"))
}

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Unhandled error")
	}
	c.JSON(status, dto.NewErrorResponse(detail))
}

func classify(err error) (int, *dto.ErrorDetail) {
	switch {
	case errors.Is(err, apperrors.ErrResourceNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, messageFor(err, "Resource not found"))
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.NewErrorDetail(dto.ErrorCodeForbidden, messageFor(err, "Permission denied"))
	case errors.Is(err, apperrors.ErrValidationFailed):
		return http.StatusBadRequest, validationDetail(err)
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeConflict, messageFor(err, "Conflict"))
	case errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeBadRequest, messageFor(err, "Bad request"))
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, apperrors.ErrAccountDisabled):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeAccountDisabled, "User account is disabled")
	case errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired")
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeTokenNotFound, "Token not found")
	case errors.Is(err, apperrors.ErrTokenRevoked):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Token revoked")
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token")
	default:
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}
}
