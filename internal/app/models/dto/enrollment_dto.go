package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
)

// CompleteEnrollmentRequest optionally records a grade
type CompleteEnrollmentRequest struct {
	Grade string `json:"grade"`
}

// EnrollmentStatusRequest changes the status of a ledger entry
type EnrollmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Grade  string `json:"grade"`
}

// EnrollmentResponse represents a ledger entry
type EnrollmentResponse struct {
	EnrollmentID   uuid.UUID  `json:"enrollment_id"`
	Student        uuid.UUID  `json:"student"`
	Course         uuid.UUID  `json:"course"`
	CourseName     string     `json:"course_name,omitempty" example:"Computer Science"`
	CourseCode     string     `json:"course_code,omitempty" example:"CS101"`
	EnrollmentDate time.Time  `json:"enrollment_date"`
	Status         string     `json:"status" example:"enrolled"`
	Grade          *string    `json:"grade"`
	CompletionDate *time.Time `json:"completion_date"`
	CreditsEarned  *int       `json:"credits_earned"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FromEnrollment converts a models.Enrollment
func FromEnrollment(e *models.Enrollment) EnrollmentResponse {
	resp := EnrollmentResponse{
		EnrollmentID:   e.ID,
		Student:        e.StudentID,
		Course:         e.CourseID,
		EnrollmentDate: e.EnrollmentDate,
		Status:         string(e.Status),
		CompletionDate: e.CompletionDate,
		CreditsEarned:  e.CreditsEarned,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	if e.Grade != nil {
		g := string(*e.Grade)
		resp.Grade = &g
	}
	if e.Course != nil {
		resp.CourseName = e.Course.CourseName
		resp.CourseCode = e.Course.CourseCode
	}
	return resp
}

// FromEnrollments converts a slice of ledger entries
func FromEnrollments(list []*models.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(list))
	for _, e := range list {
		out = append(out, FromEnrollment(e))
	}
	return out
}
