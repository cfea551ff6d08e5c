package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// Course bounds
const (
	MinCourseDuration = 1
	MaxCourseDuration = 72
	MinCourseCredits  = 1
	MaxCourseCredits  = 10
	DefaultCredits    = 3
	MaxCourseCodeLen  = 20
	MaxCourseNameLen  = 255
)

// Course is a catalog entry. Membership is derived from enrollments.
type Course struct {
	ID             uuid.UUID `json:"course_id" db:"id"`
	CourseName     string    `json:"course_name" db:"course_name" example:"Computer Science"`
	CourseCode     string    `json:"course_code" db:"course_code" example:"CS101"`
	CourseDuration int       `json:"course_duration" db:"course_duration" example:"48"`
	Description    string    `json:"description" db:"description"`
	Credits        int       `json:"credits" db:"credits" example:"4"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeCourseCode trims and upper-cases a course code.
func NormalizeCourseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize applies write-time normalization.
func (c *Course) Normalize() {
	c.CourseCode = NormalizeCourseCode(c.CourseCode)
	c.CourseName = strings.TrimSpace(c.CourseName)
}

// Validate checks field bounds. Uniqueness of the code is checked by the service.
func (c *Course) Validate() error {
	errs := apperrors.FieldErrors{}

	switch {
	case c.CourseCode == "":
		errs.Add("course_code", "Course code is required")
	case len(c.CourseCode) > MaxCourseCodeLen:
		errs.Add("course_code", "Course code cannot exceed 20 characters")
	}

	switch {
	case c.CourseName == "":
		errs.Add("course_name", "Course name is required")
	case len(c.CourseName) > MaxCourseNameLen:
		errs.Add("course_name", "Course name cannot exceed 255 characters")
	}

	if c.CourseDuration < MinCourseDuration {
		errs.Add("course_duration", "Course duration must be greater than 0")
	} else if c.CourseDuration > MaxCourseDuration {
		errs.Add("course_duration", "Course duration cannot exceed 72 months")
	}

	if c.Credits < MinCourseCredits {
		errs.Add("credits", "Credits must be greater than 0")
	} else if c.Credits > MaxCourseCredits {
		errs.Add("credits", "Credits cannot exceed 10")
	}

	return errs.Err()
}

// String renders "CODE - Name".
func (c *Course) String() string {
	return c.CourseCode + " - " + c.CourseName
}
