package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
)

// CourseRequest is the full course payload for create and replace
type CourseRequest struct {
	CourseName     string `json:"course_name"`
	CourseCode     string `json:"course_code"`
	CourseDuration int    `json:"course_duration"`
	Description    string `json:"description"`
	Credits        *int   `json:"credits"`
	IsActive       *bool  `json:"is_active"`
}

// Apply copies the request onto c. Omitted credits default to 3 and is_active to true.
func (r *CourseRequest) Apply(c *models.Course) {
	c.CourseName = r.CourseName
	c.CourseCode = r.CourseCode
	c.CourseDuration = r.CourseDuration
	c.Description = r.Description
	c.Credits = models.DefaultCredits
	if r.Credits != nil {
		c.Credits = *r.Credits
	}
	c.IsActive = true
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
}

// CoursePatchRequest updates only the fields it carries
type CoursePatchRequest struct {
	CourseName     *string `json:"course_name"`
	CourseCode     *string `json:"course_code"`
	CourseDuration *int    `json:"course_duration"`
	Description    *string `json:"description"`
	Credits        *int    `json:"credits"`
	IsActive       *bool   `json:"is_active"`
}

// Apply copies the non-nil fields onto c
func (r *CoursePatchRequest) Apply(c *models.Course) {
	if r.CourseName != nil {
		c.CourseName = *r.CourseName
	}
	if r.CourseCode != nil {
		c.CourseCode = *r.CourseCode
	}
	if r.CourseDuration != nil {
		c.CourseDuration = *r.CourseDuration
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Credits != nil {
		c.Credits = *r.Credits
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
}

// CourseEnrollRequest names the student to (un)enroll. Students may omit it.
type CourseEnrollRequest struct {
	StudentID *uuid.UUID `json:"student_id"`
}

// CourseResponse represents a catalog entry
type CourseResponse struct {
	CourseID              uuid.UUID `json:"course_id"`
	CourseName            string    `json:"course_name" example:"Computer Science"`
	CourseCode            string    `json:"course_code" example:"CS101"`
	CourseDuration        int       `json:"course_duration" example:"48"`
	Description           string    `json:"description"`
	Credits               int       `json:"credits" example:"4"`
	IsActive              bool      `json:"is_active"`
	EnrolledStudentsCount int64     `json:"enrolled_students_count" example:"12"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// CourseDetailResponse adds the active roster
type CourseDetailResponse struct {
	CourseResponse
	Students []StudentBasicResponse `json:"students"`
}

// FromCourse converts a models.Course with its active enrollment count
func FromCourse(c *models.Course, enrolled int64) CourseResponse {
	return CourseResponse{
		CourseID:              c.ID,
		CourseName:            c.CourseName,
		CourseCode:            c.CourseCode,
		CourseDuration:        c.CourseDuration,
		Description:           c.Description,
		Credits:               c.Credits,
		IsActive:              c.IsActive,
		EnrolledStudentsCount: enrolled,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// FromCourses converts courses using counts keyed by course id
func FromCourses(courses []*models.Course, counts map[uuid.UUID]int64) []CourseResponse {
	out := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, FromCourse(c, counts[c.ID]))
	}
	return out
}

// EnrollmentResultResponse is returned by the course enroll action
type EnrollmentResultResponse struct {
	Message string                  `json:"message" example:"Successfully enrolled in CS101"`
	Student EnrolledStudentResponse `json:"student"`
}

// EnrolledStudentResponse summarizes a student's entry for one course
type EnrolledStudentResponse struct {
	StudentID        uuid.UUID `json:"student_id"`
	StudentNumber    string    `json:"student_number" example:"STU20250001"`
	Name             string    `json:"name" example:"John Doe"`
	Course           string    `json:"course" example:"CS101"`
	EnrollmentDate   time.Time `json:"enrollment_date"`
	EnrollmentStatus string    `json:"enrollment_status" example:"enrolled"`
}

// FromEnrollmentResult builds the enroll action response
func FromEnrollmentResult(s *models.Student, c *models.Course, e *models.Enrollment) EnrollmentResultResponse {
	return EnrollmentResultResponse{
		Message: "Successfully enrolled in " + c.CourseCode,
		Student: EnrolledStudentResponse{
			StudentID:        s.ID,
			StudentNumber:    s.StudentNumber,
			Name:             s.FullName(),
			Course:           c.CourseCode,
			EnrollmentDate:   e.EnrollmentDate,
			EnrollmentStatus: string(e.Status),
		},
	}
}
