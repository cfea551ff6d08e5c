package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
)

// CreateStudentRequest creates a student user and profile in one step
type CreateStudentRequest struct {
	Username       string     `json:"username" binding:"required,min=3,max=150"`
	Email          string     `json:"email" binding:"required,email"`
	Password       string     `json:"password" binding:"required,min=8"`
	FirstName      string     `json:"first_name" binding:"required,max=150"`
	LastName       string     `json:"last_name" binding:"required,max=150"`
	PhoneNumber    string     `json:"phone_number" binding:"max=15"`
	DateOfBirth    *string    `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address        string     `json:"address"`
	Course         *uuid.UUID `json:"course"`
	EnrollmentDate *string    `json:"enrollment_date" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateStudentRequest is used for PUT and PATCH. Nil fields are left unchanged.
type UpdateStudentRequest struct {
	StudentNumber  *string `json:"student_number" binding:"omitempty,max=20"`
	EnrollmentDate *string `json:"enrollment_date" binding:"omitempty,datetime=2006-01-02"`
	Status         *string `json:"status"`
	FirstName      *string `json:"first_name" binding:"omitempty,max=150"`
	LastName       *string `json:"last_name" binding:"omitempty,max=150"`
	Phone          *string `json:"phone" binding:"omitempty,max=15"`
	Address        *string `json:"address"`
}

// ChangeStudentStatusRequest sets the profile status
type ChangeStudentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// StudentCourseRequest names a course for the student enroll actions
type StudentCourseRequest struct {
	CourseID uuid.UUID `json:"course_id" binding:"required"`
}

// StudentBasicResponse is the compact student view used in lists
type StudentBasicResponse struct {
	StudentID          uuid.UUID `json:"student_id"`
	StudentNumber      string    `json:"student_number" example:"STU20250001"`
	FullName           string    `json:"full_name" example:"John Doe"`
	Email              string    `json:"email" example:"jdoe@example.com"`
	Status             string    `json:"status" example:"active"`
	EnrollmentDate     time.Time `json:"enrollment_date"`
	ActiveCoursesCount int       `json:"active_courses_count" example:"2"`
}

// StudentResponse is the full student view with derived fields
type StudentResponse struct {
	StudentID            uuid.UUID            `json:"student_id"`
	User                 int64                `json:"user"`
	StudentNumber        string               `json:"student_number" example:"STU20250001"`
	EnrollmentDate       time.Time            `json:"enrollment_date"`
	Status               string               `json:"status" example:"active"`
	FullName             string               `json:"full_name" example:"John Doe"`
	Email                string               `json:"email" example:"jdoe@example.com"`
	UserDetails          *UserResponse        `json:"user_details,omitempty"`
	ActiveEnrollments    []EnrollmentResponse `json:"active_enrollments"`
	ActiveCourses        []CourseResponse     `json:"active_courses"`
	TotalCreditsEnrolled int                  `json:"total_credits_enrolled" example:"7"`
	TotalCreditsEarned   int                  `json:"total_credits_earned" example:"4"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// StudentActionResponse reports the result of a student action
type StudentActionResponse struct {
	Message    string              `json:"message"`
	Enrollment *EnrollmentResponse `json:"enrollment,omitempty"`
	Student    *StudentResponse    `json:"student,omitempty"`
}

// FromStudentBasic converts a student whose Enrollments are loaded
func FromStudentBasic(s *models.Student) StudentBasicResponse {
	return StudentBasicResponse{
		StudentID:          s.ID,
		StudentNumber:      s.StudentNumber,
		FullName:           s.FullName(),
		Email:              s.Email(),
		Status:             string(s.Status),
		EnrollmentDate:     s.EnrollmentDate,
		ActiveCoursesCount: len(s.ActiveEnrollments()),
	}
}

// FromStudentsBasic converts a slice of students
func FromStudentsBasic(list []*models.Student) []StudentBasicResponse {
	out := make([]StudentBasicResponse, 0, len(list))
	for _, s := range list {
		out = append(out, FromStudentBasic(s))
	}
	return out
}

// FromStudent converts a student whose User and Enrollments (with courses) are loaded.
// counts holds the active enrollment count per course for the nested course views.
func FromStudent(s *models.Student, counts map[uuid.UUID]int64) StudentResponse {
	resp := StudentResponse{
		StudentID:            s.ID,
		User:                 s.UserID,
		StudentNumber:        s.StudentNumber,
		EnrollmentDate:       s.EnrollmentDate,
		Status:               string(s.Status),
		FullName:             s.FullName(),
		Email:                s.Email(),
		ActiveEnrollments:    make([]EnrollmentResponse, 0),
		ActiveCourses:        make([]CourseResponse, 0),
		TotalCreditsEnrolled: s.TotalCreditsEnrolled(),
		TotalCreditsEarned:   s.TotalCreditsEarned(),
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
	if s.User != nil {
		u := FromUser(s.User)
		resp.UserDetails = &u
	}
	for _, e := range s.ActiveEnrollments() {
		resp.ActiveEnrollments = append(resp.ActiveEnrollments, FromEnrollment(&e))
	}
	for _, c := range s.ActiveCourses() {
		resp.ActiveCourses = append(resp.ActiveCourses, FromCourse(&c, counts[c.ID]))
	}
	return resp
}

// StudentsByCourseResponse lists the students holding an enrolled or completed entry for a course
type StudentsByCourseResponse struct {
	CourseID      uuid.UUID              `json:"course_id"`
	StudentsCount int                    `json:"students_count" example:"3"`
	Students      []StudentBasicResponse `json:"students"`
}
