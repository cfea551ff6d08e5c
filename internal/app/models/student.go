package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StudentStatus is the institutional status of a student.
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentInactive  StudentStatus = "inactive"
	StudentGraduated StudentStatus = "graduated"
	StudentDropped   StudentStatus = "dropped"
)

// StudentStatuses lists every student status.
var StudentStatuses = []StudentStatus{StudentActive, StudentInactive, StudentGraduated, StudentDropped}

// Valid reports whether s is a known student status.
func (s StudentStatus) Valid() bool {
	for _, v := range StudentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// StudentNumberPrefix starts every generated student number.
const StudentNumberPrefix = "STU"

var studentNumberPattern = regexp.MustCompile(`^` + StudentNumberPrefix + `[0-9]{4}[0-9]{4,}$`)

// ValidStudentNumber reports whether number has the STU<year><sequence> shape,
// with a sequence of at least four digits.
func ValidStudentNumber(number string) bool {
	return studentNumberPattern.MatchString(number)
}

// StudentNumberSequencePattern is a regular expression, valid for both Go and
// PostgreSQL, matching numbers under prefix whose remainder is a numeric sequence.
func StudentNumberSequencePattern(prefix string) string {
	return "^" + regexp.QuoteMeta(prefix) + "[0-9]{4,}$"
}

// Student defines the student profile based on the 'students' table
type Student struct {
	ID             uuid.UUID     `json:"student_id" db:"id"`
	UserID         int64         `json:"user" db:"user_id"`
	StudentNumber  string        `json:"student_number" db:"student_number" example:"STU20250001"`
	EnrollmentDate time.Time     `json:"enrollment_date" db:"enrollment_date"`
	Status         StudentStatus `json:"status" db:"status" example:"active"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`

	// Relations (populated when needed)
	User        *User        `json:"-"`
	Enrollments []Enrollment `json:"-"`
}

// FullName falls back to the username when the user has no name.
func (s *Student) FullName() string {
	if s.User == nil {
		return ""
	}
	return s.User.FullName()
}

// Email returns the linked user's email.
func (s *Student) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

// IsActiveStudent reports whether the institutional status is active.
func (s *Student) IsActiveStudent() bool {
	return s.Status == StudentActive
}

// ActiveEnrollments returns the entries whose status is enrolled.
func (s *Student) ActiveEnrollments() []Enrollment {
	active := make([]Enrollment, 0, len(s.Enrollments))
	for _, e := range s.Enrollments {
		if e.IsActive() {
			active = append(active, e)
		}
	}
	return active
}

// ActiveCourses returns the distinct courses of active entries, in ledger order.
func (s *Student) ActiveCourses() []Course {
	seen := make(map[uuid.UUID]struct{})
	courses := make([]Course, 0)
	for _, e := range s.Enrollments {
		if !e.IsActive() || e.Course == nil {
			continue
		}
		if _, ok := seen[e.CourseID]; ok {
			continue
		}
		seen[e.CourseID] = struct{}{}
		courses = append(courses, *e.Course)
	}
	return courses
}

// TotalCreditsEnrolled sums the credits of active courses.
func (s *Student) TotalCreditsEnrolled() int {
	total := 0
	for _, c := range s.ActiveCourses() {
		total += c.Credits
	}
	return total
}

// TotalCreditsEarned sums credits earned over completed entries.
func (s *Student) TotalCreditsEarned() int {
	total := 0
	for _, e := range s.Enrollments {
		if e.IsCompleted() && e.CreditsEarned != nil {
			total += *e.CreditsEarned
		}
	}
	return total
}

// IsEnrolledIn reports whether an active entry exists for course.
func (s *Student) IsEnrolledIn(courseID uuid.UUID) bool {
	for _, e := range s.Enrollments {
		if e.CourseID == courseID && e.IsActive() {
			return true
		}
	}
	return false
}

// StudentNumberYearPrefix returns "STU<year>".
func StudentNumberYearPrefix(year int) string {
	return fmt.Sprintf("%s%d", StudentNumberPrefix, year)
}

// FormatStudentNumber renders the number for a year and sequence.
func FormatStudentNumber(year, seq int) string {
	return fmt.Sprintf("%s%d%04d", StudentNumberPrefix, year, seq)
}

// NextStudentNumber derives the number following latest within year. latest is the
// highest existing number carrying the year prefix, or empty when none exists.
// An unparsable suffix restarts the sequence at 1.
func NextStudentNumber(year int, latest string) string {
	prefix := StudentNumberYearPrefix(year)
	if !strings.HasPrefix(latest, prefix) {
		return FormatStudentNumber(year, 1)
	}

	last, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil || last < 0 {
		return FormatStudentNumber(year, 1)
	}
	return FormatStudentNumber(year, last+1)
}
