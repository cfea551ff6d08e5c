package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// EnrollmentStatus is the lifecycle state of a ledger entry.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentFailed    EnrollmentStatus = "failed"
	EnrollmentSuspended EnrollmentStatus = "suspended"
)

// EnrollmentStatuses lists every status in display order.
var EnrollmentStatuses = []EnrollmentStatus{
	EnrollmentEnrolled,
	EnrollmentCompleted,
	EnrollmentWithdrawn,
	EnrollmentFailed,
	EnrollmentSuspended,
}

// Valid reports whether s is a known enrollment status.
func (s EnrollmentStatus) Valid() bool {
	for _, v := range EnrollmentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Grade is a letter grade recorded on an enrollment.
type Grade string

const (
	GradeAPlus      Grade = "A+"
	GradeA          Grade = "A"
	GradeAMinus     Grade = "A-"
	GradeBPlus      Grade = "B+"
	GradeB          Grade = "B"
	GradeBMinus     Grade = "B-"
	GradeCPlus      Grade = "C+"
	GradeC          Grade = "C"
	GradeCMinus     Grade = "C-"
	GradeDPlus      Grade = "D+"
	GradeD          Grade = "D"
	GradeF          Grade = "F"
	GradeIncomplete Grade = "I"
	GradeWithdrawn  Grade = "W"
)

// Grades lists every accepted grade.
var Grades = []Grade{
	GradeAPlus, GradeA, GradeAMinus,
	GradeBPlus, GradeB, GradeBMinus,
	GradeCPlus, GradeC, GradeCMinus,
	GradeDPlus, GradeD, GradeF,
	GradeIncomplete, GradeWithdrawn,
}

// Valid reports whether g is an accepted grade.
func (g Grade) Valid() bool {
	for _, v := range Grades {
		if g == v {
			return true
		}
	}
	return false
}

// ParseGrade converts an optional request value into a Grade. Empty input yields nil.
func ParseGrade(s string) (*Grade, error) {
	if s == "" {
		return nil, nil
	}
	g := Grade(s)
	if !g.Valid() {
		return nil, apperrors.NewFieldError("grade", "\""+s+"\" is not a valid choice")
	}
	return &g, nil
}

// Enrollment joins one student to one course. At most one row exists per pair.
type Enrollment struct {
	ID             uuid.UUID        `json:"enrollment_id" db:"id"`
	StudentID      uuid.UUID        `json:"student" db:"student_id"`
	CourseID       uuid.UUID        `json:"course" db:"course_id"`
	EnrollmentDate time.Time        `json:"enrollment_date" db:"enrollment_date"`
	Status         EnrollmentStatus `json:"status" db:"status"`
	Grade          *Grade           `json:"grade" db:"grade"`
	CompletionDate *time.Time       `json:"completion_date" db:"completion_date"`
	CreditsEarned  *int             `json:"credits_earned" db:"credits_earned"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`

	// Populated by repositories that join the course row.
	Course *Course `json:"-"`
}

// NewEnrollment returns a fresh enrolled entry for the pair.
func NewEnrollment(studentID, courseID uuid.UUID, now time.Time) *Enrollment {
	return &Enrollment{
		ID:             uuid.New(),
		StudentID:      studentID,
		CourseID:       courseID,
		EnrollmentDate: now,
		Status:         EnrollmentEnrolled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsActive reports whether the entry counts toward active courses.
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentEnrolled
}

// IsCompleted reports whether the course was completed.
func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentCompleted
}

// Reactivate moves a non-active entry back to enrolled and resets its enrollment date.
// Outcome fields of the previous attempt are cleared. It reports whether anything changed.
func (e *Enrollment) Reactivate(now time.Time) bool {
	if e.IsActive() {
		return false
	}
	e.Status = EnrollmentEnrolled
	e.EnrollmentDate = now
	e.Grade = nil
	e.CompletionDate = nil
	e.CreditsEarned = nil
	e.UpdatedAt = now
	return true
}

// Withdraw marks the entry withdrawn and records a W grade when none was set.
func (e *Enrollment) Withdraw(now time.Time) {
	e.Status = EnrollmentWithdrawn
	if e.Grade == nil {
		w := GradeWithdrawn
		e.Grade = &w
	}
	e.UpdatedAt = now
}

// Complete marks the entry completed. The completion date is stamped when absent,
// credits default to courseCredits when unset, and grade is recorded when given.
func (e *Enrollment) Complete(grade *Grade, courseCredits int, now time.Time) {
	e.Status = EnrollmentCompleted
	if e.CompletionDate == nil {
		t := now
		e.CompletionDate = &t
	}
	if grade != nil {
		g := *grade
		e.Grade = &g
	}
	if e.CreditsEarned == nil {
		c := courseCredits
		e.CreditsEarned = &c
	}
	e.UpdatedAt = now
}

// Transition applies an arbitrary status change. Completion and withdrawal go through
// their dedicated rules; the remaining statuses only record the status and optional grade.
func (e *Enrollment) Transition(status EnrollmentStatus, grade *Grade, courseCredits int, now time.Time) error {
	if !status.Valid() {
		return apperrors.NewFieldError("status", "\""+string(status)+"\" is not a valid choice")
	}

	switch status {
	case EnrollmentCompleted:
		e.Complete(grade, courseCredits, now)
		return nil
	case EnrollmentWithdrawn:
		if grade != nil {
			g := *grade
			e.Grade = &g
		}
		e.Withdraw(now)
		return nil
	case EnrollmentEnrolled:
		e.Reactivate(now)
	default:
		e.Status = status
		e.UpdatedAt = now
	}

	if grade != nil {
		g := *grade
		e.Grade = &g
	}
	return nil
}
