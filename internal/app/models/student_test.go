package models

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func TestNextStudentNumber(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		latest string
		want   string
	}{
		{"first of year", 2025, "", "STU20250001"},
		{"increments", 2025, "STU20250041", "STU20250042"},
		{"rolls past 9999", 2025, "STU20259999", "STU202510000"},
		{"other year ignored", 2025, "STU20240007", "STU20250001"},
		{"past 9999 keeps counting", 2025, "STU202510000", "STU202510001"},
		{"garbage suffix restarts", 2025, "STU2025abcd", "STU20250001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStudentNumber(tt.year, tt.latest))
		})
	}
}

func TestValidStudentNumber(t *testing.T) {
	for _, n := range []string{"STU20250001", "STU202510000"} {
		assert.True(t, ValidStudentNumber(n), n)
	}
	for _, n := range []string{"", "STU2025001", "STU2025X9999", "stu20250001", "STU20250001 ", "ABC20250001"} {
		assert.False(t, ValidStudentNumber(n), n)
	}
}

func TestStudentNumberSequencePattern(t *testing.T) {
	re := regexp.MustCompile(StudentNumberSequencePattern(StudentNumberYearPrefix(2025)))
	assert.True(t, re.MatchString("STU20250042"))
	assert.True(t, re.MatchString("STU202510000"))
	assert.False(t, re.MatchString("STU2025X9999"))
	assert.False(t, re.MatchString("STU20240042"))
}

func TestStudent_DerivedViews(t *testing.T) {
	now := time.Now()
	cs101 := &Course{ID: uuid.New(), CourseCode: "CS101", Credits: 4}
	wd301 := &Course{ID: uuid.New(), CourseCode: "WD301", Credits: 3}
	ds201 := &Course{ID: uuid.New(), CourseCode: "DS201", Credits: 4}

	s := &Student{ID: uuid.New(), Status: StudentActive}

	active := *NewEnrollment(s.ID, cs101.ID, now)
	active.Course = cs101

	withdrawn := *NewEnrollment(s.ID, wd301.ID, now)
	withdrawn.Course = wd301
	withdrawn.Withdraw(now)

	completed := *NewEnrollment(s.ID, ds201.ID, now)
	completed.Course = ds201
	completed.Complete(nil, ds201.Credits, now)

	s.Enrollments = []Enrollment{active, withdrawn, completed}

	assert.Len(t, s.ActiveEnrollments(), 1)
	courses := s.ActiveCourses()
	if assert.Len(t, courses, 1) {
		assert.Equal(t, "CS101", courses[0].CourseCode)
	}
	assert.Equal(t, 4, s.TotalCreditsEnrolled())
	assert.Equal(t, 4, s.TotalCreditsEarned())
	assert.True(t, s.IsEnrolledIn(cs101.ID))
	assert.False(t, s.IsEnrolledIn(wd301.ID))
	assert.False(t, s.IsEnrolledIn(ds201.ID))
}

func TestStudent_FullNameFallsBackToUsername(t *testing.T) {
	s := &Student{User: &User{Username: "jdoe"}}
	assert.Equal(t, "jdoe", s.FullName())

	s.User.FirstName, s.User.LastName = "John", "Doe"
	assert.Equal(t, "John Doe", s.FullName())
}

func TestCourse_Validate(t *testing.T) {
	c := &Course{CourseCode: " cs101 ", CourseName: "Computer Science", CourseDuration: 48, Credits: 4}
	c.Normalize()
	assert.Equal(t, "CS101", c.CourseCode)
	assert.NoError(t, c.Validate())

	bad := &Course{CourseCode: "X", CourseName: "X", CourseDuration: 73, Credits: 0}
	err := bad.Validate()
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))

	var ce *apperrors.CustomError
	if assert.True(t, errors.As(err, &ce)) {
		assert.Contains(t, ce.Details, "course_duration")
		assert.Contains(t, ce.Details, "credits")
		assert.NotContains(t, ce.Details, "course_code")
	}
}
