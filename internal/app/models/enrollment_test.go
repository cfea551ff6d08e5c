package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func TestEnrollment_WithdrawSetsWGradeOnlyWhenUnset(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := NewEnrollment(uuid.New(), uuid.New(), now)

	e.Withdraw(now)
	assert.Equal(t, EnrollmentWithdrawn, e.Status)
	require.NotNil(t, e.Grade)
	assert.Equal(t, GradeWithdrawn, *e.Grade)

	b := GradeB
	e2 := NewEnrollment(uuid.New(), uuid.New(), now)
	e2.Grade = &b
	e2.Withdraw(now)
	assert.Equal(t, GradeB, *e2.Grade)
}

func TestEnrollment_Complete(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewEnrollment(uuid.New(), uuid.New(), now.Add(-90*24*time.Hour))

	a := GradeA
	e.Complete(&a, 4, now)

	assert.Equal(t, EnrollmentCompleted, e.Status)
	require.NotNil(t, e.CompletionDate)
	assert.True(t, e.CompletionDate.Equal(now))
	require.NotNil(t, e.CreditsEarned)
	assert.Equal(t, 4, *e.CreditsEarned)
	assert.Equal(t, GradeA, *e.Grade)

	// Existing credits and completion date survive a second completion.
	three := 3
	e.CreditsEarned = &three
	e.Complete(nil, 4, now.Add(time.Hour))
	assert.Equal(t, 3, *e.CreditsEarned)
	assert.True(t, e.CompletionDate.Equal(now))
	assert.Equal(t, GradeA, *e.Grade)
}

func TestEnrollment_Reactivate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEnrollment(uuid.New(), uuid.New(), start)
	id := e.ID

	assert.False(t, e.Reactivate(start.Add(time.Hour)), "active entry is left unchanged")
	assert.True(t, e.EnrollmentDate.Equal(start))

	e.Withdraw(start.Add(time.Hour))
	later := start.Add(48 * time.Hour)
	assert.True(t, e.Reactivate(later))
	assert.Equal(t, id, e.ID)
	assert.Equal(t, EnrollmentEnrolled, e.Status)
	assert.True(t, e.EnrollmentDate.Equal(later))
	assert.Nil(t, e.Grade)
}

func TestEnrollment_Transition(t *testing.T) {
	now := time.Now()

	t.Run("rejects unknown status", func(t *testing.T) {
		e := NewEnrollment(uuid.New(), uuid.New(), now)
		err := e.Transition("paused", nil, 3, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
		assert.Equal(t, EnrollmentEnrolled, e.Status)
	})

	t.Run("failed records grade", func(t *testing.T) {
		e := NewEnrollment(uuid.New(), uuid.New(), now)
		f := GradeF
		require.NoError(t, e.Transition(EnrollmentFailed, &f, 3, now))
		assert.Equal(t, EnrollmentFailed, e.Status)
		assert.Equal(t, GradeF, *e.Grade)
	})

	t.Run("completed routes through Complete", func(t *testing.T) {
		e := NewEnrollment(uuid.New(), uuid.New(), now)
		require.NoError(t, e.Transition(EnrollmentCompleted, nil, 5, now))
		require.NotNil(t, e.CreditsEarned)
		assert.Equal(t, 5, *e.CreditsEarned)
	})
}

func TestParseGrade(t *testing.T) {
	g, err := ParseGrade("")
	assert.NoError(t, err)
	assert.Nil(t, g)

	g, err = ParseGrade("B+")
	require.NoError(t, err)
	assert.Equal(t, GradeBPlus, *g)

	_, err = ParseGrade("E")
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
}
