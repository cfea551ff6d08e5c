package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func TestEnrollUnenrollReenrollScenario(t *testing.T) {
	f := newFixture(t)
	cs101 := f.course("CS101", 4)
	actor, student := f.student("alice")

	first, err := f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, cs101.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentEnrolled, first.Enrollment.Status)

	detail, err := f.svc.StudentService.GetStudent(f.ctx, actor, student.ID)
	require.NoError(t, err)
	active := detail.Student.ActiveCourses()
	require.Len(t, active, 1)
	assert.Equal(t, "CS101", active[0].CourseCode)
	assert.Equal(t, 4, detail.Student.TotalCreditsEnrolled())
	assert.Equal(t, int64(1), detail.CourseCounts[cs101.ID])

	out, err := f.svc.EnrollmentService.Unenroll(f.ctx, actor, student.ID, cs101.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentWithdrawn, out.Enrollment.Status)
	require.NotNil(t, out.Enrollment.Grade)
	assert.Equal(t, models.GradeWithdrawn, *out.Enrollment.Grade)

	detail, err = f.svc.StudentService.GetStudent(f.ctx, actor, student.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Student.ActiveCourses())
	assert.Equal(t, 0, detail.Student.TotalCreditsEnrolled())

	again, err := f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, cs101.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Enrollment.ID, again.Enrollment.ID)
	assert.Equal(t, models.EnrollmentEnrolled, again.Enrollment.Status)
	assert.Nil(t, again.Enrollment.Grade)

	history, err := f.svc.StudentService.ListEnrollments(f.ctx, actor, student.ID, "")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestEnrollTwiceKeepsSingleActiveEntry(t *testing.T) {
	f := newFixture(t)
	course := f.course("DS201", 4)
	actor, student := f.student("bob")

	_, err := f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)

	e, err := f.svc.EnrollmentService.EnsureEnrolled(f.ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentEnrolled, e.Status)

	history, err := f.svc.StudentService.ListEnrollments(f.ctx, actor, student.ID, "")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUnenrollWithoutActiveEntry(t *testing.T) {
	f := newFixture(t)
	course := f.course("WD301", 3)
	actor, student := f.student("carol")

	_, err := f.svc.EnrollmentService.Unenroll(f.ctx, actor, student.ID, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotEnrolled)

	_, err = f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)
	_, err = f.svc.EnrollmentService.Unenroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.EnrollmentService.Unenroll(f.ctx, actor, student.ID, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotEnrolled)
}

func TestEnrollRequiresActiveCourse(t *testing.T) {
	f := newFixture(t)
	course := f.course("CY401", 4)
	actor, student := f.student("dave")

	_, err := f.svc.CourseService.SetActive(f.ctx, f.admin, course.ID, false)
	require.NoError(t, err)

	_, err = f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	require.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	assert.Equal(t, "Course not found or is not active", err.Error())
}

func TestStudentCannotEnrollSomeoneElse(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	alice, _ := f.student("alice")
	_, bob := f.student("bob")

	_, err := f.svc.EnrollmentService.Enroll(f.ctx, alice, bob.ID, course.ID)
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Equal(t, "Students can only enroll themselves", err.Error())

	res, err := f.svc.EnrollmentService.Enroll(f.ctx, f.admin, bob.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, res.Student.ID)
}

func TestResolveStudent(t *testing.T) {
	f := newFixture(t)
	actor, student := f.student("erin")

	id, err := f.svc.EnrollmentService.ResolveStudent(f.ctx, actor, nil)
	require.NoError(t, err)
	assert.Equal(t, student.ID, id)

	_, err = f.svc.EnrollmentService.ResolveStudent(f.ctx, f.admin, nil)
	msgs := fieldMessages(t, err, "student_id")
	assert.Equal(t, []string{"student_id is required for admin users"}, msgs)

	id, err = f.svc.EnrollmentService.ResolveStudent(f.ctx, f.admin, &student.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ID, id)
}

func TestCompleteEnrollment(t *testing.T) {
	f := newFixture(t)
	course := f.course("MAD501", 3)
	actor, student := f.student("frank")

	res, err := f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.EnrollmentService.Complete(f.ctx, actor, res.Enrollment.ID, "A")
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.EnrollmentService.Complete(f.ctx, f.admin, res.Enrollment.ID, "Z")
	fieldMessages(t, err, "grade")

	done, err := f.svc.EnrollmentService.Complete(f.ctx, f.admin, res.Enrollment.ID, "A-")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, done.Status)
	require.NotNil(t, done.CreditsEarned)
	assert.Equal(t, 3, *done.CreditsEarned)
	assert.NotNil(t, done.CompletionDate)

	detail, err := f.svc.StudentService.GetStudent(f.ctx, actor, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Student.TotalCreditsEarned())
	assert.Empty(t, detail.Student.ActiveCourses())
}

func TestChangeEnrollmentStatus(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	actor, student := f.student("gina")
	res, err := f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.EnrollmentService.ChangeStatus(f.ctx, f.admin, res.Enrollment.ID, "bogus", "")
	fieldMessages(t, err, "status")

	e, err := f.svc.EnrollmentService.ChangeStatus(f.ctx, f.admin, res.Enrollment.ID, "suspended", "")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentSuspended, e.Status)

	enrolled, err := f.svc.EnrollmentService.IsEnrolled(f.ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	e, err = f.svc.EnrollmentService.ChangeStatus(f.ctx, f.admin, res.Enrollment.ID, "completed", "B")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, e.Status)
	assert.Equal(t, 4, *e.CreditsEarned)
	assert.Equal(t, models.GradeB, *e.Grade)
}
