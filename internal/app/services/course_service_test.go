package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func TestCreateCourseNormalizesAndDefaults(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.CourseService.CreateCourse(f.ctx, f.admin, &dto.CourseRequest{
		CourseName:     "  Web Development ",
		CourseCode:     " wd301 ",
		CourseDuration: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, "WD301", c.CourseCode)
	assert.Equal(t, "Web Development", c.CourseName)
	assert.Equal(t, 3, c.Credits)
	assert.True(t, c.IsActive)

	_, err = f.svc.CourseService.CreateCourse(f.ctx, f.admin, &dto.CourseRequest{
		CourseName:     "Duplicate",
		CourseCode:     "WD301",
		CourseDuration: 24,
	})
	assert.Equal(t, []string{"Course with this code already exists"}, fieldMessages(t, err, "course_code"))
}

func TestCreateCourseValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CourseService.CreateCourse(f.ctx, f.admin, &dto.CourseRequest{
		CourseName:     "Too long",
		CourseCode:     "TL1",
		CourseDuration: 100,
		Credits:        ptr(11),
	})
	assert.Equal(t, []string{"Course duration cannot exceed 72 months"}, fieldMessages(t, err, "course_duration"))
	assert.Equal(t, []string{"Credits cannot exceed 10"}, fieldMessages(t, err, "credits"))
}

func TestCourseWritesRequireAdmin(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	student, _ := f.student("alice")

	_, err := f.svc.CourseService.CreateCourse(f.ctx, student, &dto.CourseRequest{CourseName: "X", CourseCode: "X1", CourseDuration: 1})
	require.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Equal(t, "Only administrators can modify courses", err.Error())

	_, _, err = f.svc.CourseService.PatchCourse(f.ctx, student, course.ID, &dto.CoursePatchRequest{Credits: ptr(5)})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	assert.ErrorIs(t, f.svc.CourseService.DeleteCourse(f.ctx, student, course.ID), apperrors.ErrPermissionDenied)
}

func TestPatchAndReplaceCourse(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	f.course("DS201", 4)

	patched, _, err := f.svc.CourseService.PatchCourse(f.ctx, f.admin, course.ID, &dto.CoursePatchRequest{Description: ptr("Intro")})
	require.NoError(t, err)
	assert.Equal(t, "Intro", patched.Description)
	assert.Equal(t, 4, patched.Credits)

	_, _, err = f.svc.CourseService.PatchCourse(f.ctx, f.admin, course.ID, &dto.CoursePatchRequest{CourseCode: ptr("ds201")})
	fieldMessages(t, err, "course_code")

	replaced, _, err := f.svc.CourseService.ReplaceCourse(f.ctx, f.admin, course.ID, &dto.CourseRequest{
		CourseName:     "Computer Science",
		CourseCode:     "CS101",
		CourseDuration: 48,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, replaced.Credits)
	assert.Empty(t, replaced.Description)
}

func TestStudentsOnlySeeActiveCourses(t *testing.T) {
	f := newFixture(t)
	active := f.course("CS101", 4)
	hidden := f.course("DS201", 4)
	_, err := f.svc.CourseService.SetActive(f.ctx, f.admin, hidden.ID, false)
	require.NoError(t, err)
	student, _ := f.student("alice")

	list, total, _, err := f.svc.CourseService.ListCourses(f.ctx, student, repositories.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	_, total, _, err = f.svc.CourseService.ListCourses(f.ctx, f.admin, repositories.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, err = f.svc.CourseService.GetCourse(f.ctx, student, hidden.ID)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)

	_, _, err = f.svc.CourseService.GetCourse(f.ctx, f.admin, hidden.ID)
	assert.NoError(t, err)

	actives, _, err := f.svc.CourseService.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Len(t, actives, 1)
}

func TestDeleteCourseWithEnrollment(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	empty := f.course("DS201", 4)
	actor, student := f.student("alice")

	_, err := f.svc.EnrollmentService.Enroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)
	_, err = f.svc.EnrollmentService.Unenroll(f.ctx, actor, student.ID, course.ID)
	require.NoError(t, err)

	// withdrawn entries still block deletion
	err = f.svc.CourseService.DeleteCourse(f.ctx, f.admin, course.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.ErrorIs(t, err, apperrors.ErrCourseHasEnrollment)

	require.NoError(t, f.svc.CourseService.DeleteCourse(f.ctx, f.admin, empty.ID))
	_, _, err = f.svc.CourseService.GetCourse(f.ctx, f.admin, empty.ID)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
}

func TestCourseDetailRoster(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	alice, aliceProfile := f.student("alice")
	bob, bobProfile := f.student("bob")

	_, err := f.svc.EnrollmentService.Enroll(f.ctx, alice, aliceProfile.ID, course.ID)
	require.NoError(t, err)
	_, err = f.svc.EnrollmentService.Enroll(f.ctx, bob, bobProfile.ID, course.ID)
	require.NoError(t, err)
	_, err = f.svc.EnrollmentService.Unenroll(f.ctx, bob, bobProfile.ID, course.ID)
	require.NoError(t, err)

	detail, err := f.svc.CourseService.GetCourseDetail(f.ctx, alice, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.Enrolled)
	require.Len(t, detail.Students, 1)
	assert.Equal(t, aliceProfile.ID, detail.Students[0].ID)

	_, enrolled, err := f.svc.CourseService.GetCourse(f.ctx, alice, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), enrolled)
}
