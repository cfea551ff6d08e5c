package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func TestStudentNumbersIncreaseWithinYear(t *testing.T) {
	f := newFixture(t)
	year := time.Now().Year()

	var numbers []string
	for i := 1; i <= 3; i++ {
		_, s := f.student(fmt.Sprintf("student%d", i))
		numbers = append(numbers, s.StudentNumber)
	}

	assert.Equal(t, []string{
		models.FormatStudentNumber(year, 1),
		models.FormatStudentNumber(year, 2),
		models.FormatStudentNumber(year, 3),
	}, numbers)
}

func TestStudentNumberEditsKeepGeneratorMoving(t *testing.T) {
	f := newFixture(t)
	year := time.Now().Year()
	prefix := models.StudentNumberYearPrefix(year)
	_, alice := f.student("alice")
	_, bob := f.student("bob")
	assert.Equal(t, models.FormatStudentNumber(year, 1), alice.StudentNumber)

	_, err := f.svc.StudentService.UpdateStudent(f.ctx, f.admin, bob.ID, &dto.UpdateStudentRequest{StudentNumber: ptr(prefix + "X9999")})
	msgs := fieldMessages(t, err, "student_number")
	assert.Contains(t, msgs[0], "STU<year><sequence>")

	// rows written before validation existed must not stall the sequence
	err = f.store.WithTransaction(f.ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		legacy, err := repos.StudentRepository.GetByID(ctx, bob.ID)
		if err != nil {
			return err
		}
		legacy.StudentNumber = prefix + "X9999"
		return repos.StudentRepository.Update(ctx, legacy)
	})
	require.NoError(t, err)

	_, carol := f.student("carol")
	assert.Equal(t, models.FormatStudentNumber(year, 2), carol.StudentNumber)

	_, err = f.svc.StudentService.UpdateStudent(f.ctx, f.admin, bob.ID, &dto.UpdateStudentRequest{StudentNumber: ptr(models.FormatStudentNumber(year, 9999))})
	require.NoError(t, err)

	_, dave := f.student("dave")
	assert.Equal(t, models.FormatStudentNumber(year, 10000), dave.StudentNumber)
}

func TestCreateWithUserEnrollsInitialCourse(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)

	detail, err := f.svc.StudentService.CreateWithUser(f.ctx, f.admin, &dto.CreateStudentRequest{
		Username:       "hank",
		Email:          "hank@example.com",
		Password:       "student123",
		FirstName:      "Hank",
		LastName:       "Hill",
		Course:         &course.ID,
		EnrollmentDate: ptr("2024-09-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hank Hill", detail.Student.FullName())
	assert.Equal(t, "2024-09-01", detail.Student.EnrollmentDate.Format(dto.DateLayout))
	assert.True(t, detail.Student.IsEnrolledIn(course.ID))
}

func TestCreateWithUserRollsBackOnBadCourse(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	_, err := f.svc.CourseService.SetActive(f.ctx, f.admin, course.ID, false)
	require.NoError(t, err)

	_, err = f.svc.StudentService.CreateWithUser(f.ctx, f.admin, &dto.CreateStudentRequest{
		Username: "ivy",
		Email:    "ivy@example.com",
		Password: "student123",
		Course:   &course.ID,
	})
	fieldMessages(t, err, "course")

	_, err = f.store.Repos().UserRepository.GetByUsername(f.ctx, "ivy")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCreateWithUserRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	actor, _ := f.student("jack")

	_, err := f.svc.StudentService.CreateWithUser(f.ctx, actor, &dto.CreateStudentRequest{
		Username: "kate",
		Email:    "kate@example.com",
		Password: "student123",
	})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestCreateStudentProfileRejectsAdmin(t *testing.T) {
	f := newFixture(t)
	admin, err := f.svc.UserService.GetUserByID(f.ctx, f.admin.UserID)
	require.NoError(t, err)

	err = f.store.WithTransaction(f.ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		_, err := f.svc.StudentService.CreateStudentProfileTx(ctx, repos, admin)
		return err
	})
	msgs := fieldMessages(t, err, "user")
	assert.Equal(t, []string{"Selected user must have 'student' role"}, msgs)
}

func TestListStudentsScopesNonAdmins(t *testing.T) {
	f := newFixture(t)
	alice, aliceProfile := f.student("alice")
	f.student("bob")

	all, total, err := f.svc.StudentService.ListStudents(f.ctx, f.admin, repositories.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	own, total, err := f.svc.StudentService.ListStudents(f.ctx, alice, repositories.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, own, 1)
	assert.Equal(t, aliceProfile.ID, own[0].ID)

	_, _, err = f.svc.StudentService.ListStudents(f.ctx, f.admin, repositories.StudentFilter{Status: "sleeping"})
	fieldMessages(t, err, "status")
}

func TestGetStudentOwnership(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.student("alice")
	_, bob := f.student("bob")

	_, err := f.svc.StudentService.GetStudent(f.ctx, alice, bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.svc.StudentService.GetStudent(f.ctx, f.admin, bob.ID)
	assert.NoError(t, err)
}

func TestMyProfileCreatesMissingProfile(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.UserService.CreateUser(f.ctx, NewUserInput{
		Username: "lazy",
		Email:    "lazy@example.com",
		Password: "student123",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	actor := authz.ActorFromUser(user)

	detail, created, err := f.svc.StudentService.MyProfile(f.ctx, actor)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, user.ID, detail.Student.UserID)

	again, created, err := f.svc.StudentService.MyProfile(f.ctx, actor)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, detail.Student.ID, again.Student.ID)

	_, _, err = f.svc.StudentService.MyProfile(f.ctx, f.admin)
	assert.ErrorIs(t, err, apperrors.ErrStudentProfileMissing)
}

func TestUpdateStudent(t *testing.T) {
	f := newFixture(t)
	alice, aliceProfile := f.student("alice")
	_, bob := f.student("bob")

	_, err := f.svc.StudentService.UpdateStudent(f.ctx, alice, aliceProfile.ID, &dto.UpdateStudentRequest{StudentNumber: ptr("STU19990001")})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	detail, err := f.svc.StudentService.UpdateStudent(f.ctx, alice, aliceProfile.ID, &dto.UpdateStudentRequest{
		FirstName: ptr("Alicia"),
		Phone:     ptr("555-0100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", detail.Student.User.FirstName)
	assert.Equal(t, "555-0100", detail.Student.User.Phone)

	_, err = f.svc.StudentService.UpdateStudent(f.ctx, f.admin, aliceProfile.ID, &dto.UpdateStudentRequest{StudentNumber: &bob.StudentNumber})
	msgs := fieldMessages(t, err, "student_number")
	assert.Equal(t, []string{"Student with this number already exists"}, msgs)

	_, err = f.svc.StudentService.UpdateMyProfile(f.ctx, alice, &dto.UpdateStudentRequest{Status: ptr("asleep")})
	fieldMessages(t, err, "status")
}

func TestChangeStudentStatus(t *testing.T) {
	f := newFixture(t)
	alice, profile := f.student("alice")

	_, err := f.svc.StudentService.ChangeStatus(f.ctx, alice, profile.ID, "bogus")
	assert.Equal(t, []string{"Invalid status"}, fieldMessages(t, err, "status"))

	detail, err := f.svc.StudentService.ChangeStatus(f.ctx, alice, profile.ID, "graduated")
	require.NoError(t, err)
	assert.Equal(t, models.StudentGraduated, detail.Student.Status)

	active, err := f.svc.StudentService.ListActive(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteStudentRemovesUser(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	alice, profile := f.student("alice")
	_, err := f.svc.EnrollmentService.Enroll(f.ctx, alice, profile.ID, course.ID)
	require.NoError(t, err)

	err = f.svc.StudentService.DeleteStudent(f.ctx, alice, profile.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	require.NoError(t, f.svc.StudentService.DeleteStudent(f.ctx, f.admin, profile.ID))

	_, err = f.svc.UserService.GetUserByID(f.ctx, alice.UserID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	// the ledger went with the profile, so the course can be deleted again
	require.NoError(t, f.svc.CourseService.DeleteCourse(f.ctx, f.admin, course.ID))
}

func TestListByCourse(t *testing.T) {
	f := newFixture(t)
	course := f.course("CS101", 4)
	alice, aliceProfile := f.student("alice")
	bob, bobProfile := f.student("bob")
	carol, carolProfile := f.student("carol")

	for _, p := range []struct {
		actor authz.Actor
		s     *models.Student
	}{{alice, aliceProfile}, {bob, bobProfile}, {carol, carolProfile}} {
		_, err := f.svc.EnrollmentService.Enroll(f.ctx, p.actor, p.s.ID, course.ID)
		require.NoError(t, err)
	}
	_, err := f.svc.EnrollmentService.Unenroll(f.ctx, carol, carolProfile.ID, course.ID)
	require.NoError(t, err)

	students, err := f.svc.StudentService.ListByCourse(f.ctx, f.admin, course.ID)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	own, err := f.svc.StudentService.ListByCourse(f.ctx, bob, course.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, bobProfile.ID, own[0].ID)
}

func TestListEnrollmentsFilter(t *testing.T) {
	f := newFixture(t)
	cs := f.course("CS101", 4)
	ds := f.course("DS201", 4)
	alice, profile := f.student("alice")

	_, err := f.svc.EnrollmentService.Enroll(f.ctx, alice, profile.ID, cs.ID)
	require.NoError(t, err)
	_, err = f.svc.EnrollmentService.Enroll(f.ctx, alice, profile.ID, ds.ID)
	require.NoError(t, err)
	_, err = f.svc.EnrollmentService.Unenroll(f.ctx, alice, profile.ID, ds.ID)
	require.NoError(t, err)

	withdrawn, err := f.svc.StudentService.ListEnrollments(f.ctx, alice, profile.ID, "withdrawn")
	require.NoError(t, err)
	require.Len(t, withdrawn, 1)
	assert.Equal(t, ds.ID, withdrawn[0].CourseID)

	_, err = f.svc.StudentService.ListEnrollments(f.ctx, alice, profile.ID, "nope")
	fieldMessages(t, err, "status")
}

func TestBackfillProfiles(t *testing.T) {
	f := newFixture(t)
	f.student("alice")
	for _, name := range []string{"orphan1", "orphan2"} {
		_, err := f.svc.UserService.CreateUser(f.ctx, NewUserInput{
			Username: name,
			Email:    name + "@example.com",
			Password: "student123",
		})
		require.NoError(t, err)
	}

	created, err := f.svc.StudentService.BackfillProfiles(f.ctx)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	created, err = f.svc.StudentService.BackfillProfiles(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func studentUser(t *testing.T, svc *Services, username string) *models.User {
	t.Helper()
	u, err := svc.UserService.CreateUser(context.Background(), NewUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "student123",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	return u
}

func TestEnsureProfileCreatesOnce(t *testing.T) {
	f := newFixture(t)
	u := studentUser(t, f.svc, "erin")

	first, created, err := f.svc.StudentService.EnsureProfile(f.ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, models.ValidStudentNumber(first.StudentNumber), first.StudentNumber)

	again, created, err := f.svc.StudentService.EnsureProfile(f.ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	admin, err := f.store.Repos().UserRepository.GetByUsername(f.ctx, "admin")
	require.NoError(t, err)
	_, _, err = f.svc.StudentService.EnsureProfile(f.ctx, admin.ID)
	assert.ErrorIs(t, err, apperrors.ErrStudentProfileMissing)
}

func TestMyProfileReportsExistingAfterStaleRead(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	svc := servicesOn(t, &wrappedStore{
		Store: mem,
		read: func(r *repositories.Repositories) *repositories.Repositories {
			return withStudents(r, profileLookup{
				IStudentRepository: r.StudentRepository,
				byUser: func(context.Context, int64) (*models.Student, error) {
					return nil, apperrors.ErrStudentNotFound
				},
			})
		},
	})
	u := studentUser(t, svc, "frank")

	existing, created, err := svc.StudentService.EnsureProfile(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, created)

	detail, created, err := svc.StudentService.MyProfile(ctx, authz.ActorFromUser(u))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, detail.Student.ID)
}

func TestMyProfilePropagatesLookupFailure(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	svc := servicesOn(t, &wrappedStore{
		Store: mem,
		tx: func(r *repositories.Repositories) *repositories.Repositories {
			return withStudents(r, profileLookup{
				IStudentRepository: r.StudentRepository,
				byUser: func(context.Context, int64) (*models.Student, error) {
					return nil, errors.New("connection reset")
				},
			})
		},
	})
	u := studentUser(t, svc, "grace")

	_, _, err := svc.StudentService.MyProfile(ctx, authz.ActorFromUser(u))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = mem.Repos().StudentRepository.GetByUserID(ctx, u.ID)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
}
