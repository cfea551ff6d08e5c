package seed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

func newServices(store repositories.Store) *services.Services {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "scms-test",
	})
	return services.NewServices(store, services.Options{JWTService: jwtService, BcryptCost: bcrypt.MinCost}, zerolog.Nop())
}

func newSeeder(t *testing.T) (*Seeder, repositories.Store) {
	t.Helper()
	store := memstore.New()
	return NewSeeder(store, newServices(store), zerolog.Nop()), store
}

// collidingStore makes the next student inserts fail as number collisions
type collidingStore struct {
	*memstore.Store
	collisions int
}

func (s *collidingStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos *repositories.Repositories) error) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		cp := *repos
		cp.StudentRepository = &collidingStudents{IStudentRepository: repos.StudentRepository, store: s}
		return fn(ctx, &cp)
	})
}

type collidingStudents struct {
	repositories.IStudentRepository
	store *collidingStore
}

func (r *collidingStudents) Create(ctx context.Context, student *models.Student) error {
	if r.store.collisions > 0 {
		r.store.collisions--
		return apperrors.ErrStudentNumberExists
	}
	return r.IStudentRepository.Create(ctx, student)
}

func TestRunRetriesProfileNumberForExistingUser(t *testing.T) {
	ctx := context.Background()
	store := &collidingStore{Store: memstore.New()}
	svc := newServices(store)

	user, err := svc.UserService.CreateUser(ctx, services.NewUserInput{
		Username: defaultStudents[0].Username,
		Email:    defaultStudents[0].Username + "@example.com",
		Password: StudentPassword,
	})
	require.NoError(t, err)

	store.collisions = 1
	_, err = NewSeeder(store, svc, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, store.collisions)

	profile, err := store.Repos().StudentRepository.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, models.ValidStudentNumber(profile.StudentNumber), profile.StudentNumber)
}

func TestRunSeedsCatalogAndStudents(t *testing.T) {
	s, store := newSeeder(t)
	ctx := context.Background()

	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, AdminUsername, res.Admin.Username)
	assert.True(t, res.Admin.IsSuperuser)
	assert.Equal(t, len(defaultCourses), res.CoursesCreated)
	assert.Equal(t, len(defaultStudents), res.StudentsCreated)

	mad, err := store.Repos().CourseRepository.GetByCode(ctx, "MAD501")
	require.NoError(t, err)
	assert.Equal(t, "Mobile App Development", mad.CourseName)
	assert.Equal(t, 30, mad.CourseDuration)
	assert.Equal(t, 3, mad.Credits)

	lisa, err := store.Repos().UserRepository.GetByUsername(ctx, "lisa_garcia")
	require.NoError(t, err)
	student, err := store.Repos().StudentRepository.GetByUserID(ctx, lisa.ID)
	require.NoError(t, err)
	enrolled := models.EnrollmentEnrolled
	list, err := store.Repos().EnrollmentRepository.ListByStudent(ctx, student.ID, &enrolled)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestRunIsIdempotent(t *testing.T) {
	s, store := newSeeder(t)
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.NoError(t, err)
	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.CoursesCreated)
	assert.Zero(t, res.StudentsCreated)

	students, total, err := store.Repos().StudentRepository.List(ctx, repositories.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(defaultStudents)), total)
	assert.Len(t, students, len(defaultStudents))
}

func TestClearRemovesStudentsAndCourses(t *testing.T) {
	s, store := newSeeder(t)
	ctx := context.Background()

	_, err := s.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	_, total, err := store.Repos().StudentRepository.List(ctx, repositories.StudentFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = store.Repos().CourseRepository.List(ctx, repositories.CourseFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	admins, err := s.services.UserService.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}
