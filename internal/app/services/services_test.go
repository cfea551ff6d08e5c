package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/auth"
	"github.com/yigit/scms/internal/pkg/tokenstore"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	svc   *Services
	jwt   *auth.JWTService
	deny  *tokenstore.Memory
	admin authz.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	jwt := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "scms-test",
	})
	deny := tokenstore.NewMemory()
	svc := NewServices(store, Options{JWTService: jwt, Denylist: deny, BcryptCost: bcrypt.MinCost}, zerolog.Nop())

	f := &fixture{t: t, ctx: context.Background(), store: store, svc: svc, jwt: jwt, deny: deny}
	admin, err := svc.UserService.CreateUser(f.ctx, NewUserInput{
		Username:    "admin",
		Email:       "admin@example.com",
		Password:    "admin1234",
		Role:        models.RoleAdmin,
		IsSuperuser: true,
	})
	require.NoError(t, err)
	f.admin = authz.ActorFromUser(admin)
	return f
}

func (f *fixture) course(code string, credits int) *models.Course {
	f.t.Helper()
	c, err := f.svc.CourseService.CreateCourse(f.ctx, f.admin, &dto.CourseRequest{
		CourseName:     "Course " + code,
		CourseCode:     code,
		CourseDuration: 12,
		Credits:        &credits,
	})
	require.NoError(f.t, err)
	return c
}

// student creates a student user with its profile and returns both
func (f *fixture) student(username string) (authz.Actor, *models.Student) {
	f.t.Helper()
	detail, err := f.svc.StudentService.CreateWithUser(f.ctx, f.admin, &dto.CreateStudentRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "student123",
		FirstName: "Test",
		LastName:  username,
	})
	require.NoError(f.t, err)
	return authz.ActorFromUser(detail.Student.User), detail.Student
}

func fieldMessages(t *testing.T, err error, field string) []string {
	t.Helper()
	var ce *apperrors.CustomError
	require.True(t, errors.As(err, &ce), "expected a CustomError, got %v", err)
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
	msgs, ok := ce.Details[field].([]string)
	require.True(t, ok, "no details for field %q in %v", field, ce.Details)
	return msgs
}

func ptr[T any](v T) *T { return &v }
