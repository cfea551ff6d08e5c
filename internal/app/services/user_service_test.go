package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/auth"
)

func TestSecondAdminRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UserService.CreateUser(f.ctx, NewUserInput{
		Username: "admin2",
		Email:    "admin2@example.com",
		Password: "admin1234",
		Role:     models.RoleAdmin,
	})
	assert.Equal(t, []string{"An admin user already exists: admin"}, fieldMessages(t, err, "role"))
}

func TestConcurrentAdminInsertNamesExistingAdmin(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	require.NoError(t, mem.Repos().UserRepository.Create(ctx, &models.User{
		Username: "root",
		Email:    "root@example.com",
		RoleType: models.RoleAdmin,
		IsActive: true,
	}))
	svc := servicesOn(t, &wrappedStore{
		Store: mem,
		tx: func(r *repositories.Repositories) *repositories.Repositories {
			return withUsers(r, adminBlindUsers{r.UserRepository})
		},
	})

	_, err := svc.UserService.CreateUser(ctx, NewUserInput{
		Username: "second",
		Email:    "second@example.com",
		Password: "admin1234",
		Role:     models.RoleAdmin,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, []string{"An admin user already exists: root"}, fieldMessages(t, err, "role"))
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UserService.CreateUser(f.ctx, NewUserInput{
		Username: "bad name",
		Email:    "not-an-email",
		Password: "short",
	})
	fieldMessages(t, err, "username")
	fieldMessages(t, err, "email")
	fieldMessages(t, err, "password")

	_, err = f.svc.UserService.CreateUser(f.ctx, NewUserInput{
		Username: "admin",
		Email:    "ADMIN@example.com",
		Password: "password1",
	})
	assert.Equal(t, []string{"A user with that username already exists."}, fieldMessages(t, err, "username"))
	assert.Equal(t, []string{"A user with this email already exists."}, fieldMessages(t, err, "email"))
}

func TestListUsersScopes(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.student("alice")
	f.student("bob")

	all, err := f.svc.UserService.ListUsers(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := f.svc.UserService.ListUsers(f.ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, alice.UserID, own[0].ID)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.student("alice")

	err := f.svc.UserService.ChangePassword(f.ctx, alice, &dto.ChangePasswordRequest{
		OldPassword:     "wrong",
		NewPassword:     "newpass123",
		ConfirmPassword: "different1",
	})
	assert.Equal(t, []string{"Old password is incorrect"}, fieldMessages(t, err, "old_password"))
	assert.Equal(t, []string{"New passwords don't match"}, fieldMessages(t, err, "confirm_password"))

	require.NoError(t, f.svc.UserService.ChangePassword(f.ctx, alice, &dto.ChangePasswordRequest{
		OldPassword:     "student123",
		NewPassword:     "newpass123",
		ConfirmPassword: "newpass123",
	}))

	user, err := f.svc.UserService.GetUserByID(f.ctx, alice.UserID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(user.Password, "newpass123"))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.student("alice")

	user, err := f.svc.UserService.UpdateProfile(f.ctx, alice, &dto.UpdateProfileRequest{
		LastName:    ptr("Liddell"),
		DateOfBirth: ptr("2001-02-03"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Liddell", user.LastName)
	require.NotNil(t, user.DateOfBirth)
	assert.Equal(t, "2001-02-03", user.DateOfBirth.Format(dto.DateLayout))

	_, err = f.svc.UserService.UpdateProfile(f.ctx, alice, &dto.UpdateProfileRequest{Email: ptr("admin@example.com")})
	fieldMessages(t, err, "email")
}

func TestReplaceAdmin(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.UserService.ReplaceAdmin(f.ctx, NewUserInput{
		Username: "root",
		Email:    "root@example.com",
		Password: "rootpass1",
	}, false)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, "Admin account already exists: admin (admin@example.com)", err.Error())

	created, replaced, err := f.svc.UserService.ReplaceAdmin(f.ctx, NewUserInput{
		Username:    "root",
		Email:       "root@example.com",
		Password:    "rootpass1",
		IsSuperuser: true,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, created.RoleType)
	assert.True(t, created.IsStaff)
	require.Len(t, replaced, 1)
	assert.Equal(t, "admin", replaced[0].Username)

	admins, err := f.svc.UserService.ListAdmins(f.ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)
}

func TestCleanupAdmins(t *testing.T) {
	f := newFixture(t)

	kept, removed, err := f.svc.UserService.CleanupAdmins(f.ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, "admin", kept.Username)
	assert.Empty(t, removed)

	_, _, err = f.svc.UserService.CleanupAdmins(f.ctx, "ghost", true)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}
