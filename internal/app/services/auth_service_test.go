package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func registerRequest(username string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "secret123",
		PasswordConfirm: "secret123",
		FirstName:       "Reg",
		LastName:        "User",
	}
}

func TestRegisterStudentCreatesProfile(t *testing.T) {
	f := newFixture(t)

	session, err := f.svc.AuthService.Register(f.ctx, registerRequest("newbie"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, session.User.RoleType)
	require.NotNil(t, session.Student)
	assert.NotEmpty(t, session.Student.StudentNumber)
	assert.NotEmpty(t, session.Tokens.AccessToken)

	claims, err := f.jwt.ValidateAndExtractClaims(session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
}

func TestRegisterPasswordConfirmation(t *testing.T) {
	f := newFixture(t)

	req := registerRequest("nomatch")
	req.PasswordConfirm = ""
	_, err := f.svc.AuthService.Register(f.ctx, req)
	assert.Equal(t, []string{"Password confirmation is required"}, fieldMessages(t, err, "password_confirm"))

	req.ConfirmPassword = "other1234"
	_, err = f.svc.AuthService.Register(f.ctx, req)
	assert.Equal(t, []string{"Passwords don't match"}, fieldMessages(t, err, "password_confirm"))
}

func TestRegisterSecondAdmin(t *testing.T) {
	f := newFixture(t)

	req := registerRequest("boss")
	req.Role = models.RoleAdmin
	_, err := f.svc.AuthService.Register(f.ctx, req)
	assert.Equal(t, []string{"An admin user already exists: admin"}, fieldMessages(t, err, "role"))

	_, err = f.store.Repos().UserRepository.GetByUsername(f.ctx, "boss")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.student("alice")

	_, err := f.svc.AuthService.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.svc.AuthService.Login(f.ctx, &dto.LoginRequest{Username: "nobody", Password: "student123"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	session, err := f.svc.AuthService.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: "student123"})
	require.NoError(t, err)
	assert.NotNil(t, session.User.LastLoginAt)
	assert.NotEmpty(t, session.Tokens.RefreshToken)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	f.student("alice")
	session, err := f.svc.AuthService.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: "student123"})
	require.NoError(t, err)

	rotated, err := f.svc.AuthService.RefreshToken(f.ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	_, err = f.svc.AuthService.RefreshToken(f.ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)

	_, err = f.svc.AuthService.RefreshToken(f.ctx, "unknown")
	assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)
}

func TestLogoutRevokesTokens(t *testing.T) {
	f := newFixture(t)
	f.student("alice")
	session, err := f.svc.AuthService.Login(f.ctx, &dto.LoginRequest{Username: "alice", Password: "student123"})
	require.NoError(t, err)
	claims, err := f.jwt.ValidateAndExtractClaims(session.Tokens.AccessToken)
	require.NoError(t, err)

	err = f.svc.AuthService.Logout(f.ctx, claims, "not-a-token")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.Equal(t, "Invalid token", err.Error())

	require.NoError(t, f.svc.AuthService.Logout(f.ctx, claims, session.Tokens.RefreshToken))

	revoked, err := f.svc.AuthService.IsAccessRevoked(f.ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = f.svc.AuthService.RefreshToken(f.ctx, session.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)
}
