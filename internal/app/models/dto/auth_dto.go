package dto

import (
	"time"

	"github.com/yigit/scms/internal/app/models"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username        string          `json:"username" binding:"required,min=3,max=150"`
	Email           string          `json:"email" binding:"required,email"`
	Password        string          `json:"password" binding:"required,min=8"`
	PasswordConfirm string          `json:"password_confirm"`
	ConfirmPassword string          `json:"confirmPassword"`
	FirstName       string          `json:"first_name" binding:"max=150"`
	LastName        string          `json:"last_name" binding:"max=150"`
	Role            models.RoleType `json:"role" binding:"omitempty,oneof=admin student"`
	Phone           string          `json:"phone" binding:"max=15"`
	DateOfBirth     *string         `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address         string          `json:"address"`
}

// Confirmation returns whichever confirmation field the client sent
func (r *RegisterRequest) Confirmation() string {
	if r.PasswordConfirm != "" {
		return r.PasswordConfirm
	}
	return r.ConfirmPassword
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest carries the opaque refresh token
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// LogoutRequest optionally carries the refresh token to revoke
type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

// TokenResponse represents JWT token information
type TokenResponse struct {
	Access           string `json:"access"`
	Refresh          string `json:"refresh"`
	TokenType        string `json:"token_type" example:"Bearer"`
	ExpiresIn        int    `json:"expires_in" example:"3600"`
	RefreshExpiresIn int    `json:"refresh_expires_in" example:"604800"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Message string        `json:"message" example:"Login successful"`
	User    UserResponse  `json:"user"`
	Tokens  TokenResponse `json:"tokens"`
}

// UpdateProfileRequest is used for both PUT and PATCH of the own profile.
// Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Email       *string `json:"email" binding:"omitempty,email"`
	FirstName   *string `json:"first_name" binding:"omitempty,max=150"`
	LastName    *string `json:"last_name" binding:"omitempty,max=150"`
	Phone       *string `json:"phone" binding:"omitempty,max=15"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address     *string `json:"address"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// UserResponse represents a user profile
type UserResponse struct {
	ID          int64      `json:"id" example:"1"`
	Username    string     `json:"username" example:"jdoe"`
	Email       string     `json:"email" example:"jdoe@example.com"`
	FirstName   string     `json:"first_name" example:"John"`
	LastName    string     `json:"last_name" example:"Doe"`
	FullName    string     `json:"full_name" example:"John Doe"`
	Role        string     `json:"role" example:"student" enums:"admin,student"`
	IsSuperuser bool       `json:"is_superuser"`
	IsActive    bool       `json:"is_active"`
	Phone       string     `json:"phone"`
	DateOfBirth *string    `json:"date_of_birth"`
	Address     string     `json:"address"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `json:"date_joined"`
}

// FromUser converts a models.User to a UserResponse
func FromUser(u *models.User) UserResponse {
	resp := UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Role:        string(u.RoleType),
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		Phone:       u.Phone,
		Address:     u.Address,
		LastLogin:   u.LastLoginAt,
		DateJoined:  u.CreatedAt,
	}
	if u.DateOfBirth != nil {
		d := u.DateOfBirth.Format(DateLayout)
		resp.DateOfBirth = &d
	}
	return resp
}

// FromUsers converts a slice of users
func FromUsers(users []*models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, FromUser(u))
	}
	return out
}

// ParseDate parses an optional yyyy-mm-dd value
func ParseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
