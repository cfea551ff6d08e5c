package models

import (
	"strings"
	"time"
)

// User defines the user model based on the 'users' table
type User struct {
	ID          int64      `json:"id" db:"id" example:"1"`
	Username    string     `json:"username" db:"username" example:"jdoe"`
	Email       string     `json:"email" db:"email" example:"jdoe@example.com"`
	Password    string     `json:"-" db:"password"`
	FirstName   string     `json:"first_name" db:"first_name" example:"John"`
	LastName    string     `json:"last_name" db:"last_name" example:"Doe"`
	RoleType    RoleType   `json:"role" db:"role" example:"student"`
	IsSuperuser bool       `json:"is_superuser" db:"is_superuser"`
	IsStaff     bool       `json:"is_staff" db:"is_staff"`
	IsActive    bool       `json:"is_active" db:"is_active" example:"true"`
	Phone       string     `json:"phone" db:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Address     string     `json:"address" db:"address"`
	LastLoginAt *time.Time `json:"last_login,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"date_joined" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns "first last", falling back to the username when both are blank.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// IsAdmin reports whether the user carries the admin role or the superuser flag.
func (u *User) IsAdmin() bool {
	return u.RoleType == RoleAdmin || u.IsSuperuser
}

// IsStudent reports whether the user has the student role.
func (u *User) IsStudent() bool {
	return u.RoleType == RoleStudent
}
