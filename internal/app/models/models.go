package models

// RoleType defines the user role type
type RoleType string

const (
	RoleAdmin   RoleType = "admin"
	RoleStudent RoleType = "student"
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}
