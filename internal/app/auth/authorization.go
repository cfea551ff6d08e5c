package auth

import (
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// Operation is an action an actor attempts on a target.
type Operation string

const (
	OpRead        Operation = "read"
	OpWrite       Operation = "write"
	OpEnroll      Operation = "enroll"
	OpGrade       Operation = "grade"
	OpManageUsers Operation = "manage_users"
)

// TargetKind names the resource family a target belongs to.
type TargetKind string

const (
	TargetCourse     TargetKind = "course"
	TargetStudent    TargetKind = "student"
	TargetEnrollment TargetKind = "enrollment"
	TargetUser       TargetKind = "user"
)

// Actor is the authenticated caller as seen by the policy.
type Actor struct {
	UserID      int64
	Username    string
	Role        models.RoleType
	IsSuperuser bool
}

// ActorFromUser builds an Actor from a loaded user.
func ActorFromUser(u *models.User) Actor {
	return Actor{
		UserID:      u.ID,
		Username:    u.Username,
		Role:        u.RoleType,
		IsSuperuser: u.IsSuperuser,
	}
}

// IsAuthenticated reports whether the actor carries a user id.
func (a Actor) IsAuthenticated() bool {
	return a.UserID > 0
}

// IsAdmin reports whether the actor holds the admin role or the superuser flag.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin || a.IsSuperuser
}

// IsStudent reports whether the actor has the student role.
func (a Actor) IsStudent() bool {
	return a.Role == models.RoleStudent
}

// Target identifies the resource being acted on. OwnerUserID is the user that owns it,
// zero when the resource has no owner (catalog entries).
type Target struct {
	Kind        TargetKind
	OwnerUserID int64
}

// CourseTarget targets the course catalog.
func CourseTarget() Target {
	return Target{Kind: TargetCourse}
}

// StudentTarget targets a student profile.
func StudentTarget(s *models.Student) Target {
	return Target{Kind: TargetStudent, OwnerUserID: s.UserID}
}

// EnrollmentTarget targets a ledger entry owned by the given student.
func EnrollmentTarget(owner *models.Student) Target {
	return Target{Kind: TargetEnrollment, OwnerUserID: owner.UserID}
}

// UserTarget targets an identity record.
func UserTarget(userID int64) Target {
	return Target{Kind: TargetUser, OwnerUserID: userID}
}

// Policy is the single place role and ownership checks are decided.
type Policy struct{}

// NewPolicy creates a new Policy
func NewPolicy() *Policy {
	return &Policy{}
}

// Authorize returns nil when actor may perform op on target, otherwise a permission error.
func (p *Policy) Authorize(actor Actor, target Target, op Operation) error {
	if !actor.IsAuthenticated() {
		return apperrors.NewForbiddenError("Authentication credentials were not provided")
	}
	if actor.IsAdmin() {
		return nil
	}

	owner := target.OwnerUserID != 0 && target.OwnerUserID == actor.UserID

	switch target.Kind {
	case TargetCourse:
		if op == OpRead {
			return nil
		}
		return apperrors.NewForbiddenError("Only administrators can modify courses")

	case TargetStudent:
		switch op {
		case OpRead, OpWrite:
			if owner {
				return nil
			}
		case OpEnroll:
			if owner && actor.IsStudent() {
				return nil
			}
			return apperrors.NewForbiddenError("Students can only enroll themselves")
		}

	case TargetEnrollment:
		if (op == OpRead || op == OpWrite) && owner {
			return nil
		}
		if op == OpGrade {
			return apperrors.NewForbiddenError("Only administrators can change enrollment status")
		}

	case TargetUser:
		if (op == OpRead || op == OpWrite) && owner {
			return nil
		}
	}

	return apperrors.NewForbiddenError("You do not have permission to perform this action")
}
