package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// EnrollmentResult is the ledger entry produced by an enroll or unenroll call
type EnrollmentResult struct {
	Student    *models.Student
	Course     *models.Course
	Enrollment *models.Enrollment
}

// EnrollmentService defines the interface for ledger operations
type EnrollmentService interface {
	Enroll(ctx context.Context, actor authz.Actor, studentID, courseID uuid.UUID) (*EnrollmentResult, error)
	Unenroll(ctx context.Context, actor authz.Actor, studentID, courseID uuid.UUID) (*EnrollmentResult, error)
	IsEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	EnsureEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error)
	ResolveStudent(ctx context.Context, actor authz.Actor, studentID *uuid.UUID) (uuid.UUID, error)
	Complete(ctx context.Context, actor authz.Actor, enrollmentID uuid.UUID, grade string) (*models.Enrollment, error)
	ChangeStatus(ctx context.Context, actor authz.Actor, enrollmentID uuid.UUID, status, grade string) (*models.Enrollment, error)
}

type enrollmentServiceImpl struct {
	store  repositories.Store
	policy *authz.Policy
	now    func() time.Time
	logger zerolog.Logger
}

// NewEnrollmentService creates a new EnrollmentService
func NewEnrollmentService(store repositories.Store, policy *authz.Policy, logger zerolog.Logger) EnrollmentService {
	return &enrollmentServiceImpl{
		store:  store,
		policy: policy,
		now:    time.Now,
		logger: logger,
	}
}

// activeCourse loads a course that accepts enrollments
func activeCourse(ctx context.Context, repos *repositories.Repositories, courseID uuid.UUID) (*models.Course, error) {
	course, err := repos.CourseRepository.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCourseNotFound) {
			return nil, apperrors.NewResourceNotFoundError("Course not found or is not active")
		}
		return nil, err
	}
	if !course.IsActive {
		return nil, apperrors.NewResourceNotFoundError("Course not found or is not active")
	}
	return course, nil
}

// Enroll adds the student to the course. A pair that is already active is rejected.
func (s *enrollmentServiceImpl) Enroll(ctx context.Context, actor authz.Actor, studentID, courseID uuid.UUID) (*EnrollmentResult, error) {
	var result *EnrollmentResult
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByID(ctx, studentID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpEnroll); err != nil {
			return err
		}
		course, err := activeCourse(ctx, repos, courseID)
		if err != nil {
			return err
		}

		enrolled, err := repos.EnrollmentRepository.IsEnrolled(ctx, student.ID, course.ID)
		if err != nil {
			return fmt.Errorf("failed to check enrollment: %w", err)
		}
		if enrolled {
			return apperrors.ErrAlreadyEnrolled
		}

		enrollment, err := enrollInCourse(ctx, repos, student, course, s.now())
		if err != nil {
			return err
		}
		result = &EnrollmentResult{Student: student, Course: course, Enrollment: enrollment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("studentID", studentID.String()).
		Str("courseCode", result.Course.CourseCode).
		Str("enrollmentID", result.Enrollment.ID.String()).
		Msg("Student enrolled")
	return result, nil
}

// Unenroll withdraws the student's active entry for the course
func (s *enrollmentServiceImpl) Unenroll(ctx context.Context, actor authz.Actor, studentID, courseID uuid.UUID) (*EnrollmentResult, error) {
	var result *EnrollmentResult
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByID(ctx, studentID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpEnroll); err != nil {
			return err
		}
		course, err := repos.CourseRepository.GetByID(ctx, courseID)
		if err != nil {
			return err
		}

		enrollment, err := unenrollFromCourse(ctx, repos, student, course, s.now())
		if err != nil {
			return err
		}
		result = &EnrollmentResult{Student: student, Course: course, Enrollment: enrollment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("studentID", studentID.String()).
		Str("courseCode", result.Course.CourseCode).
		Msg("Student unenrolled")
	return result, nil
}

// IsEnrolled reports whether the pair has an active entry
func (s *enrollmentServiceImpl) IsEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	return s.store.Repos().EnrollmentRepository.IsEnrolled(ctx, studentID, courseID)
}

// EnsureEnrolled is the idempotent enroll used by seeding and operator tooling
func (s *enrollmentServiceImpl) EnsureEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByID(ctx, studentID)
		if err != nil {
			return err
		}
		course, err := repos.CourseRepository.GetByID(ctx, courseID)
		if err != nil {
			return err
		}
		enrollment, err = enrollInCourse(ctx, repos, student, course, s.now())
		return err
	})
	return enrollment, err
}

// ResolveStudent picks the student a course-level enroll call acts on. Students act on
// their own profile unless they name it explicitly; administrators must name one.
func (s *enrollmentServiceImpl) ResolveStudent(ctx context.Context, actor authz.Actor, studentID *uuid.UUID) (uuid.UUID, error) {
	if studentID != nil && *studentID != uuid.Nil {
		return *studentID, nil
	}
	if actor.IsAdmin() {
		return uuid.Nil, apperrors.NewFieldError("student_id", "student_id is required for admin users")
	}

	student, err := s.store.Repos().StudentRepository.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			return uuid.Nil, apperrors.ErrStudentProfileMissing
		}
		return uuid.Nil, err
	}
	return student.ID, nil
}

// Complete marks an entry completed with an optional grade
func (s *enrollmentServiceImpl) Complete(ctx context.Context, actor authz.Actor, enrollmentID uuid.UUID, grade string) (*models.Enrollment, error) {
	g, err := models.ParseGrade(grade)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, enrollmentID, func(e *models.Enrollment, credits int) error {
		e.Complete(g, credits, s.now())
		return nil
	})
}

// ChangeStatus applies an administrative status transition
func (s *enrollmentServiceImpl) ChangeStatus(ctx context.Context, actor authz.Actor, enrollmentID uuid.UUID, status, grade string) (*models.Enrollment, error) {
	g, err := models.ParseGrade(grade)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, enrollmentID, func(e *models.Enrollment, credits int) error {
		return e.Transition(models.EnrollmentStatus(status), g, credits, s.now())
	})
}

func (s *enrollmentServiceImpl) mutate(ctx context.Context, actor authz.Actor, enrollmentID uuid.UUID, apply func(e *models.Enrollment, credits int) error) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		e, err := repos.EnrollmentRepository.GetByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		student, err := repos.StudentRepository.GetByID(ctx, e.StudentID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, authz.EnrollmentTarget(student), authz.OpGrade); err != nil {
			return err
		}

		credits := 0
		if e.Course != nil {
			credits = e.Course.Credits
		}
		if err := apply(e, credits); err != nil {
			return err
		}
		if err := repos.EnrollmentRepository.Update(ctx, e); err != nil {
			return fmt.Errorf("failed to update enrollment: %w", err)
		}
		enrollment = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("enrollmentID", enrollmentID.String()).Str("status", string(enrollment.Status)).Msg("Enrollment status changed")
	return enrollment, nil
}
