package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// CourseDetail is a course with its active roster
type CourseDetail struct {
	Course   *models.Course
	Enrolled int64
	Students []*models.Student
}

// CourseService defines the interface for catalog operations
type CourseService interface {
	ListCourses(ctx context.Context, actor authz.Actor, filter repositories.CourseFilter) ([]*models.Course, int64, map[uuid.UUID]int64, error)
	ListActive(ctx context.Context) ([]*models.Course, map[uuid.UUID]int64, error)
	GetCourse(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Course, int64, error)
	GetCourseDetail(ctx context.Context, actor authz.Actor, id uuid.UUID) (*CourseDetail, error)
	CreateCourse(ctx context.Context, actor authz.Actor, req *dto.CourseRequest) (*models.Course, error)
	ReplaceCourse(ctx context.Context, actor authz.Actor, id uuid.UUID, req *dto.CourseRequest) (*models.Course, int64, error)
	PatchCourse(ctx context.Context, actor authz.Actor, id uuid.UUID, req *dto.CoursePatchRequest) (*models.Course, int64, error)
	SetActive(ctx context.Context, actor authz.Actor, id uuid.UUID, active bool) (*models.Course, error)
	DeleteCourse(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	Roster(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]*models.Student, error)
}

type courseServiceImpl struct {
	store  repositories.Store
	policy *authz.Policy
	logger zerolog.Logger
}

// NewCourseService creates a new CourseService
func NewCourseService(store repositories.Store, policy *authz.Policy, logger zerolog.Logger) CourseService {
	return &courseServiceImpl{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

func courseIDs(courses []*models.Course) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids
}

func (s *courseServiceImpl) counts(ctx context.Context, repos *repositories.Repositories, courses []*models.Course) (map[uuid.UUID]int64, error) {
	if len(courses) == 0 {
		return map[uuid.UUID]int64{}, nil
	}
	counts, err := repos.EnrollmentRepository.CountActiveByCourses(ctx, courseIDs(courses))
	if err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return counts, nil
}

// ListCourses returns a page of the catalog. Non-admin callers only see active courses.
func (s *courseServiceImpl) ListCourses(ctx context.Context, actor authz.Actor, filter repositories.CourseFilter) ([]*models.Course, int64, map[uuid.UUID]int64, error) {
	if err := s.policy.Authorize(actor, authz.CourseTarget(), authz.OpRead); err != nil {
		return nil, 0, nil, err
	}
	if !actor.IsAdmin() {
		active := true
		filter.IsActive = &active
	}

	repos := s.store.Repos()
	courses, total, err := repos.CourseRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to list courses: %w", err)
	}
	counts, err := s.counts(ctx, repos, courses)
	if err != nil {
		return nil, 0, nil, err
	}
	return courses, total, counts, nil
}

// ListActive returns every active course ordered by name
func (s *courseServiceImpl) ListActive(ctx context.Context) ([]*models.Course, map[uuid.UUID]int64, error) {
	active := true
	repos := s.store.Repos()
	courses, _, err := repos.CourseRepository.List(ctx, repositories.CourseFilter{IsActive: &active})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list active courses: %w", err)
	}
	counts, err := s.counts(ctx, repos, courses)
	if err != nil {
		return nil, nil, err
	}
	return courses, counts, nil
}

// visibleCourse loads a course, hiding inactive ones from non-admins
func (s *courseServiceImpl) visibleCourse(ctx context.Context, repos *repositories.Repositories, actor authz.Actor, id uuid.UUID) (*models.Course, error) {
	if err := s.policy.Authorize(actor, authz.CourseTarget(), authz.OpRead); err != nil {
		return nil, err
	}
	course, err := repos.CourseRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !course.IsActive && !actor.IsAdmin() {
		return nil, apperrors.ErrCourseNotFound
	}
	return course, nil
}

// GetCourse returns a course with its active enrollment count
func (s *courseServiceImpl) GetCourse(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Course, int64, error) {
	repos := s.store.Repos()
	course, err := s.visibleCourse(ctx, repos, actor, id)
	if err != nil {
		return nil, 0, err
	}
	counts, err := s.counts(ctx, repos, []*models.Course{course})
	if err != nil {
		return nil, 0, err
	}
	return course, counts[course.ID], nil
}

// GetCourseDetail returns a course with the students actively enrolled in it
func (s *courseServiceImpl) GetCourseDetail(ctx context.Context, actor authz.Actor, id uuid.UUID) (*CourseDetail, error) {
	repos := s.store.Repos()
	course, err := s.visibleCourse(ctx, repos, actor, id)
	if err != nil {
		return nil, err
	}
	students, err := s.roster(ctx, repos, course.ID)
	if err != nil {
		return nil, err
	}
	return &CourseDetail{Course: course, Enrolled: int64(len(students)), Students: students}, nil
}

func (s *courseServiceImpl) roster(ctx context.Context, repos *repositories.Repositories, courseID uuid.UUID) ([]*models.Student, error) {
	students, err := repos.StudentRepository.ListByCourse(ctx, courseID, []models.EnrollmentStatus{models.EnrollmentEnrolled})
	if err != nil {
		return nil, fmt.Errorf("failed to list course students: %w", err)
	}
	if err := loadEnrollments(ctx, repos, students); err != nil {
		return nil, err
	}
	return students, nil
}

// validateCourse normalizes c and checks its fields and code uniqueness
func validateCourse(ctx context.Context, repos *repositories.Repositories, c *models.Course) error {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	exists, err := repos.CourseRepository.CodeExists(ctx, c.CourseCode, c.ID)
	if err != nil {
		return fmt.Errorf("error checking course code: %w", err)
	}
	if exists {
		return apperrors.NewFieldError("course_code", "Course with this code already exists")
	}
	return nil
}

// CreateCourse adds a course to the catalog
func (s *courseServiceImpl) CreateCourse(ctx context.Context, actor authz.Actor, req *dto.CourseRequest) (*models.Course, error) {
	if err := s.policy.Authorize(actor, authz.CourseTarget(), authz.OpWrite); err != nil {
		return nil, err
	}

	course := &models.Course{}
	req.Apply(course)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		if err := validateCourse(ctx, repos, course); err != nil {
			return err
		}
		if err := repos.CourseRepository.Create(ctx, course); err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("courseID", course.ID.String()).Str("courseCode", course.CourseCode).Msg("Course created")
	return course, nil
}

func (s *courseServiceImpl) update(ctx context.Context, actor authz.Actor, id uuid.UUID, apply func(c *models.Course)) (*models.Course, int64, error) {
	if err := s.policy.Authorize(actor, authz.CourseTarget(), authz.OpWrite); err != nil {
		return nil, 0, err
	}

	var course *models.Course
	var enrolled int64
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		c, err := repos.CourseRepository.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		apply(c)
		if err := validateCourse(ctx, repos, c); err != nil {
			return err
		}
		if err := repos.CourseRepository.Update(ctx, c); err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}
		counts, err := s.counts(ctx, repos, []*models.Course{c})
		if err != nil {
			return err
		}
		course, enrolled = c, counts[c.ID]
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info().Str("courseID", id.String()).Str("courseCode", course.CourseCode).Msg("Course updated")
	return course, enrolled, nil
}

// ReplaceCourse overwrites every editable field of a course
func (s *courseServiceImpl) ReplaceCourse(ctx context.Context, actor authz.Actor, id uuid.UUID, req *dto.CourseRequest) (*models.Course, int64, error) {
	return s.update(ctx, actor, id, req.Apply)
}

// PatchCourse updates the fields present in req
func (s *courseServiceImpl) PatchCourse(ctx context.Context, actor authz.Actor, id uuid.UUID, req *dto.CoursePatchRequest) (*models.Course, int64, error) {
	return s.update(ctx, actor, id, req.Apply)
}

// SetActive toggles whether a course accepts enrollments
func (s *courseServiceImpl) SetActive(ctx context.Context, actor authz.Actor, id uuid.UUID, active bool) (*models.Course, error) {
	course, _, err := s.update(ctx, actor, id, func(c *models.Course) { c.IsActive = active })
	return course, err
}

// DeleteCourse removes a course that has never had an enrollment
func (s *courseServiceImpl) DeleteCourse(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := s.policy.Authorize(actor, authz.CourseTarget(), authz.OpWrite); err != nil {
		return err
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		if _, err := repos.CourseRepository.GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := repos.EnrollmentRepository.CountByCourse(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count course enrollments: %w", err)
		}
		if n > 0 {
			return apperrors.ErrCourseHasEnrollment
		}
		return repos.CourseRepository.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("courseID", id.String()).Msg("Course deleted")
	return nil
}

// Roster returns the students actively enrolled in a course
func (s *courseServiceImpl) Roster(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]*models.Student, error) {
	repos := s.store.Repos()
	course, err := s.visibleCourse(ctx, repos, actor, id)
	if err != nil {
		return nil, err
	}
	return s.roster(ctx, repos, course.ID)
}
