// Package seed loads demonstration data: the admin account, a course catalog and sample students.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// Default admin credentials
const (
	AdminUsername = "admin"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"

	StudentPassword = "student123"
)

type courseSeed struct {
	Code        string
	Name        string
	Duration    int
	Credits     int
	Description string
}

var defaultCourses = []courseSeed{
	{"CS101", "Computer Science", 48, 4, "Foundations of programming, algorithms and data structures."},
	{"DS201", "Data Science", 36, 4, "Statistics, data wrangling and machine learning basics."},
	{"WD301", "Web Development", 24, 3, "HTML, CSS, JavaScript and server-side web applications."},
	{"CY401", "Cybersecurity", 42, 4, "Network security, cryptography and secure software design."},
	{"MAD501", "Mobile App Development", 30, 3, "Building native and cross-platform mobile applications."},
}

type studentSeed struct {
	Username  string
	FirstName string
	LastName  string
	Courses   []string
}

var defaultStudents = []studentSeed{
	{"john_doe", "John", "Doe", []string{"CS101", "WD301"}},
	{"jane_smith", "Jane", "Smith", []string{"DS201"}},
	{"mike_johnson", "Mike", "Johnson", []string{"CY401", "CS101"}},
	{"sarah_wilson", "Sarah", "Wilson", []string{"MAD501"}},
	{"david_brown", "David", "Brown", []string{"WD301", "DS201"}},
	{"emily_davis", "Emily", "Davis", []string{"CS101"}},
	{"chris_miller", "Chris", "Miller", []string{"CY401"}},
	{"lisa_garcia", "Lisa", "Garcia", []string{"MAD501", "WD301", "DS201"}},
}

// Result summarizes a seeding run
type Result struct {
	Admin           *models.User
	CoursesCreated  int
	StudentsCreated int
	Enrollments     int
}

// Seeder writes the demonstration data through the service layer
type Seeder struct {
	store    repositories.Store
	services *services.Services
	logger   zerolog.Logger
}

// NewSeeder creates a new Seeder
func NewSeeder(store repositories.Store, svc *services.Services, logger zerolog.Logger) *Seeder {
	return &Seeder{store: store, services: svc, logger: logger}
}

// EnsureAdmin returns the existing admin or creates the default one
func (s *Seeder) EnsureAdmin(ctx context.Context) (*models.User, bool, error) {
	admins, err := s.services.UserService.ListAdmins(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(admins) > 0 {
		return admins[0], false, nil
	}

	admin, err := s.services.UserService.CreateUser(ctx, services.NewUserInput{
		Username:    AdminUsername,
		Email:       AdminEmail,
		Password:    AdminPassword,
		FirstName:   "System",
		LastName:    "Administrator",
		Role:        models.RoleAdmin,
		IsSuperuser: true,
		IsStaff:     true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.Info().Str("username", admin.Username).Msg("Default admin created")
	return admin, true, nil
}

// Clear removes every student account and every course
func (s *Seeder) Clear(ctx context.Context) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		role := models.RoleStudent
		users, err := repos.UserRepository.List(ctx, repositories.UserFilter{Role: &role})
		if err != nil {
			return fmt.Errorf("failed to list student users: %w", err)
		}
		for _, u := range users {
			if err := repos.UserRepository.Delete(ctx, u.ID); err != nil {
				return fmt.Errorf("failed to delete user %s: %w", u.Username, err)
			}
		}

		courses, _, err := repos.CourseRepository.List(ctx, repositories.CourseFilter{})
		if err != nil {
			return fmt.Errorf("failed to list courses: %w", err)
		}
		for _, c := range courses {
			if err := repos.CourseRepository.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to delete course %s: %w", c.CourseCode, err)
			}
		}

		s.logger.Info().Int("users", len(users)).Int("courses", len(courses)).Msg("Existing sample data cleared")
		return nil
	})
}

// Run seeds the admin, the course catalog and the sample students. Existing rows are reused.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	admin, _, err := s.EnsureAdmin(ctx)
	if err != nil {
		return nil, err
	}
	actor := authz.ActorFromUser(admin)
	res := &Result{Admin: admin}

	courses := make(map[string]*models.Course, len(defaultCourses))
	for _, cs := range defaultCourses {
		course, created, err := s.ensureCourse(ctx, actor, cs)
		if err != nil {
			return res, err
		}
		if created {
			res.CoursesCreated++
		}
		courses[cs.Code] = course
	}

	for _, ss := range defaultStudents {
		student, created, err := s.ensureStudent(ctx, actor, ss)
		if err != nil {
			return res, err
		}
		if created {
			res.StudentsCreated++
		}
		for _, code := range ss.Courses {
			if _, err := s.services.EnrollmentService.EnsureEnrolled(ctx, student.ID, courses[code].ID); err != nil {
				return res, fmt.Errorf("failed to enroll %s in %s: %w", ss.Username, code, err)
			}
			res.Enrollments++
		}
	}

	s.logger.Info().
		Int("courses", res.CoursesCreated).
		Int("students", res.StudentsCreated).
		Int("enrollments", res.Enrollments).
		Msg("Sample data seeded")
	return res, nil
}

func (s *Seeder) ensureCourse(ctx context.Context, actor authz.Actor, cs courseSeed) (*models.Course, bool, error) {
	existing, err := s.store.Repos().CourseRepository.GetByCode(ctx, cs.Code)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrCourseNotFound) {
		return nil, false, fmt.Errorf("failed to look up course %s: %w", cs.Code, err)
	}

	credits := cs.Credits
	course, err := s.services.CourseService.CreateCourse(ctx, actor, &dto.CourseRequest{
		CourseName:     cs.Name,
		CourseCode:     cs.Code,
		CourseDuration: cs.Duration,
		Description:    cs.Description,
		Credits:        &credits,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create course %s: %w", cs.Code, err)
	}
	return course, true, nil
}

func (s *Seeder) ensureStudent(ctx context.Context, actor authz.Actor, ss studentSeed) (*models.Student, bool, error) {
	repos := s.store.Repos()
	user, err := repos.UserRepository.GetByUsername(ctx, ss.Username)
	switch {
	case err == nil:
		student, created, err := s.services.StudentService.EnsureProfile(ctx, user.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to ensure profile for %s: %w", ss.Username, err)
		}
		return student, created, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return nil, false, fmt.Errorf("failed to look up user %s: %w", ss.Username, err)
	}

	detail, err := s.services.StudentService.CreateWithUser(ctx, actor, &dto.CreateStudentRequest{
		Username:  ss.Username,
		Email:     ss.Username + "@example.com",
		Password:  StudentPassword,
		FirstName: ss.FirstName,
		LastName:  ss.LastName,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create student %s: %w", ss.Username, err)
	}
	return detail.Student, true, nil
}
