package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// StudentDetail is a student with its ledger loaded plus the active enrollment
// count of each of its active courses
type StudentDetail struct {
	Student      *models.Student
	CourseCounts map[uuid.UUID]int64
}

// StudentService defines the interface for student profile operations
type StudentService interface {
	CreateStudentProfileTx(ctx context.Context, repos *repositories.Repositories, user *models.User) (*models.Student, error)
	CreateWithUser(ctx context.Context, actor authz.Actor, req *dto.CreateStudentRequest) (*StudentDetail, error)
	ListStudents(ctx context.Context, actor authz.Actor, filter repositories.StudentFilter) ([]*models.Student, int64, error)
	ListActive(ctx context.Context, actor authz.Actor) ([]*StudentDetail, error)
	ListByCourse(ctx context.Context, actor authz.Actor, courseID uuid.UUID) ([]*models.Student, error)
	GetStudent(ctx context.Context, actor authz.Actor, id uuid.UUID) (*StudentDetail, error)
	MyProfile(ctx context.Context, actor authz.Actor) (detail *StudentDetail, created bool, err error)
	EnsureProfile(ctx context.Context, userID int64) (student *models.Student, created bool, err error)
	UpdateStudent(ctx context.Context, actor authz.Actor, id uuid.UUID, req *dto.UpdateStudentRequest) (*StudentDetail, error)
	UpdateMyProfile(ctx context.Context, actor authz.Actor, req *dto.UpdateStudentRequest) (*StudentDetail, error)
	ChangeStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, status string) (*StudentDetail, error)
	DeleteStudent(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	ListEnrollments(ctx context.Context, actor authz.Actor, id uuid.UUID, status string) ([]*models.Enrollment, error)
	BackfillProfiles(ctx context.Context) ([]*models.Student, error)
}

type studentServiceImpl struct {
	store  repositories.Store
	users  UserService
	policy *authz.Policy
	now    func() time.Time
	logger zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(store repositories.Store, users UserService, policy *authz.Policy, logger zerolog.Logger) StudentService {
	return &studentServiceImpl{
		store:  store,
		users:  users,
		policy: policy,
		now:    time.Now,
		logger: logger,
	}
}

// CreateStudentProfileTx creates the profile of a student-role user inside the caller's transaction
func (s *studentServiceImpl) CreateStudentProfileTx(ctx context.Context, repos *repositories.Repositories, user *models.User) (*models.Student, error) {
	if !user.IsStudent() {
		return nil, apperrors.NewFieldError("user", "Selected user must have 'student' role")
	}

	now := s.now()
	student := &models.Student{
		UserID:         user.ID,
		EnrollmentDate: now,
		Status:         models.StudentActive,
	}
	if err := assignStudentNumber(ctx, repos, student, now); err != nil {
		return nil, err
	}
	student.User = user

	s.logger.Info().Str("studentID", student.ID.String()).Str("studentNumber", student.StudentNumber).Int64("userID", user.ID).Msg("Student profile created")
	return student, nil
}

// CreateWithUser creates a student user, its profile and an optional first enrollment in one transaction
func (s *studentServiceImpl) CreateWithUser(ctx context.Context, actor authz.Actor, req *dto.CreateStudentRequest) (*StudentDetail, error) {
	if err := s.policy.Authorize(actor, authz.UserTarget(0), authz.OpManageUsers); err != nil {
		return nil, err
	}

	errs := apperrors.FieldErrors{}
	dob, err := dto.ParseDate(req.DateOfBirth)
	if err != nil {
		errs.Add("date_of_birth", "Date has wrong format. Use YYYY-MM-DD.")
	}
	enrolledOn, err := dto.ParseDate(req.EnrollmentDate)
	if err != nil {
		errs.Add("enrollment_date", "Date has wrong format. Use YYYY-MM-DD.")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var student *models.Student
	err = withNumberRetry(ctx, s.store, func(ctx context.Context, repos *repositories.Repositories) error {
		var course *models.Course
		if req.Course != nil {
			c, err := repos.CourseRepository.GetByID(ctx, *req.Course)
			if err != nil || !c.IsActive {
				if err != nil && !errors.Is(err, apperrors.ErrCourseNotFound) {
					return err
				}
				return apperrors.NewFieldError("course", "Invalid pk \""+req.Course.String()+"\" - object does not exist.")
			}
			course = c
		}

		user, err := s.users.CreateUserTx(ctx, repos, NewUserInput{
			Username:    req.Username,
			Email:       req.Email,
			Password:    req.Password,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Role:        models.RoleStudent,
			Phone:       req.PhoneNumber,
			DateOfBirth: dob,
			Address:     req.Address,
		})
		if err != nil {
			return err
		}

		student, err = s.CreateStudentProfileTx(ctx, repos, user)
		if err != nil {
			return err
		}
		if enrolledOn != nil {
			student.EnrollmentDate = *enrolledOn
			if err := repos.StudentRepository.Update(ctx, student); err != nil {
				return fmt.Errorf("failed to set enrollment date: %w", err)
			}
		}

		if course != nil {
			if _, err := enrollInCourse(ctx, repos, student, course, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.detail(ctx, s.store.Repos(), student.ID)
}

// detail loads a student with its ledger and course counts
func (s *studentServiceImpl) detail(ctx context.Context, repos *repositories.Repositories, id uuid.UUID) (*StudentDetail, error) {
	student, err := repos.StudentRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detailOf(ctx, repos, student)
}

func (s *studentServiceImpl) detailOf(ctx context.Context, repos *repositories.Repositories, student *models.Student) (*StudentDetail, error) {
	if err := loadEnrollments(ctx, repos, []*models.Student{student}); err != nil {
		return nil, err
	}
	counts, err := activeCourseCounts(ctx, repos, student)
	if err != nil {
		return nil, fmt.Errorf("failed to count course enrollments: %w", err)
	}
	return &StudentDetail{Student: student, CourseCounts: counts}, nil
}

// ListStudents returns a page of students. Non-admin callers only ever see their own profile.
func (s *studentServiceImpl) ListStudents(ctx context.Context, actor authz.Actor, filter repositories.StudentFilter) ([]*models.Student, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.NewFieldError("status", "Select a valid choice. "+string(filter.Status)+" is not one of the available choices.")
	}
	if !actor.IsAdmin() {
		filter.UserID = &actor.UserID
	}

	repos := s.store.Repos()
	students, total, err := repos.StudentRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}
	if err := loadEnrollments(ctx, repos, students); err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// ListActive returns students with status active, restricted to the caller for non-admins
func (s *studentServiceImpl) ListActive(ctx context.Context, actor authz.Actor) ([]*StudentDetail, error) {
	filter := repositories.StudentFilter{Status: models.StudentActive}
	if !actor.IsAdmin() {
		filter.UserID = &actor.UserID
	}

	repos := s.store.Repos()
	students, _, err := repos.StudentRepository.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list active students: %w", err)
	}
	if err := loadEnrollments(ctx, repos, students); err != nil {
		return nil, err
	}
	counts, err := activeCourseCounts(ctx, repos, students...)
	if err != nil {
		return nil, fmt.Errorf("failed to count course enrollments: %w", err)
	}

	out := make([]*StudentDetail, 0, len(students))
	for _, st := range students {
		out = append(out, &StudentDetail{Student: st, CourseCounts: counts})
	}
	return out, nil
}

// ListByCourse returns students with an enrolled or completed entry for the course
func (s *studentServiceImpl) ListByCourse(ctx context.Context, actor authz.Actor, courseID uuid.UUID) ([]*models.Student, error) {
	repos := s.store.Repos()
	students, err := repos.StudentRepository.ListByCourse(ctx, courseID, []models.EnrollmentStatus{models.EnrollmentEnrolled, models.EnrollmentCompleted})
	if err != nil {
		return nil, fmt.Errorf("failed to list students by course: %w", err)
	}

	if !actor.IsAdmin() {
		own := make([]*models.Student, 0, 1)
		for _, st := range students {
			if st.UserID == actor.UserID {
				own = append(own, st)
			}
		}
		students = own
	}

	if err := loadEnrollments(ctx, repos, students); err != nil {
		return nil, err
	}
	return students, nil
}

// GetStudent returns a student the caller may read
func (s *studentServiceImpl) GetStudent(ctx context.Context, actor authz.Actor, id uuid.UUID) (*StudentDetail, error) {
	repos := s.store.Repos()
	student, err := repos.StudentRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpRead); err != nil {
		return nil, err
	}
	return s.detailOf(ctx, repos, student)
}

// MyProfile returns the caller's profile, creating it on first access for student-role users
func (s *studentServiceImpl) MyProfile(ctx context.Context, actor authz.Actor) (*StudentDetail, bool, error) {
	repos := s.store.Repos()
	student, err := repos.StudentRepository.GetByUserID(ctx, actor.UserID)
	if err == nil {
		detail, err := s.detailOf(ctx, repos, student)
		return detail, false, err
	}
	if !errors.Is(err, apperrors.ErrStudentNotFound) {
		return nil, false, err
	}
	if !actor.IsStudent() {
		return nil, false, apperrors.ErrStudentProfileMissing
	}

	student, created, err := s.EnsureProfile(ctx, actor.UserID)
	if err != nil {
		return nil, false, err
	}

	detail, err := s.detail(ctx, repos, student.ID)
	return detail, created, err
}

// EnsureProfile returns the profile of a student-role user, creating it with a fresh
// student number when missing. created is false when another writer got there first.
func (s *studentServiceImpl) EnsureProfile(ctx context.Context, userID int64) (*models.Student, bool, error) {
	var student *models.Student
	var created bool
	err := withNumberRetry(ctx, s.store, func(ctx context.Context, repos *repositories.Repositories) error {
		student, created = nil, false
		user, err := repos.UserRepository.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		existing, err := repos.StudentRepository.GetByUserID(ctx, user.ID)
		switch {
		case err == nil:
			student = existing
			return nil
		case !errors.Is(err, apperrors.ErrStudentNotFound):
			return fmt.Errorf("failed to look up student profile: %w", err)
		}
		if !user.IsStudent() {
			return apperrors.ErrStudentProfileMissing
		}
		student, err = s.CreateStudentProfileTx(ctx, repos, user)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return student, created, nil
}

// UpdateStudent applies req to a student the caller may write. Student number and
// enrollment date are reserved to administrators.
func (s *studentServiceImpl) UpdateStudent(ctx context.Context, actor authz.Actor, id uuid.UUID, req *dto.UpdateStudentRequest) (*StudentDetail, error) {
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return s.applyUpdate(ctx, repos, actor, student, req)
	})
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, s.store.Repos(), id)
}

// UpdateMyProfile applies req to the caller's own profile
func (s *studentServiceImpl) UpdateMyProfile(ctx context.Context, actor authz.Actor, req *dto.UpdateStudentRequest) (*StudentDetail, error) {
	var id uuid.UUID
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrStudentNotFound) {
				return apperrors.ErrStudentProfileMissing
			}
			return err
		}
		id = student.ID
		return s.applyUpdate(ctx, repos, actor, student, req)
	})
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, s.store.Repos(), id)
}

func (s *studentServiceImpl) applyUpdate(ctx context.Context, repos *repositories.Repositories, actor authz.Actor, student *models.Student, req *dto.UpdateStudentRequest) error {
	if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpWrite); err != nil {
		return err
	}
	if (req.StudentNumber != nil || req.EnrollmentDate != nil) && !actor.IsAdmin() {
		return apperrors.NewForbiddenError("Only administrators can change the student number or enrollment date")
	}

	errs := apperrors.FieldErrors{}
	if req.StudentNumber != nil {
		number := strings.TrimSpace(*req.StudentNumber)
		if number == "" {
			errs.Add("student_number", "This field may not be blank.")
		} else if !models.ValidStudentNumber(number) {
			errs.Add("student_number", "Enter a valid student number in the format STU<year><sequence>, e.g. STU20250001.")
		} else {
			exists, err := repos.StudentRepository.NumberExists(ctx, number, student.ID)
			if err != nil {
				return fmt.Errorf("error checking student number: %w", err)
			}
			if exists {
				errs.Add("student_number", "Student with this number already exists")
			}
			student.StudentNumber = number
		}
	}
	if req.EnrollmentDate != nil {
		d, err := dto.ParseDate(req.EnrollmentDate)
		if err != nil || d == nil {
			errs.Add("enrollment_date", "Date has wrong format. Use YYYY-MM-DD.")
		} else {
			student.EnrollmentDate = *d
		}
	}
	if req.Status != nil {
		status := models.StudentStatus(*req.Status)
		if !status.Valid() {
			errs.Add("status", "\""+*req.Status+"\" is not a valid choice.")
		}
		student.Status = status
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if err := repos.StudentRepository.Update(ctx, student); err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}

	if req.FirstName != nil || req.LastName != nil || req.Phone != nil || req.Address != nil {
		user, err := repos.UserRepository.GetByID(ctx, student.UserID)
		if err != nil {
			return err
		}
		if req.FirstName != nil {
			user.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			user.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.Phone != nil {
			user.Phone = *req.Phone
		}
		if req.Address != nil {
			user.Address = *req.Address
		}
		if err := repos.UserRepository.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update student user: %w", err)
		}
	}
	return nil
}

// ChangeStatus sets the institutional status of a student
func (s *studentServiceImpl) ChangeStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, status string) (*StudentDetail, error) {
	newStatus := models.StudentStatus(status)
	if !newStatus.Valid() {
		return nil, apperrors.NewFieldError("status", "Invalid status")
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpWrite); err != nil {
			return err
		}
		student.Status = newStatus
		return repos.StudentRepository.Update(ctx, student)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("studentID", id.String()).Str("status", status).Msg("Student status changed")
	return s.detail(ctx, s.store.Repos(), id)
}

// DeleteStudent removes the student's user, which cascades to the profile and its ledger
func (s *studentServiceImpl) DeleteStudent(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		student, err := repos.StudentRepository.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpManageUsers); err != nil {
			return err
		}
		if err := repos.StudentRepository.Delete(ctx, student.ID); err != nil {
			return fmt.Errorf("failed to delete student: %w", err)
		}
		if err := repos.UserRepository.Delete(ctx, student.UserID); err != nil {
			return fmt.Errorf("failed to delete student user: %w", err)
		}
		s.logger.Info().Str("studentID", id.String()).Int64("userID", student.UserID).Msg("Student deleted")
		return nil
	})
}

// ListEnrollments returns the student's ledger, newest first, optionally filtered by status
func (s *studentServiceImpl) ListEnrollments(ctx context.Context, actor authz.Actor, id uuid.UUID, status string) ([]*models.Enrollment, error) {
	repos := s.store.Repos()
	student, err := repos.StudentRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, authz.StudentTarget(student), authz.OpRead); err != nil {
		return nil, err
	}

	var filter *models.EnrollmentStatus
	if status != "" {
		st := models.EnrollmentStatus(status)
		if !st.Valid() {
			return nil, apperrors.NewFieldError("status", "\""+status+"\" is not a valid choice.")
		}
		filter = &st
	}
	return repos.EnrollmentRepository.ListByStudent(ctx, student.ID, filter)
}

// BackfillProfiles creates missing profiles for student-role users
func (s *studentServiceImpl) BackfillProfiles(ctx context.Context) ([]*models.Student, error) {
	role := models.RoleStudent
	users, err := s.store.Repos().UserRepository.List(ctx, repositories.UserFilter{Role: &role})
	if err != nil {
		return nil, fmt.Errorf("failed to list student users: %w", err)
	}

	created := make([]*models.Student, 0)
	for _, u := range users {
		student, ok, err := s.EnsureProfile(ctx, u.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("username", u.Username).Msg("Failed to create student profile")
			continue
		}
		if ok {
			created = append(created, student)
		}
	}
	return created, nil
}
