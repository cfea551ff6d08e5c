package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

// maxNumberAttempts bounds the retries of a transaction that lost a student number race
const maxNumberAttempts = 5

// enrollInCourse is the idempotent ledger write. An existing inactive entry is
// reactivated in place, an active one is returned unchanged, otherwise a new entry is created.
func enrollInCourse(ctx context.Context, repos *repositories.Repositories, student *models.Student, course *models.Course, now time.Time) (*models.Enrollment, error) {
	existing, err := repos.EnrollmentRepository.GetByStudentAndCourse(ctx, student.ID, course.ID)
	switch {
	case err == nil:
		if existing.Reactivate(now) {
			if err := repos.EnrollmentRepository.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("failed to reactivate enrollment: %w", err)
			}
		}
		existing.Course = course
		return existing, nil
	case !errors.Is(err, apperrors.ErrEnrollmentNotFound):
		return nil, fmt.Errorf("failed to look up enrollment: %w", err)
	}

	enrollment := models.NewEnrollment(student.ID, course.ID, now)
	if err := repos.EnrollmentRepository.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	enrollment.Course = course
	return enrollment, nil
}

// unenrollFromCourse withdraws the active entry for the pair
func unenrollFromCourse(ctx context.Context, repos *repositories.Repositories, student *models.Student, course *models.Course, now time.Time) (*models.Enrollment, error) {
	existing, err := repos.EnrollmentRepository.GetByStudentAndCourse(ctx, student.ID, course.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			return nil, apperrors.ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to look up enrollment: %w", err)
	}
	if !existing.IsActive() {
		return nil, apperrors.ErrNotEnrolled
	}

	existing.Withdraw(now)
	if err := repos.EnrollmentRepository.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to withdraw enrollment: %w", err)
	}
	existing.Course = course
	return existing, nil
}

// assignStudentNumber creates the profile row with the next number of the year.
// The advisory lock serializes concurrent generators within the transaction.
func assignStudentNumber(ctx context.Context, repos *repositories.Repositories, student *models.Student, now time.Time) error {
	if err := repos.LockRepository.AcquireXactLock(ctx, repositories.LockStudentNumber); err != nil {
		return fmt.Errorf("failed to acquire student number lock: %w", err)
	}

	year := now.Year()
	latest, err := repos.StudentRepository.LatestNumberWithPrefix(ctx, models.StudentNumberYearPrefix(year))
	if err != nil {
		return fmt.Errorf("failed to read latest student number: %w", err)
	}
	student.StudentNumber = models.NextStudentNumber(year, latest)

	if err := repos.StudentRepository.Create(ctx, student); err != nil {
		return fmt.Errorf("failed to create student profile: %w", err)
	}
	return nil
}

// withNumberRetry reruns fn in a fresh transaction when it failed on a duplicate student number
func withNumberRetry(ctx context.Context, store repositories.Store, fn func(ctx context.Context, repos *repositories.Repositories) error) error {
	var err error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		err = store.WithTransaction(ctx, fn)
		if !errors.Is(err, apperrors.ErrStudentNumberExists) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("could not assign a unique student number after %d attempts: %w", maxNumberAttempts, err)
}

// loadEnrollments attaches each student's ledger entries, with courses, in one query
func loadEnrollments(ctx context.Context, repos *repositories.Repositories, students []*models.Student) error {
	if len(students) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(students))
	byID := make(map[uuid.UUID]*models.Student, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
		byID[s.ID] = s
		s.Enrollments = make([]models.Enrollment, 0)
	}

	list, err := repos.EnrollmentRepository.ListByStudentIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load enrollments: %w", err)
	}
	for _, e := range list {
		if s, ok := byID[e.StudentID]; ok {
			s.Enrollments = append(s.Enrollments, *e)
		}
	}
	return nil
}

// activeCourseCounts returns the active enrollment count of every course a student is active in
func activeCourseCounts(ctx context.Context, repos *repositories.Repositories, students ...*models.Student) (map[uuid.UUID]int64, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, s := range students {
		for _, c := range s.ActiveCourses() {
			if _, ok := seen[c.ID]; !ok {
				seen[c.ID] = struct{}{}
				ids = append(ids, c.ID)
			}
		}
	}
	if len(ids) == 0 {
		return map[uuid.UUID]int64{}, nil
	}
	return repos.EnrollmentRepository.CountActiveByCourses(ctx, ids)
}
