package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

type enrollmentRepo struct{ v view }

// withCourse copies e and attaches a copy of its course.
func (d *data) withCourse(e *models.Enrollment) *models.Enrollment {
	cp := *e
	if c, ok := d.courses[e.CourseID]; ok {
		cc := *c
		cp.Course = &cc
	}
	return &cp
}

func (r *enrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.students[enrollment.StudentID]; !ok {
			return apperrors.ErrStudentNotFound
		}
		if _, ok := d.courses[enrollment.CourseID]; !ok {
			return apperrors.ErrCourseNotFound
		}
		for _, other := range d.enrollments {
			if other.StudentID == enrollment.StudentID && other.CourseID == enrollment.CourseID {
				return apperrors.ErrAlreadyEnrolled
			}
		}

		now := time.Now()
		if enrollment.ID == uuid.Nil {
			enrollment.ID = uuid.New()
		}
		enrollment.CreatedAt = now
		enrollment.UpdatedAt = now
		cp := *enrollment
		cp.Course = nil
		d.enrollments[enrollment.ID] = &cp
		return nil
	})
}

func (r *enrollmentRepo) find(match func(e *models.Enrollment) bool) (*models.Enrollment, error) {
	var found *models.Enrollment
	err := r.v.do(func(d *data) error {
		for _, e := range d.enrollments {
			if match(e) {
				found = d.withCourse(e)
				return nil
			}
		}
		return apperrors.ErrEnrollmentNotFound
	})
	return found, err
}

func (r *enrollmentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Enrollment, error) {
	return r.find(func(e *models.Enrollment) bool { return e.ID == id })
}

func (r *enrollmentRepo) GetByStudentAndCourse(_ context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error) {
	return r.find(func(e *models.Enrollment) bool { return e.StudentID == studentID && e.CourseID == courseID })
}

func (r *enrollmentRepo) IsEnrolled(_ context.Context, studentID, courseID uuid.UUID) (bool, error) {
	e, err := r.find(func(e *models.Enrollment) bool {
		return e.StudentID == studentID && e.CourseID == courseID && e.IsActive()
	})
	return e != nil, ignoreNotFound(err)
}

func (r *enrollmentRepo) Update(_ context.Context, enrollment *models.Enrollment) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.enrollments[enrollment.ID]
		if !ok {
			return apperrors.ErrEnrollmentNotFound
		}
		enrollment.UpdatedAt = time.Now()
		cur.EnrollmentDate = enrollment.EnrollmentDate
		cur.Status = enrollment.Status
		cur.Grade = enrollment.Grade
		cur.CompletionDate = enrollment.CompletionDate
		cur.CreditsEarned = enrollment.CreditsEarned
		cur.UpdatedAt = enrollment.UpdatedAt
		return nil
	})
}

func (r *enrollmentRepo) collect(match func(e *models.Enrollment) bool) ([]*models.Enrollment, error) {
	out := make([]*models.Enrollment, 0)
	err := r.v.do(func(d *data) error {
		for _, e := range d.enrollments {
			if match(e) {
				out = append(out, d.withCourse(e))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnrollmentDate.After(out[j].EnrollmentDate) })
	return out, err
}

func (r *enrollmentRepo) ListByStudent(_ context.Context, studentID uuid.UUID, status *models.EnrollmentStatus) ([]*models.Enrollment, error) {
	return r.collect(func(e *models.Enrollment) bool {
		return e.StudentID == studentID && (status == nil || e.Status == *status)
	})
}

func (r *enrollmentRepo) ListByStudentIDs(_ context.Context, studentIDs []uuid.UUID) ([]*models.Enrollment, error) {
	ids := make(map[uuid.UUID]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		ids[id] = struct{}{}
	}
	return r.collect(func(e *models.Enrollment) bool {
		_, ok := ids[e.StudentID]
		return ok
	})
}

func (r *enrollmentRepo) CountByCourse(_ context.Context, courseID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		for _, e := range d.enrollments {
			if e.CourseID == courseID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *enrollmentRepo) CountActiveByCourses(_ context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(courseIDs))
	want := make(map[uuid.UUID]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		want[id] = struct{}{}
	}
	err := r.v.do(func(d *data) error {
		for _, e := range d.enrollments {
			if _, ok := want[e.CourseID]; ok && e.IsActive() {
				counts[e.CourseID]++
			}
		}
		return nil
	})
	return counts, err
}
