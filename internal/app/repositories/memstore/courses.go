package memstore

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

type courseRepo struct{ v view }

func (r *courseRepo) Create(_ context.Context, course *models.Course) error {
	return r.v.do(func(d *data) error {
		for _, other := range d.courses {
			if other.CourseCode == course.CourseCode {
				return apperrors.ErrCourseCodeExists
			}
		}
		now := time.Now()
		if course.ID == uuid.Nil {
			course.ID = uuid.New()
		}
		course.CreatedAt = now
		course.UpdatedAt = now
		cp := *course
		d.courses[course.ID] = &cp
		return nil
	})
}

func (r *courseRepo) find(match func(c *models.Course) bool) (*models.Course, error) {
	var found *models.Course
	err := r.v.do(func(d *data) error {
		for _, c := range d.courses {
			if match(c) {
				cp := *c
				found = &cp
				return nil
			}
		}
		return apperrors.ErrCourseNotFound
	})
	return found, err
}

func (r *courseRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	return r.find(func(c *models.Course) bool { return c.ID == id })
}

func (r *courseRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return r.GetByID(ctx, id)
}

func (r *courseRepo) GetByCode(_ context.Context, code string) (*models.Course, error) {
	return r.find(func(c *models.Course) bool { return c.CourseCode == code })
}

func (r *courseRepo) CodeExists(_ context.Context, code string, excludeID uuid.UUID) (bool, error) {
	c, err := r.find(func(c *models.Course) bool { return c.CourseCode == code && c.ID != excludeID })
	return c != nil, ignoreNotFound(err)
}

func (r *courseRepo) Update(_ context.Context, course *models.Course) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.courses[course.ID]
		if !ok {
			return apperrors.ErrCourseNotFound
		}
		for _, other := range d.courses {
			if other.ID != course.ID && other.CourseCode == course.CourseCode {
				return apperrors.ErrCourseCodeExists
			}
		}
		course.UpdatedAt = time.Now()
		course.CreatedAt = cur.CreatedAt
		cp := *course
		d.courses[course.ID] = &cp
		return nil
	})
}

func (r *courseRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.courses[id]; !ok {
			return apperrors.ErrCourseNotFound
		}
		for _, e := range d.enrollments {
			if e.CourseID == id {
				return apperrors.ErrCourseHasEnrollment
			}
		}
		delete(d.courses, id)
		return nil
	})
}

func courseMatches(c *models.Course, f repositories.CourseFilter) bool {
	if f.IsActive != nil && c.IsActive != *f.IsActive {
		return false
	}
	if f.Duration != nil && c.CourseDuration != *f.Duration {
		return false
	}
	if f.Credits != nil && c.Credits != *f.Credits {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.CourseName), term) &&
			!strings.Contains(strings.ToLower(c.CourseCode), term) &&
			!strings.Contains(strings.ToLower(c.Description), term) {
			return false
		}
	}
	return true
}

func compareCourses(field string, a, b *models.Course) int {
	switch field {
	case "course_code":
		return strings.Compare(a.CourseCode, b.CourseCode)
	case "course_duration":
		return cmp.Compare(a.CourseDuration, b.CourseDuration)
	case "credits":
		return cmp.Compare(a.Credits, b.Credits)
	case "is_active":
		return cmp.Compare(boolInt(a.IsActive), boolInt(b.IsActive))
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return strings.Compare(a.CourseName, b.CourseName)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *courseRepo) List(_ context.Context, filter repositories.CourseFilter) ([]*models.Course, int64, error) {
	out := make([]*models.Course, 0)
	err := r.v.do(func(d *data) error {
		for _, c := range d.courses {
			if courseMatches(c, filter) {
				cp := *c
				out = append(out, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compareCourses(filter.Ordering.Field, out[i], out[j])
		if c == 0 {
			return out[i].ID.String() < out[j].ID.String()
		}
		if filter.Ordering.Desc {
			return c > 0
		}
		return c < 0
	})

	return paginate(out, filter.Page), int64(len(out)), nil
}
