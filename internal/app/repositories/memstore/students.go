package memstore

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

type studentRepo struct{ v view }

func (d *data) deleteStudent(id uuid.UUID) {
	delete(d.students, id)
	for eid, e := range d.enrollments {
		if e.StudentID == id {
			delete(d.enrollments, eid)
		}
	}
}

// withUser copies s and attaches a copy of its user.
func (d *data) withUser(s *models.Student) *models.Student {
	cp := *s
	cp.Enrollments = nil
	if u, ok := d.users[s.UserID]; ok {
		uc := *u
		cp.User = &uc
	}
	return &cp
}

func (r *studentRepo) Create(_ context.Context, student *models.Student) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.users[student.UserID]; !ok {
			return apperrors.ErrUserNotFound
		}
		for _, other := range d.students {
			if other.StudentNumber == student.StudentNumber {
				return apperrors.ErrStudentNumberExists
			}
			if other.UserID == student.UserID {
				return apperrors.NewFieldError("user", "This user is already associated with another student profile")
			}
		}

		now := time.Now()
		if student.ID == uuid.Nil {
			student.ID = uuid.New()
		}
		if student.Status == "" {
			student.Status = models.StudentActive
		}
		if student.EnrollmentDate.IsZero() {
			student.EnrollmentDate = now
		}
		student.CreatedAt = now
		student.UpdatedAt = now

		cp := *student
		cp.User = nil
		cp.Enrollments = nil
		d.students[student.ID] = &cp
		return nil
	})
}

func (r *studentRepo) find(match func(s *models.Student) bool) (*models.Student, error) {
	var found *models.Student
	err := r.v.do(func(d *data) error {
		for _, s := range d.students {
			if match(s) {
				found = d.withUser(s)
				return nil
			}
		}
		return apperrors.ErrStudentNotFound
	})
	return found, err
}

func (r *studentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Student, error) {
	return r.find(func(s *models.Student) bool { return s.ID == id })
}

func (r *studentRepo) GetByUserID(_ context.Context, userID int64) (*models.Student, error) {
	return r.find(func(s *models.Student) bool { return s.UserID == userID })
}

func (r *studentRepo) LatestNumberWithPrefix(_ context.Context, prefix string) (string, error) {
	latest := ""
	sequence := regexp.MustCompile(models.StudentNumberSequencePattern(prefix))
	err := r.v.do(func(d *data) error {
		for _, s := range d.students {
			n := s.StudentNumber
			if !sequence.MatchString(n) {
				continue
			}
			if len(n) > len(latest) || (len(n) == len(latest) && n > latest) {
				latest = n
			}
		}
		return nil
	})
	return latest, err
}

func (r *studentRepo) NumberExists(_ context.Context, number string, excludeID uuid.UUID) (bool, error) {
	s, err := r.find(func(s *models.Student) bool { return s.StudentNumber == number && s.ID != excludeID })
	return s != nil, ignoreNotFound(err)
}

func (r *studentRepo) Update(_ context.Context, student *models.Student) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.students[student.ID]
		if !ok {
			return apperrors.ErrStudentNotFound
		}
		for _, other := range d.students {
			if other.ID != student.ID && other.StudentNumber == student.StudentNumber {
				return apperrors.ErrStudentNumberExists
			}
		}
		student.UpdatedAt = time.Now()
		cur.StudentNumber = student.StudentNumber
		cur.EnrollmentDate = student.EnrollmentDate
		cur.Status = student.Status
		cur.UpdatedAt = student.UpdatedAt
		return nil
	})
}

func (r *studentRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.students[id]; !ok {
			return apperrors.ErrStudentNotFound
		}
		d.deleteStudent(id)
		return nil
	})
}

func (d *data) studentMatches(s *models.Student, f repositories.StudentFilter) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.UserID != nil && s.UserID != *f.UserID {
		return false
	}
	if f.CourseID != nil {
		found := false
		for _, e := range d.enrollments {
			if e.StudentID == s.ID && e.CourseID == *f.CourseID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		u := d.users[s.UserID]
		fields := []string{s.StudentNumber}
		if u != nil {
			fields = append(fields, u.Username, u.FirstName, u.LastName, u.Email)
		}
		hit := false
		for _, v := range fields {
			if strings.Contains(strings.ToLower(v), term) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func compareStudents(field string) func(a, b *models.Student) int {
	return func(a, b *models.Student) int {
		switch field {
		case "enrollment_date":
			return a.EnrollmentDate.Compare(b.EnrollmentDate)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "username":
			return strings.Compare(a.User.Username, b.User.Username)
		case "last_name":
			return strings.Compare(a.User.LastName, b.User.LastName)
		default:
			return strings.Compare(a.StudentNumber, b.StudentNumber)
		}
	}
}

func (r *studentRepo) List(_ context.Context, filter repositories.StudentFilter) ([]*models.Student, int64, error) {
	out := make([]*models.Student, 0)
	err := r.v.do(func(d *data) error {
		for _, s := range d.students {
			if d.studentMatches(s, filter) {
				out = append(out, d.withUser(s))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	compare := compareStudents(filter.Ordering.Field)
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j])
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

func (r *studentRepo) ListByCourse(_ context.Context, courseID uuid.UUID, statuses []models.EnrollmentStatus) ([]*models.Student, error) {
	out := make([]*models.Student, 0)
	err := r.v.do(func(d *data) error {
		for _, e := range d.enrollments {
			if e.CourseID != courseID || !hasStatus(statuses, e.Status) {
				continue
			}
			if s, ok := d.students[e.StudentID]; ok {
				out = append(out, d.withUser(s))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StudentNumber < out[j].StudentNumber })
	return out, err
}

func hasStatus(list []models.EnrollmentStatus, s models.EnrollmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
