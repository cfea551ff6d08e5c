package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/dberrors"
	"github.com/yigit/scms/internal/pkg/logger"
)

const constraintEnrollmentPair = "enrollments_student_id_course_id_key"

var enrollmentWithCourseColumns = []string{
	"e.id", "e.student_id", "e.course_id", "e.enrollment_date", "e.status", "e.grade",
	"e.completion_date", "e.credits_earned", "e.created_at", "e.updated_at",
	"c.id", "c.course_name", "c.course_code", "c.course_duration", "c.description", "c.credits",
	"c.is_active", "c.created_at", "c.updated_at",
}

// EnrollmentRepository handles ledger database operations
type EnrollmentRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewEnrollmentRepository creates a new EnrollmentRepository
func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{
		db: db,
		sb: newBuilder(),
	}
}

func scanEnrollmentWithCourse(row pgx.Row) (*models.Enrollment, error) {
	var e models.Enrollment
	var c models.Course
	var status string
	var grade *string
	err := row.Scan(
		&e.ID, &e.StudentID, &e.CourseID, &e.EnrollmentDate, &status, &grade,
		&e.CompletionDate, &e.CreditsEarned, &e.CreatedAt, &e.UpdatedAt,
		&c.ID, &c.CourseName, &c.CourseCode, &c.CourseDuration, &c.Description, &c.Credits,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = models.EnrollmentStatus(status)
	if grade != nil {
		g := models.Grade(*grade)
		e.Grade = &g
	}
	e.Course = &c
	return &e, nil
}

func gradeValue(g *models.Grade) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

func (r *EnrollmentRepository) selectWithCourse() squirrel.SelectBuilder {
	return r.sb.Select(enrollmentWithCourseColumns...).
		From("enrollments e").
		Join("courses c ON c.id = e.course_id")
}

// Create inserts a ledger entry
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now()
	if enrollment.ID == uuid.Nil {
		enrollment.ID = uuid.New()
	}

	sql, args, err := r.sb.Insert("enrollments").
		Columns("id", "student_id", "course_id", "enrollment_date", "status", "grade",
			"completion_date", "credits_earned", "created_at", "updated_at").
		Values(enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.EnrollmentDate,
			string(enrollment.Status), gradeValue(enrollment.Grade), enrollment.CompletionDate,
			enrollment.CreditsEarned, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create enrollment query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, constraintEnrollmentPair) {
			return apperrors.ErrAlreadyEnrolled
		}
		logger.Error().Err(err).
			Str("studentID", enrollment.StudentID.String()).
			Str("courseID", enrollment.CourseID.String()).
			Msg("Error creating enrollment")
		return fmt.Errorf("error creating enrollment: %w", err)
	}

	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	return nil
}

func (r *EnrollmentRepository) getOne(ctx context.Context, q squirrel.SelectBuilder) (*models.Enrollment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get enrollment query: %w", err)
	}

	e, err := scanEnrollmentWithCourse(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("error retrieving enrollment: %w", err)
	}
	return e, nil
}

// GetByID retrieves an entry with its course
func (r *EnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error) {
	return r.getOne(ctx, r.selectWithCourse().Where(squirrel.Eq{"e.id": id}).Suffix("FOR UPDATE OF e"))
}

// GetByStudentAndCourse retrieves the entry for a pair and locks it until the transaction ends
func (r *EnrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error) {
	return r.getOne(ctx, r.selectWithCourse().
		Where(squirrel.Eq{"e.student_id": studentID, "e.course_id": courseID}).
		Suffix("FOR UPDATE OF e"))
}

// IsEnrolled reports whether an active entry exists for the pair
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	sql, args, err := r.sb.Select("1").From("enrollments").
		Where(squirrel.Eq{
			"student_id": studentID,
			"course_id":  courseID,
			"status":     string(models.EnrollmentEnrolled),
		}).
		Limit(1).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build is enrolled query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking enrollment: %w", err)
	}
	return exists, nil
}

// Update writes the lifecycle fields of an entry
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now()
	sql, args, err := r.sb.Update("enrollments").
		Set("enrollment_date", enrollment.EnrollmentDate).
		Set("status", string(enrollment.Status)).
		Set("grade", gradeValue(enrollment.Grade)).
		Set("completion_date", enrollment.CompletionDate).
		Set("credits_earned", enrollment.CreditsEarned).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": enrollment.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update enrollment query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrEnrollmentNotFound
	}

	enrollment.UpdatedAt = now
	return nil
}

// ListByStudent returns a student's entries, newest first, optionally filtered by status
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, status *models.EnrollmentStatus) ([]*models.Enrollment, error) {
	q := r.selectWithCourse().Where(squirrel.Eq{"e.student_id": studentID})
	if status != nil {
		q = q.Where(squirrel.Eq{"e.status": string(*status)})
	}
	return r.query(ctx, q.OrderBy("e.enrollment_date DESC"))
}

// ListByStudentIDs returns the entries of several students in one round trip
func (r *EnrollmentRepository) ListByStudentIDs(ctx context.Context, studentIDs []uuid.UUID) ([]*models.Enrollment, error) {
	if len(studentIDs) == 0 {
		return []*models.Enrollment{}, nil
	}
	return r.query(ctx, r.selectWithCourse().
		Where(squirrel.Eq{"e.student_id": studentIDs}).
		OrderBy("e.enrollment_date DESC"))
}

// CountByCourse counts every entry referencing a course, whatever its status
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID uuid.UUID) (int64, error) {
	sql, args, err := r.sb.Select("COUNT(*)").From("enrollments").Where(squirrel.Eq{"course_id": courseID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count enrollments query: %w", err)
	}

	var n int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting enrollments: %w", err)
	}
	return n, nil
}

// CountActiveByCourses counts active entries per course
func (r *EnrollmentRepository) CountActiveByCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}

	sql, args, err := r.sb.Select("course_id", "COUNT(*)").
		From("enrollments").
		Where(squirrel.Eq{"course_id": courseIDs, "status": string(models.EnrollmentEnrolled)}).
		GroupBy("course_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count active enrollments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error counting active enrollments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("error scanning enrollment count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *EnrollmentRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Enrollment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list enrollments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing enrollments: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollmentWithCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning enrollment row: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
