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

const constraintCourseCode = "courses_course_code_key"

var courseColumns = []string{
	"id", "course_name", "course_code", "course_duration", "description", "credits", "is_active",
	"created_at", "updated_at",
}

var courseOrderColumns = map[string]string{
	"course_name":     "course_name",
	"course_code":     "course_code",
	"course_duration": "course_duration",
	"credits":         "credits",
	"is_active":       "is_active",
	"created_at":      "created_at",
	"updated_at":      "updated_at",
}

// CourseRepository handles course catalog database operations
type CourseRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewCourseRepository creates a new CourseRepository
func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{
		db: db,
		sb: newBuilder(),
	}
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.CourseName, &c.CourseCode, &c.CourseDuration, &c.Description,
		&c.Credits, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a course
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now()
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}

	sql, args, err := r.sb.Insert("courses").
		Columns(courseColumns...).
		Values(course.ID, course.CourseName, course.CourseCode, course.CourseDuration, course.Description,
			course.Credits, course.IsActive, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create course query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, constraintCourseCode) {
			return apperrors.ErrCourseCodeExists
		}
		logger.Error().Err(err).Str("courseCode", course.CourseCode).Msg("Error creating course")
		return fmt.Errorf("error creating course: %w", err)
	}

	course.CreatedAt = now
	course.UpdatedAt = now
	return nil
}

func (r *CourseRepository) getOne(ctx context.Context, q squirrel.SelectBuilder) (*models.Course, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get course query: %w", err)
	}

	course, err := scanCourse(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCourseNotFound
		}
		return nil, fmt.Errorf("error retrieving course: %w", err)
	}
	return course, nil
}

// GetByID retrieves a course by ID
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return r.getOne(ctx, r.sb.Select(courseColumns...).From("courses").Where(squirrel.Eq{"id": id}))
}

// GetByIDForUpdate retrieves a course and locks its row until the transaction ends
func (r *CourseRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return r.getOne(ctx, r.sb.Select(courseColumns...).From("courses").Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE"))
}

// GetByCode retrieves a course by its (upper-cased) code
func (r *CourseRepository) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	return r.getOne(ctx, r.sb.Select(courseColumns...).From("courses").Where(squirrel.Eq{"course_code": code}))
}

// CodeExists checks whether another course holds code
func (r *CourseRepository) CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	q := r.sb.Select("1").From("courses").Where(squirrel.Eq{"course_code": code}).Limit(1)
	if excludeID != uuid.Nil {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}
	sql, args, err := q.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build course code exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking course code: %w", err)
	}
	return exists, nil
}

// Update writes every mutable course field
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	now := time.Now()
	sql, args, err := r.sb.Update("courses").
		Set("course_name", course.CourseName).
		Set("course_code", course.CourseCode).
		Set("course_duration", course.CourseDuration).
		Set("description", course.Description).
		Set("credits", course.Credits).
		Set("is_active", course.IsActive).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": course.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update course query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, constraintCourseCode) {
			return apperrors.ErrCourseCodeExists
		}
		return fmt.Errorf("error updating course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCourseNotFound
	}

	course.UpdatedAt = now
	return nil
}

// Delete removes a course. Enrollments reference courses with ON DELETE RESTRICT.
func (r *CourseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.sb.Delete("courses").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete course query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrCourseHasEnrollment
		}
		return fmt.Errorf("error deleting course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCourseNotFound
	}
	return nil
}

func applyCourseFilter(q squirrel.SelectBuilder, filter CourseFilter) squirrel.SelectBuilder {
	if filter.Search != "" {
		term := ilike(filter.Search)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"course_name": term},
			squirrel.ILike{"course_code": term},
			squirrel.ILike{"description": term},
		})
	}
	if filter.IsActive != nil {
		q = q.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.Duration != nil {
		q = q.Where(squirrel.Eq{"course_duration": *filter.Duration})
	}
	if filter.Credits != nil {
		q = q.Where(squirrel.Eq{"credits": *filter.Credits})
	}
	return q
}

// List returns a filtered, ordered page of courses and the total match count
func (r *CourseRepository) List(ctx context.Context, filter CourseFilter) ([]*models.Course, int64, error) {
	countSQL, countArgs, err := applyCourseFilter(r.sb.Select("COUNT(*)").From("courses"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count courses query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting courses: %w", err)
	}

	q := applyCourseFilter(r.sb.Select(courseColumns...).From("courses"), filter).
		OrderBy(orderBy(filter.Ordering, courseOrderColumns, "course_name"), "id ASC")
	if filter.Page.Limit > 0 {
		q = q.Limit(uint64(filter.Page.Limit)).Offset(filter.Page.Offset)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list courses query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing courses: %w", err)
	}
	defer rows.Close()

	courses := make([]*models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning course row: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}
