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

// Unique constraints on the students table
const (
	ConstraintStudentNumber = "students_student_number_key"
	constraintStudentUser   = "students_user_id_key"
)

var studentOrderColumns = map[string]string{
	"student_number":  "s.student_number",
	"enrollment_date": "s.enrollment_date",
	"status":          "s.status",
	"created_at":      "s.created_at",
	"updated_at":      "s.updated_at",
	"username":        "u.username",
	"last_name":       "u.last_name",
}

var studentWithUserColumns = []string{
	"s.id", "s.user_id", "s.student_number", "s.enrollment_date", "s.status", "s.created_at", "s.updated_at",
	"u.id", "u.username", "u.email", "u.password", "u.first_name", "u.last_name", "u.role",
	"u.is_superuser", "u.is_staff", "u.is_active", "u.phone", "u.date_of_birth", "u.address",
	"u.last_login_at", "u.created_at", "u.updated_at",
}

// StudentRepository handles student profile database operations
type StudentRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: newBuilder(),
	}
}

func scanStudentWithUser(row pgx.Row) (*models.Student, error) {
	var s models.Student
	var u models.User
	var status, role string
	err := row.Scan(
		&s.ID, &s.UserID, &s.StudentNumber, &s.EnrollmentDate, &status, &s.CreatedAt, &s.UpdatedAt,
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName, &u.LastName, &role,
		&u.IsSuperuser, &u.IsStaff, &u.IsActive, &u.Phone, &u.DateOfBirth, &u.Address,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = models.StudentStatus(status)
	u.RoleType = models.RoleType(role)
	s.User = &u
	return &s, nil
}

func (r *StudentRepository) selectWithUser() squirrel.SelectBuilder {
	return r.sb.Select(studentWithUserColumns...).
		From("students s").
		Join("users u ON u.id = s.user_id")
}

// Create inserts a student profile
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
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

	sql, args, err := r.sb.Insert("students").
		Columns("id", "user_id", "student_number", "enrollment_date", "status", "created_at", "updated_at").
		Values(student.ID, student.UserID, student.StudentNumber, student.EnrollmentDate, string(student.Status), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create student query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		switch {
		case dberrors.IsDuplicateConstraintError(err, ConstraintStudentNumber):
			return apperrors.ErrStudentNumberExists
		case dberrors.IsDuplicateConstraintError(err, constraintStudentUser):
			return apperrors.NewFieldError("user", "This user is already associated with another student profile")
		case dberrors.IsForeignKeyViolation(err):
			return apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Int64("userID", student.UserID).Msg("Error creating student")
		return fmt.Errorf("error creating student: %w", err)
	}

	student.CreatedAt = now
	student.UpdatedAt = now
	return nil
}

func (r *StudentRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.Student, error) {
	sql, args, err := r.selectWithUser().Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student, err := scanStudentWithUser(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error retrieving student: %w", err)
	}
	return student, nil
}

// GetByID retrieves a student with its user
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"s.id": id})
}

// GetByUserID retrieves the profile linked to a user
func (r *StudentRepository) GetByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"s.user_id": userID})
}

// LatestNumberWithPrefix returns the highest student number made of prefix and a numeric
// sequence, or "". Longer numbers sort first so sequences past 9999 keep increasing.
func (r *StudentRepository) LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	sql, args, err := r.sb.Select("student_number").
		From("students").
		Where(squirrel.Like{"student_number": prefix + "%"}).
		Where(squirrel.Expr("student_number ~ ?", models.StudentNumberSequencePattern(prefix))).
		OrderBy("length(student_number) DESC", "student_number DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build latest student number query: %w", err)
	}

	var number string
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&number); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("error retrieving latest student number: %w", err)
	}
	return number, nil
}

// NumberExists checks whether another student holds number
func (r *StudentRepository) NumberExists(ctx context.Context, number string, excludeID uuid.UUID) (bool, error) {
	q := r.sb.Select("1").From("students").Where(squirrel.Eq{"student_number": number}).Limit(1)
	if excludeID != uuid.Nil {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}
	sql, args, err := q.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build student number exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking student number: %w", err)
	}
	return exists, nil
}

// Update writes the mutable profile fields
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	now := time.Now()
	sql, args, err := r.sb.Update("students").
		Set("student_number", student.StudentNumber).
		Set("enrollment_date", student.EnrollmentDate).
		Set("status", string(student.Status)).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": student.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update student query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, ConstraintStudentNumber) {
			return apperrors.ErrStudentNumberExists
		}
		return fmt.Errorf("error updating student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}

	student.UpdatedAt = now
	return nil
}

// Delete removes a student profile; its enrollments cascade
func (r *StudentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.sb.Delete("students").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete student query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

func (r *StudentRepository) applyFilter(q squirrel.SelectBuilder, filter StudentFilter) squirrel.SelectBuilder {
	if filter.Search != "" {
		term := ilike(filter.Search)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"s.student_number": term},
			squirrel.ILike{"u.username": term},
			squirrel.ILike{"u.first_name": term},
			squirrel.ILike{"u.last_name": term},
			squirrel.ILike{"u.email": term},
		})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"s.status": string(filter.Status)})
	}
	if filter.UserID != nil {
		q = q.Where(squirrel.Eq{"s.user_id": *filter.UserID})
	}
	if filter.CourseID != nil {
		q = q.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = s.id AND e.course_id = ?)", *filter.CourseID))
	}
	return q
}

// List returns a filtered, ordered page of students and the total match count
func (r *StudentRepository) List(ctx context.Context, filter StudentFilter) ([]*models.Student, int64, error) {
	countSQL, countArgs, err := r.applyFilter(
		r.sb.Select("COUNT(*)").From("students s").Join("users u ON u.id = s.user_id"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count students query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting students: %w", err)
	}

	q := r.applyFilter(r.selectWithUser(), filter).
		OrderBy(orderBy(filter.Ordering, studentOrderColumns, "student_number"), "s.id ASC")
	if filter.Page.Limit > 0 {
		q = q.Limit(uint64(filter.Page.Limit)).Offset(filter.Page.Offset)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list students query: %w", err)
	}

	students, err := r.query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// ListByCourse returns the students holding an entry for courseID in one of statuses
func (r *StudentRepository) ListByCourse(ctx context.Context, courseID uuid.UUID, statuses []models.EnrollmentStatus) ([]*models.Student, error) {
	st := make([]string, 0, len(statuses))
	for _, s := range statuses {
		st = append(st, string(s))
	}

	sql, args, err := r.selectWithUser().
		Join("enrollments e ON e.student_id = s.id").
		Where(squirrel.Eq{"e.course_id": courseID, "e.status": st}).
		OrderBy("s.student_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build students by course query: %w", err)
	}
	return r.query(ctx, sql, args...)
}

func (r *StudentRepository) query(ctx context.Context, sql string, args ...any) ([]*models.Student, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing students: %w", err)
	}
	defer rows.Close()

	students := make([]*models.Student, 0)
	for rows.Next() {
		s, err := scanStudentWithUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student row: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}
