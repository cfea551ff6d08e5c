package repositories

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/db"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so every repository can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ordering is a whitelisted sort field and direction.
type Ordering struct {
	Field string
	Desc  bool
}

// Page bounds a list query.
type Page struct {
	Offset uint64
	Limit  int
}

// CourseFilter narrows a course listing.
type CourseFilter struct {
	Search   string
	IsActive *bool
	Duration *int
	Credits  *int
	Ordering Ordering
	Page     Page
}

// StudentFilter narrows a student listing.
type StudentFilter struct {
	Search   string
	Status   models.StudentStatus
	CourseID *uuid.UUID
	UserID   *int64
	Ordering Ordering
	Page     Page
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Role       *models.RoleType
	ID         *int64
	AdminsOnly bool
}

// IUserRepository defines the interface for user-related database operations
type IUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter UserFilter) ([]*models.User, error)
}

// IStudentRepository defines student profile persistence
type IStudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Student, error)
	LatestNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	NumberExists(ctx context.Context, number string, excludeID uuid.UUID) (bool, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter StudentFilter) ([]*models.Student, int64, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID, statuses []models.EnrollmentStatus) ([]*models.Student, error)
}

// ICourseRepository defines course catalog persistence
type ICourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetByCode(ctx context.Context, code string) (*models.Course, error)
	CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter CourseFilter) ([]*models.Course, int64, error)
}

// IEnrollmentRepository defines ledger persistence
type IEnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error)
	GetByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error)
	IsEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, status *models.EnrollmentStatus) ([]*models.Enrollment, error)
	ListByStudentIDs(ctx context.Context, studentIDs []uuid.UUID) ([]*models.Enrollment, error)
	CountByCourse(ctx context.Context, courseID uuid.UUID) (int64, error)
	CountActiveByCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// ITokenRepository defines refresh token persistence
type ITokenRepository interface {
	CreateToken(ctx context.Context, token string, userID int64, expiryDate time.Time) error
	GetTokenByValue(ctx context.Context, token string) (int64, time.Time, error)
	RevokeToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// Lock keys for transaction-scoped advisory locks.
const (
	LockStudentNumber int64 = 0x5c_0001
	LockAdminRole     int64 = 0x5c_0002
)

// ILockRepository serializes critical sections for the lifetime of the current transaction.
type ILockRepository interface {
	AcquireXactLock(ctx context.Context, key int64) error
}

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository       IUserRepository
	StudentRepository    IStudentRepository
	CourseRepository     ICourseRepository
	EnrollmentRepository IEnrollmentRepository
	TokenRepository      ITokenRepository
	LockRepository       ILockRepository
}

// Store exposes repositories and a transactional unit of work.
type Store interface {
	Repos() *Repositories
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

// NewRepositories initializes all repositories against q
func NewRepositories(q DBTX) *Repositories {
	return &Repositories{
		UserRepository:       NewUserRepository(q),
		StudentRepository:    NewStudentRepository(q),
		CourseRepository:     NewCourseRepository(q),
		EnrollmentRepository: NewEnrollmentRepository(q),
		TokenRepository:      NewTokenRepository(q),
		LockRepository:       NewLockRepository(q),
	}
}

// PostgresStore is the pgx-backed Store
type PostgresStore struct {
	db    *db.PostgresDB
	repos *Repositories
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(pg *db.PostgresDB) *PostgresStore {
	return &PostgresStore{
		db:    pg,
		repos: NewRepositories(pg.Pool),
	}
}

// Repos returns pool-bound repositories
func (s *PostgresStore) Repos() *Repositories {
	return s.repos
}

// WithTransaction runs fn with repositories bound to a single transaction
func (s *PostgresStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// orderBy renders an Ordering using the column map, falling back to def.
func orderBy(o Ordering, columns map[string]string, def string) string {
	col, ok := columns[o.Field]
	if !ok {
		col = columns[def]
	}
	if o.Desc {
		return col + " DESC"
	}
	return col + " ASC"
}

func ilike(search string) string {
	return "%" + search + "%"
}
