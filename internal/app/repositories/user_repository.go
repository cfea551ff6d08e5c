package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/dberrors"
	"github.com/yigit/scms/internal/pkg/logger"
)

// Unique constraints on the users table
const (
	constraintUsername    = "users_username_key"
	constraintEmail       = "users_email_key"
	constraintSingleAdmin = "users_single_admin_idx"
)

var userColumns = []string{
	"id", "username", "email", "password", "first_name", "last_name", "role",
	"is_superuser", "is_staff", "is_active", "phone", "date_of_birth", "address",
	"last_login_at", "created_at", "updated_at",
}

// UserRepository handles user database operations
type UserRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{
		db: db,
		sb: newBuilder(),
	}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName, &u.LastName, &role,
		&u.IsSuperuser, &u.IsStaff, &u.IsActive, &u.Phone, &u.DateOfBirth, &u.Address,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.RoleType = models.RoleType(role)
	return &u, nil
}

func mapUserWriteError(err error) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, constraintUsername):
		return apperrors.ErrUsernameAlreadyExists
	case dberrors.IsDuplicateConstraintError(err, constraintEmail):
		return apperrors.ErrEmailAlreadyExists
	case dberrors.IsDuplicateConstraintError(err, constraintSingleAdmin):
		return apperrors.ErrAdminAlreadyExists
	}
	return nil
}

// Create inserts a user and fills its id and timestamps
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	sql, args, err := r.sb.Insert("users").
		Columns("username", "email", "password", "first_name", "last_name", "role",
			"is_superuser", "is_staff", "is_active", "phone", "date_of_birth", "address",
			"created_at", "updated_at").
		Values(user.Username, user.Email, user.Password, user.FirstName, user.LastName, string(user.RoleType),
			user.IsSuperuser, user.IsStaff, user.IsActive, user.Phone, user.DateOfBirth, user.Address,
			now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create user query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&user.ID); err != nil {
		if mapped := mapUserWriteError(err); mapped != nil {
			return mapped
		}
		logger.Error().Err(err).Str("username", user.Username).Msg("Error creating user")
		return fmt.Errorf("error creating user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.User, error) {
	sql, args, err := r.sb.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	user, err := scanUser(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Eq{"username": username})
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, squirrel.Expr("lower(email) = lower(?)", email))
}

func (r *UserRepository) exists(ctx context.Context, where squirrel.Sqlizer, excludeID int64) (bool, error) {
	q := r.sb.Select("1").From("users").Where(where).Limit(1)
	if excludeID > 0 {
		q = q.Where(squirrel.NotEq{"id": excludeID})
	}
	sql, args, err := q.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking user existence: %w", err)
	}
	return exists, nil
}

// UsernameExists checks whether another user holds username
func (r *UserRepository) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"username": username}, excludeID)
}

// EmailExists checks whether another user holds email
func (r *UserRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, squirrel.Expr("lower(email) = lower(?)", email), excludeID)
}

// Update writes the mutable profile and role fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	now := time.Now()
	sql, args, err := r.sb.Update("users").
		Set("username", user.Username).
		Set("email", user.Email).
		Set("first_name", user.FirstName).
		Set("last_name", user.LastName).
		Set("role", string(user.RoleType)).
		Set("is_superuser", user.IsSuperuser).
		Set("is_staff", user.IsStaff).
		Set("is_active", user.IsActive).
		Set("phone", user.Phone).
		Set("date_of_birth", user.DateOfBirth).
		Set("address", user.Address).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update user query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if mapped := mapUserWriteError(err); mapped != nil {
			return mapped
		}
		logger.Error().Err(err).Int64("userID", user.ID).Msg("Error updating user")
		return fmt.Errorf("error updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	user.UpdatedAt = now
	return nil
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	sql, args, err := r.sb.Update("users").
		Set("password", hash).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update password query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin updates the last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	sql, args, err := r.sb.Update("users").
		Set("last_login_at", at).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update last login query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error updating last login: %w", err)
	}
	return nil
}

// Delete removes a user. The student profile and its enrollments cascade.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("users").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete user query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// List returns users ordered by id
func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]*models.User, error) {
	q := r.sb.Select(userColumns...).From("users").OrderBy("id ASC")
	if filter.Role != nil {
		q = q.Where(squirrel.Eq{"role": string(*filter.Role)})
	}
	if filter.ID != nil {
		q = q.Where(squirrel.Eq{"id": *filter.ID})
	}
	if filter.AdminsOnly {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"role": string(models.RoleAdmin)},
			squirrel.Eq{"is_superuser": true},
		})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list users query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
