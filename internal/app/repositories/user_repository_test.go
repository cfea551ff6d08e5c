package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

func TestMapUserWriteError(t *testing.T) {
	unique := func(constraint string) error {
		return fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraint})
	}

	assert.ErrorIs(t, mapUserWriteError(unique(constraintUsername)), apperrors.ErrUsernameAlreadyExists)
	assert.ErrorIs(t, mapUserWriteError(unique(constraintEmail)), apperrors.ErrEmailAlreadyExists)

	err := mapUserWriteError(unique(constraintSingleAdmin))
	assert.ErrorIs(t, err, apperrors.ErrAdminAlreadyExists)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	assert.NoError(t, mapUserWriteError(unique("users_other_key")))
	assert.NoError(t, mapUserWriteError(&pgconn.PgError{Code: "23503", ConstraintName: constraintSingleAdmin}))
	assert.NoError(t, mapUserWriteError(errors.New("connection reset")))
}
