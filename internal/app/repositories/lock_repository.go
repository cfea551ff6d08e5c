package repositories

import (
	"context"
	"fmt"
)

// LockRepository takes Postgres advisory locks scoped to the current transaction
type LockRepository struct {
	db DBTX
}

// NewLockRepository creates a new LockRepository
func NewLockRepository(db DBTX) *LockRepository {
	return &LockRepository{db: db}
}

// AcquireXactLock blocks until the lock for key is held. It is released on commit or rollback,
// so it only serializes anything when called inside WithTransaction.
func (r *LockRepository) AcquireXactLock(ctx context.Context, key int64) error {
	if _, err := r.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("error acquiring advisory lock %d: %w", key, err)
	}
	return nil
}
