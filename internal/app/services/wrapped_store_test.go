package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/repositories/memstore"
	"github.com/yigit/scms/internal/pkg/auth"
	"github.com/yigit/scms/internal/pkg/tokenstore"
	"golang.org/x/crypto/bcrypt"
)

// wrappedStore lets a test swap repositories seen outside (read) and inside (tx)
// transactions of a memstore.
type wrappedStore struct {
	*memstore.Store
	read func(*repositories.Repositories) *repositories.Repositories
	tx   func(*repositories.Repositories) *repositories.Repositories
}

func (s *wrappedStore) Repos() *repositories.Repositories {
	repos := s.Store.Repos()
	if s.read != nil {
		return s.read(repos)
	}
	return repos
}

func (s *wrappedStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos *repositories.Repositories) error) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		if s.tx != nil {
			repos = s.tx(repos)
		}
		return fn(ctx, repos)
	})
}

func servicesOn(t *testing.T, store repositories.Store) *Services {
	t.Helper()
	jwt := auth.NewJWTService(auth.JWTConfig{
		SecretKey:       "test-secret",
		AccessTokenExp:  time.Hour,
		RefreshTokenExp: 24 * time.Hour,
		TokenIssuer:     "scms-test",
	})
	return NewServices(store, Options{JWTService: jwt, Denylist: tokenstore.NewMemory(), BcryptCost: bcrypt.MinCost}, zerolog.Nop())
}

// adminBlindUsers hides admins from role-filtered listings, like a check that ran
// before a concurrent admin insert committed.
type adminBlindUsers struct {
	repositories.IUserRepository
}

func (r adminBlindUsers) List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	if filter.Role != nil && *filter.Role == models.RoleAdmin {
		return nil, nil
	}
	return r.IUserRepository.List(ctx, filter)
}

type profileLookup struct {
	repositories.IStudentRepository
	byUser func(ctx context.Context, userID int64) (*models.Student, error)
}

func (r profileLookup) GetByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.byUser(ctx, userID)
}

func withUsers(repos *repositories.Repositories, users repositories.IUserRepository) *repositories.Repositories {
	cp := *repos
	cp.UserRepository = users
	return &cp
}

func withStudents(repos *repositories.Repositories, students repositories.IStudentRepository) *repositories.Repositories {
	cp := *repos
	cp.StudentRepository = students
	return &cp
}
