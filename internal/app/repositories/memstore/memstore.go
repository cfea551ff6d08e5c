// Package memstore is an in-memory repositories.Store. It enforces the same unique and
// referential constraints as the Postgres schema and is used by service and handler tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
)

type refreshToken struct {
	userID    int64
	expiry    time.Time
	revoked   bool
	createdAt time.Time
}

type data struct {
	users       map[int64]*models.User
	nextUserID  int64
	students    map[uuid.UUID]*models.Student
	courses     map[uuid.UUID]*models.Course
	enrollments map[uuid.UUID]*models.Enrollment
	tokens      map[string]*refreshToken
}

func newData() *data {
	return &data{
		users:       make(map[int64]*models.User),
		students:    make(map[uuid.UUID]*models.Student),
		courses:     make(map[uuid.UUID]*models.Course),
		enrollments: make(map[uuid.UUID]*models.Enrollment),
		tokens:      make(map[string]*refreshToken),
	}
}

func (d *data) clone() *data {
	c := newData()
	c.nextUserID = d.nextUserID
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.students {
		s := *v
		c.students[k] = &s
	}
	for k, v := range d.courses {
		cc := *v
		c.courses[k] = &cc
	}
	for k, v := range d.enrollments {
		e := *v
		c.enrollments[k] = &e
	}
	for k, v := range d.tokens {
		t := *v
		c.tokens[k] = &t
	}
	return c
}

// Store is a mutex-guarded in-memory Store. Transactions work on a copy that replaces
// the live data on commit, so a failed transaction leaves no partial writes.
type Store struct {
	mu    sync.Mutex
	data  *data
	repos *repositories.Repositories
}

// New creates an empty Store
func New() *Store {
	s := &Store{data: newData()}
	s.repos = s.bind(nil)
	return s
}

// Repos returns repositories that each lock the store per call
func (s *Store) Repos() *repositories.Repositories {
	return s.repos
}

// WithTransaction runs fn against a private copy and commits it when fn succeeds.
// Repositories from Repos must not be used inside fn.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos *repositories.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.data.clone()
	if err := fn(ctx, s.bind(tx)); err != nil {
		return err
	}
	s.data = tx
	return nil
}

func (s *Store) bind(tx *data) *repositories.Repositories {
	v := view{store: s, tx: tx}
	return &repositories.Repositories{
		UserRepository:       &userRepo{v},
		StudentRepository:    &studentRepo{v},
		CourseRepository:     &courseRepo{v},
		EnrollmentRepository: &enrollmentRepo{v},
		TokenRepository:      &tokenRepo{v},
		LockRepository:       lockRepo{},
	}
}

type view struct {
	store *Store
	tx    *data
}

func (v view) do(fn func(d *data) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

// lockRepo is a no-op: the store mutex already serializes transactions.
type lockRepo struct{}

func (lockRepo) AcquireXactLock(context.Context, int64) error { return nil }

func paginate[T any](items []T, p repositories.Page) []T {
	if p.Limit <= 0 {
		return items
	}
	start := int(p.Offset)
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
