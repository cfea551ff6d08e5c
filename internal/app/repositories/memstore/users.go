package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
)

type userRepo struct{ v view }

func (d *data) checkUserUnique(u *models.User) error {
	for _, other := range d.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return apperrors.ErrUsernameAlreadyExists
		}
		if strings.EqualFold(other.Email, u.Email) {
			return apperrors.ErrEmailAlreadyExists
		}
		if u.RoleType == models.RoleAdmin && other.RoleType == models.RoleAdmin {
			return apperrors.ErrAdminAlreadyExists
		}
	}
	return nil
}

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	return r.v.do(func(d *data) error {
		if err := d.checkUserUnique(user); err != nil {
			return err
		}
		d.nextUserID++
		now := time.Now()
		user.ID = d.nextUserID
		user.CreatedAt = now
		user.UpdatedAt = now
		cp := *user
		d.users[user.ID] = &cp
		return nil
	})
}

func (r *userRepo) find(match func(u *models.User) bool) (*models.User, error) {
	var found *models.User
	err := r.v.do(func(d *data) error {
		for _, u := range d.users {
			if match(u) {
				cp := *u
				found = &cp
				return nil
			}
		}
		return apperrors.ErrUserNotFound
	})
	return found, err
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepo) UsernameExists(_ context.Context, username string, excludeID int64) (bool, error) {
	u, err := r.find(func(u *models.User) bool { return u.Username == username && u.ID != excludeID })
	return u != nil, ignoreNotFound(err)
}

func (r *userRepo) EmailExists(_ context.Context, email string, excludeID int64) (bool, error) {
	u, err := r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) && u.ID != excludeID })
	return u != nil, ignoreNotFound(err)
}

func (r *userRepo) Update(_ context.Context, user *models.User) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.users[user.ID]
		if !ok {
			return apperrors.ErrUserNotFound
		}
		if err := d.checkUserUnique(user); err != nil {
			return err
		}
		user.UpdatedAt = time.Now()
		cp := *user
		cp.Password = cur.Password
		cp.LastLoginAt = cur.LastLoginAt
		cp.CreatedAt = cur.CreatedAt
		d.users[user.ID] = &cp
		return nil
	})
}

func (r *userRepo) UpdatePassword(_ context.Context, userID int64, hash string) error {
	return r.v.do(func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return apperrors.ErrUserNotFound
		}
		u.Password = hash
		u.UpdatedAt = time.Now()
		return nil
	})
}

func (r *userRepo) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	return r.v.do(func(d *data) error {
		if u, ok := d.users[userID]; ok {
			t := at
			u.LastLoginAt = &t
		}
		return nil
	})
}

func (r *userRepo) Delete(_ context.Context, id int64) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.users[id]; !ok {
			return apperrors.ErrUserNotFound
		}
		delete(d.users, id)
		for sid, s := range d.students {
			if s.UserID == id {
				d.deleteStudent(sid)
			}
		}
		for tok, t := range d.tokens {
			if t.userID == id {
				delete(d.tokens, tok)
			}
		}
		return nil
	})
}

func (r *userRepo) List(_ context.Context, filter repositories.UserFilter) ([]*models.User, error) {
	out := make([]*models.User, 0)
	err := r.v.do(func(d *data) error {
		for _, u := range d.users {
			if filter.Role != nil && u.RoleType != *filter.Role {
				continue
			}
			if filter.ID != nil && u.ID != *filter.ID {
				continue
			}
			if filter.AdminsOnly && !u.IsAdmin() {
				continue
			}
			cp := *u
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func ignoreNotFound(err error) error {
	if err == nil || apperrors.Is(err, apperrors.ErrResourceNotFound) {
		return nil
	}
	return err
}
