package memstore

import (
	"context"
	"time"

	"github.com/yigit/scms/internal/pkg/apperrors"
)

type tokenRepo struct{ v view }

func (r *tokenRepo) CreateToken(_ context.Context, token string, userID int64, expiryDate time.Time) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.tokens[token]; ok {
			return apperrors.ErrTokenInvalid
		}
		d.tokens[token] = &refreshToken{userID: userID, expiry: expiryDate, createdAt: time.Now()}
		return nil
	})
}

func (r *tokenRepo) GetTokenByValue(_ context.Context, token string) (int64, time.Time, error) {
	var userID int64
	var expiry time.Time
	err := r.v.do(func(d *data) error {
		t, ok := d.tokens[token]
		switch {
		case !ok:
			return apperrors.ErrTokenNotFound
		case t.revoked:
			return apperrors.ErrTokenRevoked
		case t.expiry.Before(time.Now()):
			return apperrors.ErrTokenExpired
		}
		userID, expiry = t.userID, t.expiry
		return nil
	})
	return userID, expiry, err
}

func (r *tokenRepo) RevokeToken(_ context.Context, token string) error {
	return r.v.do(func(d *data) error {
		t, ok := d.tokens[token]
		if !ok {
			return apperrors.ErrTokenNotFound
		}
		t.revoked = true
		return nil
	})
}

func (r *tokenRepo) RevokeAllUserTokens(_ context.Context, userID int64) error {
	return r.v.do(func(d *data) error {
		for _, t := range d.tokens {
			if t.userID == userID {
				t.revoked = true
			}
		}
		return nil
	})
}

func (r *tokenRepo) CleanupExpiredTokens(_ context.Context) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		now := time.Now()
		for k, t := range d.tokens {
			if t.expiry.Before(now) || t.revoked {
				delete(d.tokens, k)
				n++
			}
		}
		return nil
	})
	return n, err
}
