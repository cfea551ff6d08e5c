// Package tokenstore keeps the ids of revoked access tokens until they expire.
package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked access token ids (jti).
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Memory is a process-local Denylist
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemory creates an empty in-memory denylist
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke denylists jti for ttl. Expired entries are swept on each call.
func (m *Memory) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, k)
		}
	}
	m.entries[jti] = now.Add(ttl)
	return nil
}

// IsRevoked reports whether jti is denylisted and not yet expired
func (m *Memory) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(m.now()) {
		delete(m.entries, jti)
		return false, nil
	}
	return true, nil
}
