package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoke(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	revoked, err := m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	m.now = func() time.Time { return base }

	require.NoError(t, m.Revoke(ctx, "jti-1", time.Minute))
	m.now = func() time.Time { return base.Add(2 * time.Minute) }

	revoked, err := m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Empty(t, m.entries)
}

func TestMemoryZeroTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Revoke(ctx, "jti-1", 0))

	revoked, err := m.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
