package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/scms/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = "5433"
	cfg.Database.User = "scms"
	cfg.Database.Password = "p@ss:word"
	cfg.Database.DBName = "scms"
	cfg.Database.SSLMode = "require"
	cfg.Database.MaxOpenConns = 8
	cfg.Database.MaxIdleConns = 12
	cfg.Database.ConnMaxLifetime = "30m"
	return cfg
}

func TestPoolConfig(t *testing.T) {
	pc, err := PoolConfig(testConfig())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "p@ss:word", pc.ConnConfig.Password)
	assert.Equal(t, int32(8), pc.MaxConns)
	assert.Equal(t, int32(8), pc.MinConns)
	assert.Equal(t, 30*time.Minute, pc.MaxConnLifetime)
}

func TestPoolConfigRejectsBadLifetime(t *testing.T) {
	cfg := testConfig()
	cfg.Database.ConnMaxLifetime = "forever"
	_, err := PoolConfig(cfg)
	assert.ErrorContains(t, err, "max lifetime")
}
