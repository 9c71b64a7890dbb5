package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anthonytesla02/Level-Up/internal/config"
)

func TestPoolConfig_Defaults(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Name: "levelup"})
	require.NoError(t, err)
	assert.Equal(t, int32(defaultPoolSize), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, defaultConnectTimeout, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, defaultMaxLifetime, pc.MaxConnLifetime)
	assert.Equal(t, defaultMaxIdleTime, pc.MaxConnIdleTime)
	assert.Equal(t, "levelup", pc.ConnConfig.Database)
}

func TestPoolConfig_Overrides(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{
		Host:            "db",
		Port:            6543,
		User:            "u",
		Name:            "n",
		PoolSize:        2,
		ConnectTimeout:  3 * time.Second,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, uint16(6543), pc.ConnConfig.Port)
}

func TestNewPool_GivesUpWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewPool(ctx, &config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           1,
		User:           "u",
		Name:           "n",
		ConnectTimeout: 50 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedis(ctx, &config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
