package lock

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func leaseContract(t *testing.T, l Lease) {
	ctx := context.Background()

	release, err := l.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "scan", time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	other, err := l.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "scan", time.Minute)
	require.NoError(t, err)

	// A stale release must not drop a newer holder.
	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "scan", time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)
	require.NoError(t, again(ctx))
}

func TestLocalLease(t *testing.T) {
	leaseContract(t, NewLocalLease())
}

func TestLocalLease_Expires(t *testing.T) {
	l := NewLocalLease()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, err := l.Acquire(context.Background(), "scan", 10*time.Second)
	require.NoError(t, err)

	now = now.Add(11 * time.Second)
	_, err = l.Acquire(context.Background(), "scan", 10*time.Second)
	assert.NoError(t, err)
}

func TestRedisLease(t *testing.T) {
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	leaseContract(t, NewRedisLease(client, "levelup:lease:"))

	ttl, err := client.TTL(ctx, "levelup:lease:scan").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), ttl, "key removed after release")
}
