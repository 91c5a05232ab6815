package cache

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"arbscan/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var rdb *redis.Client

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start redis container: %s", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	rdb = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})

	code := m.Run()

	_ = rdb.Close()
	if err := redisContainer.Terminate(ctx); err != nil {
		log.Printf("could not stop redis container: %s", err)
	}
	os.Exit(code)
}

func TestRedisNetworkCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisNetworkCacheFromClient(rdb, time.Minute)

	t.Run("miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "bitget", "NOPE")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("round trip with ttl", func(t *testing.T) {
		set := model.NewNetworkSet(
			model.Network{ID: "ETH", Contract: "0xabc", DepositEnabled: true, WithdrawEnabled: true},
			model.Network{ID: "TRX", DepositEnabled: true},
		)
		require.NoError(t, c.Set(ctx, "Bitget", "usdc", set))

		got, ok, err := c.Get(ctx, "bitget", "USDC")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, set, got)

		ttl, err := rdb.TTL(ctx, networkKey("bitget", "USDC")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("corrupt value", func(t *testing.T) {
		require.NoError(t, rdb.Set(ctx, networkKey("mexc", "BAD"), "not json", 0).Err())
		_, _, err := c.Get(ctx, "mexc", "BAD")
		assert.Error(t, err)
	})

	t.Run("empty set is cached", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "mexc", "NONET", model.NetworkSet{}))
		got, ok, err := c.Get(ctx, "mexc", "NONET")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})
}
