package suite

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-relay/internal/config"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository/storage"
)

const (
	containerTTL = uint(120)
	startTimeout = 2 * time.Minute
	redisExposed = "6379/tcp"
)

// Suite - a test bound to a private Redis instance holding an empty game store.
type Suite struct {
	*testing.T
	Logger *slog.Logger

	Redis   config.Redis
	Storage *redis.Client
}

// New - runs a Redis container for the test and connects to it the way the server does.
// The container is removed when the test ends.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	t.Cleanup(cancel)

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "docker is not reachable")

	pool.MaxWait = startTimeout

	redisConf := runRedis(t, pool)

	var client *redis.Client
	err = pool.Retry(func() error {
		var connErr error
		client, connErr = storage.NewRedisStorage(ctx, redisConf)
		return connErr
	})
	require.NoError(t, err, "redis did not come up")

	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.FlushDB(ctx).Err())

	return ctx, &Suite{
		T:       t,
		Logger:  slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Redis:   redisConf,
		Storage: client,
	}
}

// runRedis - starts redis:alpine and returns the settings that reach it.
func runRedis(t *testing.T, pool *dockertest.Pool) config.Redis {
	t.Helper()

	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "alpine",
	}, func(host *docker.HostConfig) {
		host.AutoRemove = true
		host.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "could not start redis")

	t.Cleanup(func() {
		if purgeErr := pool.Purge(container); purgeErr != nil {
			t.Logf("could not remove redis container: %v", purgeErr)
		}
	})

	// killed by docker even if cleanup never runs
	_ = container.Expire(containerTTL)

	host, port, err := net.SplitHostPort(container.GetHostPort(redisExposed))
	require.NoError(t, err)

	return config.Redis{Host: host, Port: port, OpTimeout: time.Second}
}
