package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Reads the yaml file and fills defaults", func(t *testing.T) {
		// Given: a config file overriding a few keys
		path := filepath.Join(t.TempDir(), "config.yml")
		content := "log-level: debug\nhttp-port: \"9000\"\nredis:\n  host: redis\n  flush-on-start: true\nheartbeat:\n  interval: 2s\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		// When: loading the config
		conf, err := Load(path)

		// Then: file values and defaults are combined
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9000", conf.HTTPPort)
		assert.Equal(t, "redis:6379", conf.Redis.GetRedisAddr())
		assert.True(t, conf.Redis.FlushOnStart)
		assert.Equal(t, 3*time.Second, conf.Redis.OpTimeout)
		assert.Equal(t, 2*time.Second, conf.Heartbeat.Interval)
		assert.Equal(t, 256, conf.Socket.OutboxSize)
	})

	t.Run("Falls back to the environment when the file is missing", func(t *testing.T) {
		// Given: no config file and a port in the environment
		t.Setenv("PORT", "7070")
		path := filepath.Join(t.TempDir(), "missing.yml")

		// When: loading the config
		conf, err := Load(path)

		// Then: environment and defaults are used
		require.NoError(t, err)
		assert.Equal(t, "7070", conf.HTTPPort)
		assert.Equal(t, "info", conf.LogLevel)
		assert.Equal(t, 5*time.Second, conf.Heartbeat.Interval)
		assert.Equal(t, int64(512), conf.Socket.MaxMessageSize)
	})
}
