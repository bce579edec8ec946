package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_WORKERS", "4")
	t.Setenv("WS_PING_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 4, cfg.StoreWorkers)
	assert.Equal(t, 10*time.Second, cfg.WS.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WS.PongTimeout)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "chat.fanout", cfg.FanoutExchange)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET: from-file\nPORT: \"9999\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
}

func TestValidatePongAfterPing(t *testing.T) {
	cfg := &Config{JWTSecret: "x", StoreWorkers: 1, WS: WebSocket{PingInterval: time.Minute, PongTimeout: time.Second, SendBuffer: 1}}
	assert.Error(t, cfg.Validate())
}
