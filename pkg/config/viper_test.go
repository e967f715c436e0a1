package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 9000\nwebsocket:\n  pong_wait: 45s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.yaml"), []byte(yaml), 0o644))

	t.Setenv("CHAT_TEST_PORT", "9100")

	v, err := Load(dir, "chat")
	require.NoError(t, err)
	require.NoError(t, BindEnvs(v, map[string]string{"server.port": "CHAT_TEST_PORT"}))

	assert.Equal(t, 9100, v.GetInt("server.port"))
	assert.Equal(t, 45*time.Second, Duration(v, "websocket.pong_wait", time.Second))
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	v, err := Load(t.TempDir(), "does-not-exist")
	require.NoError(t, err)
	v.SetDefault("server.port", 8088)
	assert.Equal(t, 8088, v.GetInt("server.port"))
}

func TestDuration_FallsBackOnGarbage(t *testing.T) {
	v, err := Load(t.TempDir(), "none")
	require.NoError(t, err)
	v.Set("ws.ping", "not-a-duration")

	assert.Equal(t, 7*time.Second, Duration(v, "ws.ping", 7*time.Second))
}
