package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatYAML = `
port: "8083"
grpc_port: "9083"
store: memory
jwt_secret: ${CHAT_TEST_SECRET}
redis:
  addr: localhost:6379
  user_cache_ttl: 2m
  relay: true
transport:
  heartbeat_interval: 15s
delivery:
  workers: 4
`

func TestLoad_ExpandsEnvAndDurations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_service.yaml"), []byte(chatYAML), 0o644))
	t.Setenv("CHAT_TEST_SECRET", "s3cret")

	cfg, err := Load[Chat]("chat_service", dir)
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Minute, cfg.Redis.UserCacheTTL)
	assert.True(t, cfg.Redis.Relay)
	assert.Equal(t, 15*time.Second, cfg.Transport.HeartbeatInterval)
	assert.Equal(t, 4, cfg.Delivery.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load[Chat]("nope", t.TempDir())
	assert.Error(t, err)
}

func TestTransportConfig_WithDefaults(t *testing.T) {
	cfg := TransportConfig{HeartbeatInterval: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestGetPath(t *testing.T) {
	_, err := GetPath("definitely-not-here.txt", 2)
	assert.Error(t, err)
}

func TestLoad_ShippedConfigs(t *testing.T) {
	chat, err := Load[Chat]("chat_service", "../../config")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, chat.SeedUsers)
	assert.Equal(t, 200*time.Millisecond, chat.Delivery.Timeout)
	assert.Equal(t, 5*time.Minute, chat.Redis.UserCacheTTL)

	cli, err := Load[ChatClient]("chat_client", "../../config")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", cli.WSURL)
	assert.Equal(t, 5, cli.Transport.MaxReconnectAttempts)
}
