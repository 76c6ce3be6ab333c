package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(envConfigPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
	assert.Equal(t, "http://localhost:3000", cfg.Endpoint())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "custom.yaml", `
server:
  url: https://api.example.com
  namespace: /admin
client:
  reconnect: false
  reconnect_delay: 250ms
  handshake_timeout: 5s
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.Endpoint())
	assert.Equal(t, "/admin", cfg.Server.Namespace)
	assert.Equal(t, "/socket.io/", cfg.Server.Path, "missing fields keep defaults")
	assert.False(t, cfg.Client.Reconnect)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.Client.ReconnectDelayMax)
	assert.Equal(t, 5*time.Second, cfg.Client.HandshakeTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestDiscoverConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv(envConfigPath, "")

	assert.Equal(t, "", discoverConfigFile(""))

	writeFile(t, dir, defaultFile, "server:\n  port: 4000\n")
	assert.Equal(t, defaultFile, discoverConfigFile(""))

	t.Setenv(envConfigPath, "/etc/soquetic.yaml")
	assert.Equal(t, "/etc/soquetic.yaml", discoverConfigFile(""))
	assert.Equal(t, "explicit.yaml", discoverConfigFile("explicit.yaml"))

	t.Setenv(envConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "c.yaml", "server:\n  port: 4000\nlog:\n  level: warn\n")

	t.Setenv("SOQUETIC_PORT", "5000")
	t.Setenv("SOQUETIC_RECONNECT", "false")
	t.Setenv("SOQUETIC_REQUEST_TIMEOUT", "3s")
	t.Setenv("SOQUETIC_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.False(t, cfg.Client.Reconnect)
	assert.Equal(t, 3*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, defaultEnvFile, "SOQUETIC_PORT=6000\nSOQUETIC_NAMESPACE=/chat\n")

	// .env не перетирает уже выставленные переменные
	t.Setenv("SOQUETIC_NAMESPACE", "/admin")
	t.Cleanup(func() { _ = os.Unsetenv("SOQUETIC_PORT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "/admin", cfg.Server.Namespace)
}

func TestBadEnvValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SOQUETIC_PORT", "abc")
	t.Setenv("SOQUETIC_RECONNECT", "maybe")
	t.Setenv("SOQUETIC_RECONNECT_DELAY", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOQUETIC_PORT")
	assert.Contains(t, err.Error(), "SOQUETIC_RECONNECT")
	assert.Contains(t, err.Error(), "SOQUETIC_RECONNECT_DELAY")
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 70000
	cfg.Server.Path = "socket.io"
	cfg.Client.ReconnectDelay = 0
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "server.path", "client.reconnect_delay", "log.level", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg = Defaults()
	cfg.Server.URL = "ftp://example.com"
	assert.ErrorContains(t, cfg.Validate(), "server.url")

	cfg = Defaults()
	cfg.Server.URL = "ws://example.com:9000"
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate(), "port is ignored when url is set")
}

func TestNewLogger(t *testing.T) {
	cfg := Defaults()
	cfg.Log.Level = "warn"
	log, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	cfg.Log.Format = "json"
	_, err = cfg.NewLogger()
	require.NoError(t, err)

	cfg.Log.Level = "loud"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Client.Reconnect = false
	cfg.Server.Namespace = "/chat"

	opts := cfg.ClientOptions(nil, nil)
	assert.True(t, opts.DisableReconnect)
	assert.Equal(t, "/chat", opts.Namespace)
	assert.Equal(t, "/socket.io/", opts.Path)
	assert.Equal(t, 20*time.Second, opts.HandshakeTimeout)
}
