package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  endpoint: "http://localhost:5000/synthesize"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 100, cfg.WebSocket.MaxConnections)
	assert.Equal(t, 20*time.Second, cfg.WebSocket.GetPingInterval())
	assert.Equal(t, 20*time.Second, cfg.WebSocket.GetPingTimeout())
	assert.Equal(t, 24000, cfg.Audio.SampleRate)
	assert.Equal(t, 4096, cfg.Audio.ChunkSize)
	assert.Equal(t, 2000, cfg.Audio.MaxTextLength)
	assert.Equal(t, "default", cfg.Engine.DefaultVoice)
	assert.Equal(t, 0.5, cfg.Engine.MinSpeed)
	assert.Equal(t, 2.0, cfg.Engine.MaxSpeed)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  bind_address: "127.0.0.1"
websocket:
  ping_interval: 5.0
  ping_timeout: 2.5
  max_connections: 4
engine:
  endpoint: "http://tts.internal:8080/api"
  timeout: 30
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, 4, cfg.WebSocket.MaxConnections)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.GetPingInterval())
	assert.Equal(t, 2500*time.Millisecond, cfg.WebSocket.GetPingTimeout())
	assert.Equal(t, "http://tts.internal:8080/api", cfg.Engine.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Engine.GetTimeoutDuration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TONEV_ENGINE_ENDPOINT", "http://env.example:9000/tts")
	t.Setenv("TONEV_ENGINE_API_KEY", "secret-key")
	t.Setenv("TONEV_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	path := writeConfig(t, `
engine:
  endpoint: "http://file.example:5000/tts"
  api_key: "file-key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.example:9000/tts", cfg.Engine.Endpoint)
	assert.Equal(t, "secret-key", cfg.Engine.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "invalid port",
			content: `
server:
  port: 70000
engine:
  endpoint: "http://localhost:5000"
`,
			errMsg: "port",
		},
		{
			name: "zero max connections",
			content: `
websocket:
  max_connections: 0
engine:
  endpoint: "http://localhost:5000"
`,
			errMsg: "max_connections",
		},
		{
			name: "negative ping interval",
			content: `
websocket:
  ping_interval: -1.0
engine:
  endpoint: "http://localhost:5000"
`,
			errMsg: "ping_interval",
		},
		{
			name:    "missing engine endpoint",
			content: "server:\n  port: 8000\n",
			errMsg:  "endpoint",
		},
		{
			name: "inverted speed bounds",
			content: `
engine:
  endpoint: "http://localhost:5000"
  min_speed: 2.0
  max_speed: 0.5
`,
			errMsg: "speed",
		},
		{
			name: "bad log level",
			content: `
engine:
  endpoint: "http://localhost:5000"
logging:
  level: "verbose"
`,
			errMsg: "level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
