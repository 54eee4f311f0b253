package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Audio     AudioConfig     `yaml:"audio"`
	Engine    EngineConfig    `yaml:"engine"`
	Ngrok     NgrokConfig     `yaml:"ngrok"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket listener configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	BindAddress    string   `yaml:"bind_address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      int      `yaml:"rate_limit"` // requests per minute per client, 0 disables
}

// WebSocketConfig contains session keepalive and admission parameters
type WebSocketConfig struct {
	PingInterval   float64 `yaml:"ping_interval"` // seconds
	PingTimeout    float64 `yaml:"ping_timeout"`  // seconds
	MaxConnections int     `yaml:"max_connections"`
}

// AudioConfig contains audio format and chunking parameters
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	ChunkSize     int `yaml:"chunk_size"`      // bytes per outbound audio frame
	MaxTextLength int `yaml:"max_text_length"` // characters per synthesis request
}

// EngineConfig contains the external synthesis backend configuration
type EngineConfig struct {
	Endpoint        string  `yaml:"endpoint"`
	APIKey          string  `yaml:"api_key"`
	Timeout         int     `yaml:"timeout"` // seconds
	MaxRetries      int     `yaml:"max_retries"`
	MaxConcurrent   int     `yaml:"max_concurrent"`
	DefaultVoice    string  `yaml:"default_voice"`
	DefaultLanguage string  `yaml:"default_language"`
	MinSpeed        float64 `yaml:"min_speed"`
	MaxSpeed        float64 `yaml:"max_speed"`
}

// NgrokConfig contains public tunnel configuration
type NgrokConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Binary    string `yaml:"binary"`
	AuthToken string `yaml:"auth_token"`
	Region    string `yaml:"region"`
	APIAddr   string `yaml:"api_addr"` // ngrok agent local API
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration file, applies environment overrides and
// validates the result. A .env file next to the process is honored the
// same way the raw environment is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration with all defaults applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			BindAddress:    "0.0.0.0",
			AllowedOrigins: []string{"*"},
			RateLimit:      0,
		},
		WebSocket: WebSocketConfig{
			PingInterval:   20.0,
			PingTimeout:    20.0,
			MaxConnections: 100,
		},
		Audio: AudioConfig{
			SampleRate:    24000,
			Channels:      1,
			ChunkSize:     4096,
			MaxTextLength: 2000,
		},
		Engine: EngineConfig{
			Timeout:         30,
			MaxRetries:      3,
			MaxConcurrent:   10,
			DefaultVoice:    "default",
			DefaultLanguage: "en",
			MinSpeed:        0.5,
			MaxSpeed:        2.0,
		},
		Ngrok: NgrokConfig{
			Enabled: false,
			Binary:  "ngrok",
			Region:  "us",
			APIAddr: "http://127.0.0.1:4040",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides lets deployment environments override secrets and
// endpoints without editing the config file
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TONEV_ENGINE_ENDPOINT"); v != "" {
		c.Engine.Endpoint = v
	}
	if v := os.Getenv("TONEV_ENGINE_API_KEY"); v != "" {
		c.Engine.APIKey = v
	}
	if v := os.Getenv("NGROK_AUTHTOKEN"); v != "" {
		c.Ngrok.AuthToken = v
	}
	if v := os.Getenv("TONEV_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.Server.AllowedOrigins = origins
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.WebSocket.Validate(); err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if len(s.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins cannot be empty")
	}

	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %d", s.RateLimit)
	}

	return nil
}

// Validate validates WebSocket configuration
func (w *WebSocketConfig) Validate() error {
	if w.PingInterval <= 0 {
		return fmt.Errorf("ping_interval must be positive, got %f", w.PingInterval)
	}

	if w.PingTimeout <= 0 {
		return fmt.Errorf("ping_timeout must be positive, got %f", w.PingTimeout)
	}

	if w.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1, got %d", w.MaxConnections)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.ChunkSize < 256 {
		return fmt.Errorf("chunk_size must be at least 256 bytes, got %d", a.ChunkSize)
	}

	// Chunks carry whole 16-bit samples
	if a.ChunkSize%2 != 0 {
		return fmt.Errorf("chunk_size must be even, got %d", a.ChunkSize)
	}

	if a.MaxTextLength < 1 {
		return fmt.Errorf("max_text_length must be at least 1, got %d", a.MaxTextLength)
	}

	return nil
}

// Validate validates engine configuration
func (e *EngineConfig) Validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if e.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", e.Timeout)
	}

	if e.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", e.MaxRetries)
	}

	if e.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", e.MaxConcurrent)
	}

	if e.DefaultVoice == "" {
		return fmt.Errorf("default_voice cannot be empty")
	}

	if e.MinSpeed <= 0 || e.MaxSpeed <= e.MinSpeed {
		return fmt.Errorf("speed bounds must satisfy 0 < min_speed < max_speed, got [%f, %f]",
			e.MinSpeed, e.MaxSpeed)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetPingInterval returns the keepalive ping interval as a duration
func (w *WebSocketConfig) GetPingInterval() time.Duration {
	return time.Duration(w.PingInterval * float64(time.Second))
}

// GetPingTimeout returns the keepalive pong deadline as a duration
func (w *WebSocketConfig) GetPingTimeout() time.Duration {
	return time.Duration(w.PingTimeout * float64(time.Second))
}

// GetTimeoutDuration returns the engine request timeout as a duration
func (e *EngineConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}
