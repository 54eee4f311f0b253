// Package config provides configuration loading and validation for the TTS
// streaming service. It handles YAML-based configuration with struct
// validation plus .env/environment overrides for secrets and endpoints.
package config
