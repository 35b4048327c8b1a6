package config

import (
	"time"
)

// SensitiveString is a string that must never appear in logs or dumps.
type SensitiveString string

// String masks the value; use Value() to read it.
func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value returns the underlying secret.
func (s SensitiveString) Value() string {
	return string(s)
}

// Config represents the complete configuration for the massload system.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server   ServerConfig   `koanf:"server"   validate:"required"`
	Registry RegistryConfig `koanf:"registry" validate:"required"`
	AI       AIConfig       `koanf:"ai"`
	Runtime  RuntimeConfig  `koanf:"runtime"  validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host    string        `koanf:"host"    validate:"required"        env:"SERVER_HOST"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout time.Duration `koanf:"timeout"                            env:"SERVER_TIMEOUT"`
}

// RegistryConfig contains template registry storage configuration.
type RegistryConfig struct {
	Dir string `koanf:"dir" validate:"required" env:"REGISTRY_DIR"`
}

// AIConfig contains matrix generation (LLM) configuration.
type AIConfig struct {
	Provider    string          `koanf:"provider"     validate:"oneof=anthropic openai" env:"AI_PROVIDER"`
	Model       string          `koanf:"model"                                          env:"AI_MODEL"`
	APIKey      SensitiveString `koanf:"api_key"      sensitive:"true"                  env:"ANTHROPIC_API_KEY"`
	MaxTokens   int             `koanf:"max_tokens"   validate:"min=1"                  env:"AI_MAX_TOKENS"`
	PreviewRows int             `koanf:"preview_rows" validate:"min=1"                  env:"AI_PREVIEW_ROWS"`
	MaxRetries  int             `koanf:"max_retries"  validate:"min=1"                  env:"AI_MAX_RETRIES"`
	RetryDelay  time.Duration   `koanf:"retry_delay"                                    env:"AI_RETRY_DELAY"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
}

// Default returns the configuration defaults applied before any other source.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3001,
			Timeout: 120 * time.Second,
		},
		Registry: RegistryConfig{
			Dir: ".massload/matrices",
		},
		AI: AIConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			PreviewRows: 10,
			MaxRetries:  3,
			RetryDelay:  time.Second,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}
