package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ai8future/perplexity-mcp/internal/config/envutil"
	"github.com/ai8future/perplexity-mcp/internal/validation"
)

// Config holds all server configuration. It is constructed once at startup
// and passed explicitly to the components that need it.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds MCP endpoint settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds endpoint authentication settings
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
}

// UpstreamConfig holds OpenRouter relay settings
type UpstreamConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"` // Empty means the OpenRouter default
	Timeout time.Duration `yaml:"timeout"`  // Per-request deadline for upstream calls
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from file
	configPath := os.Getenv("MCP_CONFIG")
	if configPath == "" {
		configPath = "configs/perplexity-mcp.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// File doesn't exist - continue with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	// Expand environment variables in string fields
	cfg.expandEnvVars()

	// Validate
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns configuration with sensible defaults
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8001,
		},
		Upstream: UpstreamConfig{
			// The deep-research model routinely runs for minutes.
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	c.Server.Host = envutil.GetStringEnv("MCP_HOST", c.Server.Host)
	c.Server.Port = envutil.GetIntEnv("MCP_PORT", c.Server.Port)

	if token := os.Getenv("MCP_BEARER_TOKEN"); token != "" {
		c.Auth.BearerToken = token
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Upstream.APIKey = key
	}
	if url := os.Getenv("OPENROUTER_BASE_URL"); url != "" {
		c.Upstream.BaseURL = url
	}
	c.Upstream.Timeout = envutil.GetDurationEnv("MCP_UPSTREAM_TIMEOUT", c.Upstream.Timeout)

	c.Logging.Level = envutil.GetStringEnv("MCP_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envutil.GetStringEnv("MCP_LOG_FORMAT", c.Logging.Format)
}

// expandEnvVars expands ${VAR} patterns in string fields
func (c *Config) expandEnvVars() {
	c.Auth.BearerToken = expandEnv(c.Auth.BearerToken)
	c.Upstream.APIKey = expandEnv(c.Upstream.APIKey)
}

// expandEnv expands ${VAR} patterns in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	return os.ExpandEnv(s)
}

// validate checks configuration validity
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Auth.BearerToken) == "" {
		return fmt.Errorf("bearer token is required (set MCP_BEARER_TOKEN)")
	}

	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		return fmt.Errorf("OpenRouter API key is required (set OPENROUTER_API_KEY)")
	}

	if c.Upstream.BaseURL != "" {
		if err := validation.ValidateBaseURL(c.Upstream.BaseURL); err != nil {
			return fmt.Errorf("invalid upstream base_url: %w", err)
		}
	}

	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("invalid upstream timeout: %v", c.Upstream.Timeout)
	}

	return nil
}
