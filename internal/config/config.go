// Package config provides configuration for the sidekick service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Service modes.
const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Mode selects the remote LLM client (live or mock).
	Mode string `yaml:"mode"`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	CMS       CMSConfig       `yaml:"cms"`
	Assistant AssistantConfig `yaml:"assistant"`
	Stream    StreamConfig    `yaml:"stream"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`

	// TemplatesPath is the root folder the template skills operate on.
	TemplatesPath string `yaml:"templates_path"`

	// PromptsPath holds additional instruction documents appended to the
	// shipped ones.
	PromptsPath string `yaml:"prompts_path"`

	// PolicyFile replaces the built-in tool policy when set.
	PolicyFile string `yaml:"policy_file"`
}

// OpenAIConfig configures the remote assistants API.
type OpenAIConfig struct {
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	DefaultModel string   `yaml:"default_model"`
	Models       []string `yaml:"models"`
}

// CMSConfig describes the host installation the skills act on.
type CMSConfig struct {
	BaseURL           string `yaml:"base_url"`
	Token             string `yaml:"token"`
	HostVersion       string `yaml:"host_version"`
	AllowAdminChanges bool   `yaml:"allow_admin_changes"`
}

// AssistantConfig controls the remote assistant binding.
type AssistantConfig struct {
	Name string `yaml:"name"`
	// RebindOnChange creates a new assistant when the tool schema or
	// instructions no longer match the ones the cached assistant was built with.
	RebindOnChange bool `yaml:"rebind_on_change"`
}

// StreamConfig controls the browser-facing stream.
type StreamConfig struct {
	// Padding is the number of filler bytes written after each frame.
	Padding int `yaml:"padding"`
}

// SessionConfig controls browser session identity.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	// IdleTTL is how long an unused session is kept before it is purged.
	// Zero disables purging.
	IdleTTL time.Duration `yaml:"idle_ttl"`
	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:    8080,
		DatabaseURL: "file:sidekick.db?mode=rwc&_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		Mode:        ModeLive,
		OpenAI: OpenAIConfig{
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o",
			Models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
		},
		CMS: CMSConfig{
			HostVersion:       "5.0.0",
			AllowAdminChanges: true,
		},
		Assistant: AssistantConfig{Name: "Sidekick"},
		Session: SessionConfig{
			CookieName:    "sidekick_session",
			IdleTTL:       7 * 24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Log:           LogConfig{Level: "info", Format: "text"},
		TemplatesPath: "templates",
	}
}

// Load loads configuration from an optional YAML file and then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Mode = strings.ToLower(getEnv("SIDEKICK_MODE", c.Mode))
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.DefaultModel = getEnv("OPENAI_MODEL", c.OpenAI.DefaultModel)
	c.CMS.BaseURL = getEnv("CMS_BASE_URL", c.CMS.BaseURL)
	c.CMS.Token = getEnv("CMS_TOKEN", c.CMS.Token)
	c.CMS.HostVersion = getEnv("CMS_HOST_VERSION", c.CMS.HostVersion)
	c.CMS.AllowAdminChanges = getEnvBool("CMS_ALLOW_ADMIN_CHANGES", c.CMS.AllowAdminChanges)
	c.TemplatesPath = getEnv("TEMPLATES_PATH", c.TemplatesPath)
	c.PolicyFile = getEnv("POLICY_FILE", c.PolicyFile)
	c.PromptsPath = getEnv("PROMPTS_PATH", c.PromptsPath)
	c.Stream.Padding = getEnvInt("STREAM_PADDING", c.Stream.Padding)
	c.Assistant.RebindOnChange = getEnvBool("ASSISTANT_REBIND_ON_CHANGE", c.Assistant.RebindOnChange)
	c.Session.CookieName = getEnv("SESSION_COOKIE_NAME", c.Session.CookieName)
	c.Session.IdleTTL = getEnvDuration("SESSION_IDLE_TTL", c.Session.IdleTTL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.HTTPPort)
	}
	switch c.Mode {
	case ModeLive:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required in %s mode", ModeLive)
		}
	case ModeMock:
	default:
		return fmt.Errorf("unknown mode %q (valid: %s, %s)", c.Mode, ModeLive, ModeMock)
	}
	if c.OpenAI.DefaultModel == "" {
		return fmt.Errorf("openai.default_model is required")
	}
	if c.Session.IdleTTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive when session.idle_ttl is set")
	}
	if c.Stream.Padding < 0 {
		return fmt.Errorf("stream.padding must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
