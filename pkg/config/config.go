package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/queryward/queryward/pkg/backend"
	"github.com/queryward/queryward/pkg/models"
)

// configFile is looked up in the working directory; queryward runs fine
// without one, on defaults and environment variables alone.
const configFile = "config.yaml"

// Config holds all configuration for queryward.
// Values come from config.yaml when present; environment variables always
// override YAML. Secrets (LLM API key, warehouse DSN) must only come from
// environment variables.
type Config struct {
	Env     string `yaml:"env" env:"QUERYWARD_ENV" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Logging   LoggingConfig   `yaml:"logging"`
	Registry  RegistryConfig  `yaml:"registry"`
	Backend   BackendConfig   `yaml:"backend"`
	Safety    SafetyConfig    `yaml:"safety"`
	Extract   ExtractConfig   `yaml:"extract"`
	LLM       LLMConfig       `yaml:"llm"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig controls the process logger. Logs always go to stderr so
// the stdio MCP transport keeps stdout for the protocol.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"QUERYWARD_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"QUERYWARD_LOG_FORMAT" env-default:"console"`
}

// RegistryConfig holds session history storage settings.
type RegistryConfig struct {
	// Dir is where per-session history files live. Empty means
	// $XDG_DATA_HOME/queryward/sessions.
	Dir string `yaml:"dir" env:"QUERYWARD_REGISTRY_DIR" env-default:""`

	// DefaultSession is used when a caller does not name one.
	DefaultSession string `yaml:"default_session" env:"QUERYWARD_SESSION" env-default:"default"`
}

// BackendConfig holds settings for the external SQL backend process.
type BackendConfig struct {
	// Command is the backend executable.
	Command string `yaml:"command" env:"QUERYWARD_BACKEND_COMMAND" env-default:"dbt"`

	// ProjectDir is the backend project root, the working directory for
	// every invocation.
	ProjectDir string `yaml:"project_dir" env:"QUERYWARD_PROJECT_DIR" env-default:"."`

	// ProfilesDir, Profile, and Target select the connection. Empty values
	// defer to the backend's own defaults.
	ProfilesDir string `yaml:"profiles_dir" env:"QUERYWARD_PROFILES_DIR" env-default:""`
	Profile     string `yaml:"profile" env:"QUERYWARD_PROFILE" env-default:""`
	Target      string `yaml:"target" env:"QUERYWARD_TARGET" env-default:""`

	// StagingSubdir is the project subdirectory scanned for analysis files.
	StagingSubdir string `yaml:"staging_subdir" env:"QUERYWARD_STAGING_SUBDIR" env-default:"analyses"`

	// RunVia selects the execution route: "operation" (project macro
	// printing marker lines) or "show" (inline preview command).
	RunVia string `yaml:"run_via" env:"QUERYWARD_RUN_VIA" env-default:"operation"`

	// Operation is the project macro name used by the operation route.
	Operation string `yaml:"operation" env:"QUERYWARD_OPERATION" env-default:"query_runner"`

	// MinVersion, when set, makes the doctor probe fail on older backends.
	MinVersion string `yaml:"min_version" env:"QUERYWARD_BACKEND_MIN_VERSION" env-default:""`

	// TimeoutSeconds bounds a single query execution, not compilation.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"QUERYWARD_BACKEND_TIMEOUT_SECONDS" env-default:"300"`

	// DefaultRowLimit applies when a request does not set its own limit.
	DefaultRowLimit int `yaml:"default_row_limit" env:"QUERYWARD_DEFAULT_ROW_LIMIT" env-default:"100"`
}

// Timeout returns the execution timeout as a duration.
func (c *BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExecContext renders the connection settings as a backend execution
// context.
func (c *BackendConfig) ExecContext() backend.ExecContext {
	return backend.ExecContext{
		ProjectDir:  c.ProjectDir,
		ProfilesDir: c.ProfilesDir,
		Profile:     c.Profile,
		Target:      c.Target,
	}
}

// SafetyConfig holds the safety gate policy.
type SafetyConfig struct {
	// Mode is the default gate mode: "read_only" or "unrestricted".
	Mode string `yaml:"mode" env:"QUERYWARD_SAFETY_MODE" env-default:"read_only"`

	// AllowUnrestricted permits callers to request unrestricted mode per
	// query. When false, per-call escalation is rejected outright rather
	// than silently downgraded.
	AllowUnrestricted bool `yaml:"allow_unrestricted" env:"QUERYWARD_ALLOW_UNRESTRICTED" env-default:"false"`

	// ExtraBlockedKeywords extends the built-in write/DDL keyword set. Each
	// keyword is matched case-insensitively as a whole word, like the
	// defaults.
	ExtraBlockedKeywords []string `yaml:"extra_blocked_keywords" env:"QUERYWARD_EXTRA_BLOCKED_KEYWORDS" env-separator:","`
}

// ExtractConfig holds output extraction settings.
type ExtractConfig struct {
	// ErrorSubstrings override the default error-line markers scanned for
	// in backend output. Empty keeps the built-in list.
	ErrorSubstrings []string `yaml:"error_substrings" env:"QUERYWARD_ERROR_SUBSTRINGS" env-separator:","`
}

// LLMConfig holds natural-language translation settings. Translation is
// optional; it is off until a model is configured.
type LLMConfig struct {
	// Provider is "openai" (default, covers any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"QUERYWARD_LLM_PROVIDER" env-default:""`

	// Endpoint overrides the provider's default base URL.
	Endpoint string `yaml:"endpoint" env:"QUERYWARD_LLM_ENDPOINT" env-default:""`

	// Model names the model to prompt.
	Model string `yaml:"model" env:"QUERYWARD_LLM_MODEL" env-default:""`

	// APIKey is the provider credential.
	APIKey string `yaml:"-" env:"QUERYWARD_LLM_API_KEY"` // Secret - not in YAML

	// Temperature for translations. Zero means the translator default.
	Temperature float64 `yaml:"temperature" env:"QUERYWARD_LLM_TEMPERATURE" env-default:"0"`
}

// Configured reports whether translation can be attempted.
func (c *LLMConfig) Configured() bool {
	return c.Model != ""
}

// WarehouseConfig holds the optional direct-warehouse preflight settings.
type WarehouseConfig struct {
	// Preflight enables EXPLAIN validation against the warehouse before
	// execution. Requires DSN.
	Preflight bool `yaml:"preflight" env:"QUERYWARD_WAREHOUSE_PREFLIGHT" env-default:"false"`

	// DSN is the postgres connection string used for preflight only.
	DSN string `yaml:"-" env:"QUERYWARD_WAREHOUSE_DSN"` // Secret - not in YAML
}

// ServerConfig holds the HTTP transport settings for serve --http.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"QUERYWARD_LISTEN_ADDR" env-default:"127.0.0.1:8399"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides, seeds the environment from a .env file first, and
// validates the result. The version parameter is injected at build time and
// set on the returned Config.
func Load(version string) (*Config, error) {
	// Best effort: a .env in the working directory seeds missing variables
	// for local development. Already-set variables win.
	_ = godotenv.Load()

	cfg := &Config{Version: version}

	if _, err := os.Stat(configFile); err == nil {
		if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
			return nil, fmt.Errorf("read %s: %w", configFile, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the values that cannot be expressed as static struct
// tag defaults.
func (c *Config) applyDefaults() {
	if c.Registry.Dir == "" {
		c.Registry.Dir = filepath.Join(xdg.DataHome, "queryward", "sessions")
	}
}

// Validate fails fast on impossible combinations instead of surfacing them
// mid-pipeline.
func (c *Config) Validate() error {
	switch models.Mode(c.Safety.Mode) {
	case models.ModeReadOnly, models.ModeUnrestricted:
	default:
		return fmt.Errorf("safety.mode must be %q or %q, got %q",
			models.ModeReadOnly, models.ModeUnrestricted, c.Safety.Mode)
	}

	switch c.Backend.RunVia {
	case backend.RunViaOperation, backend.RunViaShow:
	default:
		return fmt.Errorf("backend.run_via must be %q or %q, got %q",
			backend.RunViaOperation, backend.RunViaShow, c.Backend.RunVia)
	}
	if c.Backend.RunVia == backend.RunViaOperation && c.Backend.Operation == "" {
		return fmt.Errorf("backend.operation is required for the %q route", backend.RunViaOperation)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be positive, got %d", c.Backend.TimeoutSeconds)
	}
	if c.Backend.DefaultRowLimit <= 0 {
		return fmt.Errorf("backend.default_row_limit must be positive, got %d", c.Backend.DefaultRowLimit)
	}

	switch c.LLM.Provider {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be \"openai\" or \"anthropic\", got %q", c.LLM.Provider)
	}

	if c.Warehouse.Preflight && c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.preflight requires QUERYWARD_WAREHOUSE_DSN to be set")
	}

	return nil
}
