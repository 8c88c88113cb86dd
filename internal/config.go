package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chronicle/internal/llm"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store backends.
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendFS     = "fs"
	StoreBackendNone   = "none"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app" toml:"app"`
	Auth     AuthConfig        `yaml:"auth" toml:"auth"`
	Store    StoreConfig       `yaml:"store" toml:"store"`
	LLM      LLMConfig         `yaml:"llm" toml:"llm"`
	Pipeline PipelineConfig    `yaml:"pipeline" toml:"pipeline"`
	Prompts  PromptsConfig     `yaml:"prompts" toml:"prompts"`
	Watch    WatchConfig       `yaml:"watch" toml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Auth, &c.Store, &c.LLM, &c.Pipeline, &c.Watch,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// StoreConfig selects where cached summaries live.
type StoreConfig struct {
	Backend string       `yaml:"backend" toml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite" toml:"sqlite"`
	FS      FSConfig     `yaml:"fs" toml:"fs"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(StoreBackendSQLite, StoreBackendFS, StoreBackendNone)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case StoreBackendSQLite:
		return c.SQLite.Validate()
	case StoreBackendFS:
		return c.FS.Validate()
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FSConfig holds the directory for file-backed summaries.
type FSConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the file store configuration.
func (c *FSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LLMConfig configures the language-model provider.
//
// APIKey may be left empty when ANTHROPIC_API_KEY or OPENAI_API_KEY is set
// for the chosen provider.
type LLMConfig struct {
	Provider          string        `yaml:"provider" toml:"provider"`
	APIKey            string        `yaml:"api_key" toml:"api_key"`
	BaseURL           string        `yaml:"base_url" toml:"base_url"`
	SummaryModel      string        `yaml:"summary_model" toml:"summary_model"`
	ReportModel       string        `yaml:"report_model" toml:"report_model"`
	RequestTimeout    time.Duration `yaml:"request_timeout" toml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int           `yaml:"burst" toml:"burst"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(llm.ProviderAnthropic, llm.ProviderOpenAI)),
		validation.Field(&c.SummaryModel, validation.Required),
		validation.Field(&c.ReportModel, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// ResolvedAPIKey returns APIKey, or the provider's conventional environment
// variable when APIKey is empty.
func (c *LLMConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.Provider == llm.ProviderOpenAI {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// Options converts the configuration into client options.
func (c *LLMConfig) Options() llm.Options {
	return llm.Options{
		Provider:          c.Provider,
		APIKey:            c.ResolvedAPIKey(),
		BaseURL:           c.BaseURL,
		RequestTimeout:    c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// PipelineConfig tunes summarization and report generation.
type PipelineConfig struct {
	Concurrency     int           `yaml:"concurrency" toml:"concurrency"`
	MaxRetries      int           `yaml:"max_retries" toml:"max_retries"`
	InitialBackoff  time.Duration `yaml:"initial_backoff" toml:"initial_backoff"`
	ReportMaxTokens int           `yaml:"report_max_tokens" toml:"report_max_tokens"`
	PersistQueue    int           `yaml:"persist_queue" toml:"persist_queue"`
	PersistTimeout  time.Duration `yaml:"persist_timeout" toml:"persist_timeout"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(16)),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.InitialBackoff, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ReportMaxTokens, validation.Required, validation.Min(256)),
		validation.Field(&c.PersistQueue, validation.Required, validation.Min(1)),
		validation.Field(&c.PersistTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// PromptsConfig optionally overrides the built-in prompt texts.
type PromptsConfig struct {
	Dir         string `yaml:"dir" toml:"dir"`
	ReportTitle string `yaml:"report_title" toml:"report_title"`
}

// WatchConfig configures the journal inbox watcher and the maintenance
// schedule. An empty Dir disables both.
type WatchConfig struct {
	Dir        string   `yaml:"dir" toml:"dir"`
	User       string   `yaml:"user" toml:"user"`
	Extensions []string `yaml:"extensions" toml:"extensions"`
	Schedule   string   `yaml:"schedule" toml:"schedule"`
}

// Enabled reports whether a journal inbox is configured.
func (c *WatchConfig) Enabled() bool {
	return c.Dir != ""
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.User == "" {
		return errors.New("watch: user is required when dir is set")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Extensions, validation.Required),
		validation.Field(&c.Schedule, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Store: StoreConfig{
			Backend: StoreBackendSQLite,
			SQLite:  SQLiteConfig{Path: "./chronicle.db"},
			FS:      FSConfig{Path: "./summaries"},
		},
		LLM: LLMConfig{
			Provider:          llm.ProviderAnthropic,
			SummaryModel:      "claude-haiku-4-5",
			ReportModel:       "claude-opus-4-1",
			RequestTimeout:    2 * time.Minute,
			RequestsPerSecond: 2,
			Burst:             3,
		},
		Pipeline: PipelineConfig{
			Concurrency:     3,
			MaxRetries:      3,
			InitialBackoff:  time.Second,
			ReportMaxTokens: 4000,
			PersistQueue:    64,
			PersistTimeout:  30 * time.Second,
		},
		Watch: WatchConfig{
			Extensions: []string{".xml", ".txt", ".journal"},
			Schedule:   "@daily",
		},
	}
}
