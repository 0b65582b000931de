package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. LIFESIGNAL_TIMEZONE.
const EnvPrefix = "LIFESIGNAL"

// Config represents the complete lifesignal configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	Timezone string `json:"timezone" mapstructure:"timezone"`

	Storage     StorageConfig     `json:"storage" mapstructure:"storage"`
	Catalog     CatalogConfig     `json:"catalog" mapstructure:"catalog"`
	Sources     SourcesConfig     `json:"sources" mapstructure:"sources"`
	Windows     WindowsConfig     `json:"windows" mapstructure:"windows"`
	Signals     SignalsConfig     `json:"signals" mapstructure:"signals"`
	Pipeline    PipelineConfig    `json:"pipeline" mapstructure:"pipeline"`
	Budget      BudgetConfig      `json:"budget" mapstructure:"budget"`
	Interpreter InterpreterConfig `json:"interpreter" mapstructure:"interpreter"`
	Narration   NarrationConfig   `json:"narration" mapstructure:"narration"`
	Snapshots   SnapshotsConfig   `json:"snapshots" mapstructure:"snapshots"`
	Metrics     MetricsConfig     `json:"metrics" mapstructure:"metrics"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// StorageConfig selects the storage collaborator
type StorageConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // sqlite | postgres
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// CatalogConfig points at an optional catalog file merged over the defaults
type CatalogConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SourcesConfig holds explicit source enablement. Empty means all.
type SourcesConfig struct {
	Enabled []string `json:"enabled" mapstructure:"enabled"`
}

// WindowsConfig holds the day span of each window token
type WindowsConfig struct {
	LastMonthDays    int `json:"lastMonthDays" mapstructure:"lastMonthDays"`
	Last90Days       int `json:"last90Days" mapstructure:"last90Days"`
	Last12MonthsDays int `json:"last12MonthsDays" mapstructure:"last12MonthsDays"`
}

// SignalsConfig holds signal thresholds
type SignalsConfig struct {
	MomentumThreshold   float64 `json:"momentumThreshold" mapstructure:"momentumThreshold"`
	StreakToleranceDays int     `json:"streakToleranceDays" mapstructure:"streakToleranceDays"`
}

// PipelineConfig controls fan-out and timeouts
type PipelineConfig struct {
	MaxConcurrentSources  int     `json:"maxConcurrentSources" mapstructure:"maxConcurrentSources"`
	SourceTimeoutMs       int     `json:"sourceTimeoutMs" mapstructure:"sourceTimeoutMs"`
	InvocationTimeoutMs   int     `json:"invocationTimeoutMs" mapstructure:"invocationTimeoutMs"`
	FatalUnavailableRatio float64 `json:"fatalUnavailableRatio" mapstructure:"fatalUnavailableRatio"`
	QueryRowLimit         int     `json:"queryRowLimit" mapstructure:"queryRowLimit"`
}

// BudgetConfig bounds the assembled context
type BudgetConfig struct {
	MaxSources      int `json:"maxSources" mapstructure:"maxSources"`
	MaxSeriesPoints int `json:"maxSeriesPoints" mapstructure:"maxSeriesPoints"`
	MaxBytes        int `json:"maxBytes" mapstructure:"maxBytes"`
}

// InterpreterConfig selects the topic interpreter
type InterpreterConfig struct {
	Kind     string              `json:"kind" mapstructure:"kind"` // lexical | llm
	Synonyms map[string][]string `json:"synonyms" mapstructure:"synonyms"`
}

// NarrationConfig configures the OpenAI-compatible narration endpoint
type NarrationConfig struct {
	BaseURL     string  `json:"baseUrl" mapstructure:"baseUrl"`
	Model       string  `json:"model" mapstructure:"model"`
	APIKeyEnv   string  `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"maxTokens" mapstructure:"maxTokens"`
	TimeoutMs   int     `json:"timeoutMs" mapstructure:"timeoutMs"`
	MaxRetries  int     `json:"maxRetries" mapstructure:"maxRetries"`
}

// SnapshotsConfig controls the on-disk context archive
type SnapshotsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
	Retain  int    `json:"retain" mapstructure:"retain"`
}

// MetricsConfig controls the Prometheus textfile output
type MetricsConfig struct {
	Textfile string `json:"textfile" mapstructure:"textfile"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		Timezone: "UTC",
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "",
		},
		Sources: SourcesConfig{
			Enabled: []string{},
		},
		Windows: WindowsConfig{
			LastMonthDays:    30,
			Last90Days:       90,
			Last12MonthsDays: 365,
		},
		Signals: SignalsConfig{
			MomentumThreshold:   0.15,
			StreakToleranceDays: 1,
		},
		Pipeline: PipelineConfig{
			MaxConcurrentSources:  4,
			SourceTimeoutMs:       5000,
			InvocationTimeoutMs:   15000,
			FatalUnavailableRatio: 1.0,
			QueryRowLimit:         5000,
		},
		Budget: BudgetConfig{
			MaxSources:      8,
			MaxSeriesPoints: 16,
			MaxBytes:        6000,
		},
		Interpreter: InterpreterConfig{
			Kind:     "lexical",
			Synonyms: map[string][]string{},
		},
		Narration: NarrationConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.3,
			MaxTokens:   900,
			TimeoutMs:   60000,
			MaxRetries:  2,
		},
		Snapshots: SnapshotsConfig{
			Enabled: true,
			Retain:  50,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from <dir>/config.json, applying
// LIFESIGNAL_* environment overrides. A missing file yields defaults.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every default key so env overrides resolve
// even when no config file exists.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("version", cfg.Version)
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("catalog.path", cfg.Catalog.Path)
	v.SetDefault("sources.enabled", cfg.Sources.Enabled)
	v.SetDefault("windows.lastMonthDays", cfg.Windows.LastMonthDays)
	v.SetDefault("windows.last90Days", cfg.Windows.Last90Days)
	v.SetDefault("windows.last12MonthsDays", cfg.Windows.Last12MonthsDays)
	v.SetDefault("signals.momentumThreshold", cfg.Signals.MomentumThreshold)
	v.SetDefault("signals.streakToleranceDays", cfg.Signals.StreakToleranceDays)
	v.SetDefault("pipeline.maxConcurrentSources", cfg.Pipeline.MaxConcurrentSources)
	v.SetDefault("pipeline.sourceTimeoutMs", cfg.Pipeline.SourceTimeoutMs)
	v.SetDefault("pipeline.invocationTimeoutMs", cfg.Pipeline.InvocationTimeoutMs)
	v.SetDefault("pipeline.fatalUnavailableRatio", cfg.Pipeline.FatalUnavailableRatio)
	v.SetDefault("pipeline.queryRowLimit", cfg.Pipeline.QueryRowLimit)
	v.SetDefault("budget.maxSources", cfg.Budget.MaxSources)
	v.SetDefault("budget.maxSeriesPoints", cfg.Budget.MaxSeriesPoints)
	v.SetDefault("budget.maxBytes", cfg.Budget.MaxBytes)
	v.SetDefault("interpreter.kind", cfg.Interpreter.Kind)
	v.SetDefault("narration.baseUrl", cfg.Narration.BaseURL)
	v.SetDefault("narration.model", cfg.Narration.Model)
	v.SetDefault("narration.apiKeyEnv", cfg.Narration.APIKeyEnv)
	v.SetDefault("narration.temperature", cfg.Narration.Temperature)
	v.SetDefault("narration.maxTokens", cfg.Narration.MaxTokens)
	v.SetDefault("narration.timeoutMs", cfg.Narration.TimeoutMs)
	v.SetDefault("narration.maxRetries", cfg.Narration.MaxRetries)
	v.SetDefault("snapshots.enabled", cfg.Snapshots.Enabled)
	v.SetDefault("snapshots.dir", cfg.Snapshots.Dir)
	v.SetDefault("snapshots.retain", cfg.Snapshots.Retain)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.maxSize", cfg.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", cfg.Logging.MaxBackups)
}

// LoadDotEnv loads .env files into the process environment. Missing
// files are skipped; variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	for _, p := range files {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the configuration to <dir>/config.json
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// SourceTimeout returns the per-source query timeout
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Pipeline.SourceTimeoutMs) * time.Millisecond
}

// InvocationTimeout returns the whole-invocation deadline
func (c *Config) InvocationTimeout() time.Duration {
	return time.Duration(c.Pipeline.InvocationTimeoutMs) * time.Millisecond
}

// NarrationTimeout returns the narration request timeout
func (c *Config) NarrationTimeout() time.Duration {
	return time.Duration(c.Narration.TimeoutMs) * time.Millisecond
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if _, err := c.Location(); err != nil {
		return &ConfigError{Field: "timezone", Message: err.Error()}
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return &ConfigError{Field: "storage.driver", Message: fmt.Sprintf("unknown driver %q", c.Storage.Driver)}
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return &ConfigError{Field: "storage.dsn", Message: "postgres requires a dsn"}
	}
	if c.Windows.LastMonthDays <= 0 || c.Windows.Last90Days <= 0 || c.Windows.Last12MonthsDays <= 0 {
		return &ConfigError{Field: "windows", Message: "window spans must be positive"}
	}
	if c.Signals.MomentumThreshold < 0 {
		return &ConfigError{Field: "signals.momentumThreshold", Message: "must not be negative"}
	}
	if c.Signals.StreakToleranceDays < 0 {
		return &ConfigError{Field: "signals.streakToleranceDays", Message: "must not be negative"}
	}
	if c.Pipeline.MaxConcurrentSources <= 0 {
		return &ConfigError{Field: "pipeline.maxConcurrentSources", Message: "must be positive"}
	}
	if c.Pipeline.SourceTimeoutMs <= 0 || c.Pipeline.InvocationTimeoutMs <= 0 {
		return &ConfigError{Field: "pipeline", Message: "timeouts must be positive"}
	}
	if l := c.Pipeline.QueryRowLimit; l < 0 || (l > 0 && l < c.longestWindowDays()) {
		return &ConfigError{Field: "pipeline.queryRowLimit", Message: fmt.Sprintf("must be 0 or at least %d days", c.longestWindowDays())}
	}
	if r := c.Pipeline.FatalUnavailableRatio; r <= 0 || r > 1 {
		return &ConfigError{Field: "pipeline.fatalUnavailableRatio", Message: "must be in (0, 1]"}
	}
	if c.Budget.MaxSources <= 0 || c.Budget.MaxSeriesPoints <= 0 || c.Budget.MaxBytes <= 0 {
		return &ConfigError{Field: "budget", Message: "limits must be positive"}
	}
	switch c.Interpreter.Kind {
	case "lexical", "llm":
	default:
		return &ConfigError{Field: "interpreter.kind", Message: fmt.Sprintf("unknown interpreter %q", c.Interpreter.Kind)}
	}
	return nil
}

func (c *Config) longestWindowDays() int {
	return max(c.Windows.LastMonthDays, c.Windows.Last90Days, c.Windows.Last12MonthsDays)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
