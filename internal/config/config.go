// Package config loads grounding's configuration from defaults, an optional
// config file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/pkg/search"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GROUNDING"

// Config is the complete runtime configuration.
type Config struct {
	Search     SearchConfig     `mapstructure:"search" yaml:"search"`
	Processing ProcessingConfig `mapstructure:"processing" yaml:"processing"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Data       DataConfig       `mapstructure:"data" yaml:"data"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// SearchConfig selects the LLM backend and its sampling parameters.
type SearchConfig struct {
	Provider              string  `mapstructure:"provider" yaml:"provider"`
	Model                 string  `mapstructure:"model" yaml:"model"`
	APIKey                string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL               string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature           float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP                  float64 `mapstructure:"top_p" yaml:"top_p"`
	TopK                  int     `mapstructure:"top_k" yaml:"top_k"`
	StructuredTemperature float64 `mapstructure:"structured_temperature" yaml:"structured_temperature"`
	StructuredTopP        float64 `mapstructure:"structured_top_p" yaml:"structured_top_p"`
	GroundedStructured    bool    `mapstructure:"grounded_structured" yaml:"grounded_structured"`
}

// ProcessingConfig controls extraction runs.
type ProcessingConfig struct {
	MaxSources    int           `mapstructure:"max_sources" yaml:"max_sources"`
	TestMode      bool          `mapstructure:"test_mode" yaml:"test_mode"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Imperial      bool          `mapstructure:"imperial" yaml:"imperial"`
}

// EvaluationConfig controls URL evaluation runs.
type EvaluationConfig struct {
	CheckTimeout      time.Duration `mapstructure:"check_timeout" yaml:"check_timeout"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	MaxContentChars   int           `mapstructure:"max_content_chars" yaml:"max_content_chars"`
	JudgeContentChars int           `mapstructure:"judge_content_chars" yaml:"judge_content_chars"`
	Delay             time.Duration `mapstructure:"delay" yaml:"delay"`
	FetchMode         string        `mapstructure:"fetch_mode" yaml:"fetch_mode"`
	ContentMode       string        `mapstructure:"content_mode" yaml:"content_mode"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level          string `mapstructure:"level" yaml:"level"`
	Format         string `mapstructure:"format" yaml:"format"`
	File           string `mapstructure:"file" yaml:"file,omitempty"`
	FileEnabled    bool   `mapstructure:"file_enabled" yaml:"file_enabled"`
	ConsoleEnabled bool   `mapstructure:"console_enabled" yaml:"console_enabled"`
}

// DataConfig holds input and output locations.
type DataConfig struct {
	InputDir  string `mapstructure:"input_dir" yaml:"input_dir"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Environment variable names kept from earlier releases, mapped to their keys.
var legacyEnv = map[string]string{
	"search.model":           "GEMINI_MODEL",
	"search.temperature":     "GEMINI_TEMPERATURE",
	"search.top_p":           "GEMINI_TOP_P",
	"search.top_k":           "GEMINI_TOP_K",
	"logging.level":          "LOG_LEVEL",
	"processing.test_mode":   "TEST_MODE",
	"processing.max_sources": "MAX_SOURCES",
	"data.input_dir":         "INPUT_DIR",
	"data.output_dir":        "OUTPUT_DIR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.provider", search.DefaultBackend)
	v.SetDefault("search.model", "")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.temperature", 0.1)
	v.SetDefault("search.top_p", 0.8)
	v.SetDefault("search.top_k", 40)
	v.SetDefault("search.structured_temperature", 0.2)
	v.SetDefault("search.structured_top_p", 0.9)
	v.SetDefault("search.grounded_structured", false)

	v.SetDefault("processing.max_sources", 3)
	v.SetDefault("processing.test_mode", false)
	v.SetDefault("processing.retry_attempts", 3)
	v.SetDefault("processing.retry_delay", "1s")
	v.SetDefault("processing.imperial", false)

	v.SetDefault("evaluation.check_timeout", "10s")
	v.SetDefault("evaluation.fetch_timeout", "15s")
	v.SetDefault("evaluation.max_content_chars", 50000)
	v.SetDefault("evaluation.judge_content_chars", 2000)
	v.SetDefault("evaluation.delay", "1s")
	v.SetDefault("evaluation.fetch_mode", "static")
	v.SetDefault("evaluation.content_mode", "raw")
	v.SetDefault("evaluation.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.file_enabled", true)
	v.SetDefault("logging.console_enabled", true)

	v.SetDefault("data.input_dir", "data")
	v.SetDefault("data.output_dir", ".")

	v.SetDefault("metrics.file", "")
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an explicit config file (JSON or YAML by extension). When
	// empty, .grounding.{yaml,json} is searched in the working directory
	// and the home directory.
	File string
	// EnvFile is loaded into the environment first. Defaults to ".env";
	// a missing file is ignored.
	EnvFile string
	// Viper receives the configuration, so callers can bind flags before
	// Load. A new instance is used when nil.
	Viper *viper.Viper
}

// Load builds the configuration. Later sources override earlier ones:
// defaults, config file, environment.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(".grounding")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, err
		}
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToBoolHook,
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}
	return &cfg, nil
}

// stringToBoolHook accepts yes/no and on/off for boolean settings, as
// written in older .env files.
func stringToBoolHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return data, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(search.IsRegistered(c.Search.Provider), "search.provider: unknown provider %q (available: %s)",
		c.Search.Provider, strings.Join(search.AvailableBackends(), ", "))
	check(c.Search.Temperature >= 0 && c.Search.Temperature <= 2, "search.temperature: must be between 0 and 2")
	check(c.Search.StructuredTemperature >= 0 && c.Search.StructuredTemperature <= 2, "search.structured_temperature: must be between 0 and 2")
	check(c.Search.TopP >= 0 && c.Search.TopP <= 1, "search.top_p: must be between 0 and 1")
	check(c.Search.StructuredTopP >= 0 && c.Search.StructuredTopP <= 1, "search.structured_top_p: must be between 0 and 1")
	check(c.Search.TopK >= 0, "search.top_k: must not be negative")

	check(c.Processing.MaxSources >= 1, "processing.max_sources: must be at least 1")
	check(c.Processing.RetryAttempts >= 1, "processing.retry_attempts: must be at least 1")
	check(c.Processing.RetryDelay >= 0, "processing.retry_delay: must not be negative")

	check(c.Evaluation.CheckTimeout > 0, "evaluation.check_timeout: must be positive")
	check(c.Evaluation.FetchTimeout > 0, "evaluation.fetch_timeout: must be positive")
	check(c.Evaluation.MaxContentChars > 0, "evaluation.max_content_chars: must be positive")
	check(c.Evaluation.JudgeContentChars > 0, "evaluation.judge_content_chars: must be positive")
	check(c.Evaluation.Delay >= 0, "evaluation.delay: must not be negative")
	check(oneOf(c.Evaluation.FetchMode, "static", "dynamic"), "evaluation.fetch_mode: must be static or dynamic")
	check(oneOf(c.Evaluation.ContentMode, "raw", "text"), "evaluation.content_mode: must be raw or text")

	_, err := logger.ParseLevel(c.Logging.Level)
	check(err == nil, "logging.level: must be debug, info, warn or error")
	check(oneOf(c.Logging.Format, "text", "json"), "logging.format: must be text or json")

	return errors.Join(errs...)
}

func oneOf(s string, values ...string) bool {
	for _, v := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Search.APIKey != "" {
		c.Search.APIKey = "********"
	}
	return c
}

// ResolveInput returns path unchanged when it exists, otherwise the same
// relative path under InputDir when that exists.
func (d DataConfig) ResolveInput(path string) string {
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) || d.InputDir == "" {
		return path
	}
	candidate := filepath.Join(d.InputDir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
