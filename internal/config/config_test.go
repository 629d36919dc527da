package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points Load at an empty directory so no stray config or .env
// file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, name := range []string{"GEMINI_MODEL", "LOG_LEVEL", "TEST_MODE", "MAX_SOURCES", "INPUT_DIR", "OUTPUT_DIR"} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Provider != "gemini" || cfg.Search.Temperature != 0.1 || cfg.Search.TopK != 40 {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Processing.MaxSources != 3 || cfg.Processing.RetryAttempts != 3 || cfg.Processing.RetryDelay != time.Second {
		t.Errorf("Processing = %+v", cfg.Processing)
	}
	if cfg.Evaluation.CheckTimeout != 10*time.Second || cfg.Evaluation.FetchTimeout != 15*time.Second ||
		cfg.Evaluation.MaxContentChars != 50000 || cfg.Evaluation.JudgeContentChars != 2000 {
		t.Errorf("Evaluation = %+v", cfg.Evaluation)
	}
	if cfg.Data.InputDir != "data" || cfg.Data.OutputDir != "." {
		t.Errorf("Data = %+v", cfg.Data)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_TestModeWords(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"yes", true},
		{"YES", true},
		{"true", true},
		{"1", true},
		{"on", true},
		{"no", false},
		{"false", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv("TEST_MODE", tt.value)

			cfg, err := Load(Options{})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Processing.TestMode != tt.want {
				t.Errorf("TestMode = %v, want %v", cfg.Processing.TestMode, tt.want)
			}
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "grounding.yaml")
	yaml := `search:
  model: gemini-2.5-flash
  top_k: 20
processing:
  retry_delay: 250ms
evaluation:
  fetch_mode: dynamic
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GROUNDING_SEARCH_TOP_K", "10")
	t.Setenv("MAX_SOURCES", "5")
	t.Setenv("GROUNDING_EVALUATION_CONTENT_MODE", "text")

	cfg, err := Load(Options{File: file})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.File != file {
		t.Errorf("File = %q", cfg.File)
	}
	if cfg.Search.Model != "gemini-2.5-flash" {
		t.Errorf("Model = %q", cfg.Search.Model)
	}
	if cfg.Search.TopK != 10 {
		t.Errorf("TopK = %d, want env override 10", cfg.Search.TopK)
	}
	if cfg.Processing.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v", cfg.Processing.RetryDelay)
	}
	if cfg.Processing.MaxSources != 5 {
		t.Errorf("MaxSources = %d, want legacy env 5", cfg.Processing.MaxSources)
	}
	if cfg.Evaluation.FetchMode != "dynamic" || cfg.Evaluation.ContentMode != "text" {
		t.Errorf("Evaluation = %+v", cfg.Evaluation)
	}
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_MODEL", "legacy-model")
	t.Setenv("GROUNDING_SEARCH_MODEL", "prefixed-model")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.Model != "prefixed-model" {
		t.Errorf("Model = %q", cfg.Search.Model)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(Options{File: filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Search.Provider = "bard" }, "search.provider"},
		{"temperature", func(c *Config) { c.Search.Temperature = 3 }, "search.temperature"},
		{"top_p", func(c *Config) { c.Search.TopP = 1.5 }, "search.top_p"},
		{"max_sources", func(c *Config) { c.Processing.MaxSources = 0 }, "processing.max_sources"},
		{"retry_attempts", func(c *Config) { c.Processing.RetryAttempts = 0 }, "processing.retry_attempts"},
		{"fetch_mode", func(c *Config) { c.Evaluation.FetchMode = "browser" }, "evaluation.fetch_mode"},
		{"content_mode", func(c *Config) { c.Evaluation.ContentMode = "markdown" }, "evaluation.content_mode"},
		{"level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(Options{})
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{Search: SearchConfig{APIKey: "secret"}}
	if got := cfg.Redacted().Search.APIKey; got == "secret" {
		t.Error("API key not redacted")
	}
	if cfg.Search.APIKey != "secret" {
		t.Error("Redacted modified the original")
	}
}

func TestResolveInput(t *testing.T) {
	dir := isolate(t)
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "products.csv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := DataConfig{InputDir: "data"}
	if got := d.ResolveInput("products.csv"); got != filepath.Join("data", "products.csv") {
		t.Errorf("ResolveInput() = %q", got)
	}
	if got := d.ResolveInput("missing.csv"); got != "missing.csv" {
		t.Errorf("ResolveInput(missing) = %q", got)
	}
}
