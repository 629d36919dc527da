package search

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jmylchreest/grounding/pkg/schema"
)

// Request is a single generation request sent to a Backend.
type Request struct {
	Prompt   string
	System   string
	Sampling Sampling
	// Schema constrains the response to JSON matching the schema when set.
	Schema *schema.Schema
	// Grounded enables live web search where the backend supports it.
	Grounded bool
}

// Backend is the interface every LLM service adapter implements.
type Backend interface {
	// Generate executes req and returns the raw response. Parsed is left nil.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the backend identifier (e.g., "gemini").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// BackendConfig holds common configuration for backends.
type BackendConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// BackendFactory creates a backend from config.
type BackendFactory func(ctx context.Context, cfg BackendConfig) (Backend, error)

// DefaultBackend is used when no provider is configured.
const DefaultBackend = "gemini"

// DefaultModels maps backend names to their default models.
var DefaultModels = map[string]string{
	"gemini":    "gemini-2.5-pro",
	"openai":    "gpt-4o",
	"anthropic": "claude-sonnet-4-20250514",
}

// apiKeyEnv maps backend names to the environment variables holding keys,
// in lookup order.
var apiKeyEnv = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

var registry = map[string]BackendFactory{}

func init() {
	RegisterBackend("gemini", func(ctx context.Context, cfg BackendConfig) (Backend, error) {
		return NewGeminiBackend(ctx, cfg)
	})
	RegisterBackend("openai", func(_ context.Context, cfg BackendConfig) (Backend, error) {
		return NewOpenAIBackend(cfg)
	})
	RegisterBackend("anthropic", func(_ context.Context, cfg BackendConfig) (Backend, error) {
		return NewAnthropicBackend(cfg)
	})
}

// NewBackend creates a backend by name. An empty API key is filled from the
// backend's environment variables, an empty model from DefaultModels.
func NewBackend(ctx context.Context, name string, cfg BackendConfig) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown search backend: %s (available: %s)", name, strings.Join(AvailableBackends(), ", "))
	}
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv(name)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[name]
	}
	return factory(ctx, cfg)
}

// RegisterBackend adds a backend factory.
func RegisterBackend(name string, factory BackendFactory) {
	registry[name] = factory
}

// AvailableBackends returns the registered backend names, sorted.
func AvailableBackends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered returns true if a backend is registered.
func IsRegistered(name string) bool {
	_, ok := registry[name]
	return ok
}

// APIKeyFromEnv returns the first non-empty API key variable for backend.
func APIKeyFromEnv(backend string) string {
	for _, env := range apiKeyEnv[backend] {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}
