package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmylchreest/grounding/pkg/schema"
)

type fakeBackend struct {
	text     string
	err      error
	requests []Request
	resp     *Response
}

func (f *fakeBackend) Generate(_ context.Context, req Request) (*Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		r := *f.resp
		return &r, nil
	}
	return &Response{Text: f.text, Model: "fake-1"}, nil
}

func (f *fakeBackend) Name() string  { return "fake" }
func (f *fakeBackend) Model() string { return "fake-1" }

func TestSearch_EmptyQuery(t *testing.T) {
	c := New(&fakeBackend{})
	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := c.Search(context.Background(), q); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Search(%q) error = %v, want ErrEmptyQuery", q, err)
		}
		if _, err := c.StructuredSearch(context.Background(), q, nil); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("StructuredSearch(%q) error = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestSearch_BuildsGroundedRequest(t *testing.T) {
	fb := &fakeBackend{text: "answer"}
	c := New(fb)

	resp, err := c.Search(context.Background(), "Acme XYZ-100 weight")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Text != "answer" {
		t.Errorf("Text = %q", resp.Text)
	}

	req := fb.requests[0]
	if !req.Grounded || req.Schema != nil {
		t.Errorf("expected grounded free-text request, got %+v", req)
	}
	if req.Sampling != DefaultSearchSampling() {
		t.Errorf("Sampling = %+v", req.Sampling)
	}
	if !strings.Contains(req.Prompt, "information about: Acme XYZ-100 weight") ||
		!strings.Contains(req.Prompt, "Technical datasheets") {
		t.Errorf("prompt not optimised:\n%s", req.Prompt)
	}
}

func TestStructuredSearch_NoSchema(t *testing.T) {
	c := New(&fakeBackend{})
	if _, err := c.StructuredSearch(context.Background(), "q", nil); !errors.Is(err, ErrNoSchema) {
		t.Errorf("expected ErrNoSchema, got %v", err)
	}
}

func TestStructuredSearch_Parsed(t *testing.T) {
	fb := &fakeBackend{text: `{"weight_kg":0.085,"length_cm":10.5,"width_cm":6,"height_cm":3.5,"reference_sources":["https://acme.com/xyz-100"]}`}
	c := New(fb, WithStructuredSampling(Sampling{Temperature: 0.3, TopP: 0.5}))
	s := schema.MustSchema[schema.ProductSpecification]()

	resp, err := c.StructuredSearch(context.Background(), "prompt", &s)
	if err != nil {
		t.Fatalf("StructuredSearch() error = %v", err)
	}
	spec, ok := resp.Parsed.(*schema.ProductSpecification)
	if !ok {
		t.Fatalf("Parsed = %T, want *ProductSpecification", resp.Parsed)
	}
	if spec.WeightKg != 0.085 {
		t.Errorf("WeightKg = %v", spec.WeightKg)
	}

	req := fb.requests[0]
	if req.Prompt != "prompt" {
		t.Errorf("structured prompt should be sent as-is, got %q", req.Prompt)
	}
	if req.Grounded {
		t.Error("structured search should not be grounded by default")
	}
	if req.Sampling.Temperature != 0.3 || req.Schema == nil {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.System, "- height_cm (number, required)") {
		t.Errorf("system instruction should list the schema fields, got %q", req.System)
	}
}

func TestStructuredSearch_NonConformingLeavesParsedNil(t *testing.T) {
	fb := &fakeBackend{text: `{"weight_kg":-1,"length_cm":1,"width_cm":1,"height_cm":1,"reference_sources":["https://a.com"]}`}
	c := New(fb, WithGroundedStructured(true))
	s := schema.MustSchema[schema.ProductSpecification]()

	resp, err := c.StructuredSearch(context.Background(), "prompt", &s)
	if err != nil {
		t.Fatalf("StructuredSearch() error = %v", err)
	}
	if resp.Parsed != nil {
		t.Errorf("Parsed = %v, want nil", resp.Parsed)
	}
	var verrs schema.ValidationErrors
	if !errors.As(resp.ParseError, &verrs) {
		t.Errorf("ParseError = %v, want ValidationErrors", resp.ParseError)
	}
	if !fb.requests[0].Grounded {
		t.Error("WithGroundedStructured should ground structured calls")
	}
}

func TestSearch_BackendErrorPropagates(t *testing.T) {
	sentinel := errors.New("quota exceeded")
	c := New(&fakeBackend{err: sentinel})
	s := schema.MustSchema[schema.BatteryInformation]()

	if _, err := c.Search(context.Background(), "q"); !errors.Is(err, sentinel) {
		t.Errorf("Search error = %v", err)
	}
	if _, err := c.StructuredSearch(context.Background(), "q", &s); !errors.Is(err, sentinel) {
		t.Errorf("StructuredSearch error = %v", err)
	}
	if _, err := c.Generate(context.Background(), "q"); !errors.Is(err, sentinel) {
		t.Errorf("Generate error = %v", err)
	}
}

func TestGenerate_PlainRequest(t *testing.T) {
	fb := &fakeBackend{text: "CORRECT|0.9|ok"}
	c := New(fb)

	resp, err := c.Generate(context.Background(), "judge this")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "CORRECT|0.9|ok" {
		t.Errorf("Text = %q", resp.Text)
	}
	req := fb.requests[0]
	if req.Grounded || req.Schema != nil || req.Prompt != "judge this" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestObserver(t *testing.T) {
	var events []CallEvent
	obs := ObserverFunc(func(_ context.Context, e CallEvent) { events = append(events, e) })

	fb := &fakeBackend{resp: &Response{
		Text:      "x",
		Model:     "fake-2",
		Usage:     Usage{InputTokens: 10, OutputTokens: 3},
		Grounding: &Grounding{Chunks: []Chunk{{URI: "https://a.com"}, {URI: "https://b.com"}}},
	}}
	c := New(fb, WithObserver(NewMultiObserver(obs, nil)))

	if _, err := c.Search(context.Background(), "q"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	fb.err = errors.New("down")
	_, _ = c.Generate(context.Background(), "q")

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first := events[0]
	if first.Kind != "search" || first.Model != "fake-2" || first.Sources != 2 || first.Usage.InputTokens != 10 || !first.Grounded {
		t.Errorf("unexpected first event %+v", first)
	}
	if events[1].Kind != "generate" || events[1].Error == nil {
		t.Errorf("unexpected second event %+v", events[1])
	}
}

func TestRegistry(t *testing.T) {
	var got BackendConfig
	RegisterBackend("test-backend", func(_ context.Context, cfg BackendConfig) (Backend, error) {
		got = cfg
		return &fakeBackend{}, nil
	})
	t.Cleanup(func() { delete(registry, "test-backend") })

	DefaultModels["test-backend"] = "test-model"
	t.Cleanup(func() { delete(DefaultModels, "test-backend") })

	if _, err := NewBackend(context.Background(), "test-backend", BackendConfig{APIKey: "k"}); err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if got.Model != "test-model" || got.APIKey != "k" {
		t.Errorf("factory got %+v", got)
	}

	if _, err := NewBackend(context.Background(), "nope", BackendConfig{}); err == nil || !strings.Contains(err.Error(), "gemini") {
		t.Errorf("expected unknown backend error listing available, got %v", err)
	}

	names := AvailableBackends()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("AvailableBackends not sorted: %v", names)
		}
	}
	for _, name := range []string{"gemini", "openai", "anthropic"} {
		if !IsRegistered(name) {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestNewBackend_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	for _, name := range []string{"gemini", "openai", "anthropic"} {
		if _, err := NewBackend(context.Background(), name, BackendConfig{}); err == nil {
			t.Errorf("%s: expected missing key error", name)
		}
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	if got := APIKeyFromEnv("gemini"); got != "google-key" {
		t.Errorf("fallback key = %q", got)
	}
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	if got := APIKeyFromEnv("gemini"); got != "gemini-key" {
		t.Errorf("primary key = %q", got)
	}
	if got := APIKeyFromEnv("unknown"); got != "" {
		t.Errorf("unknown backend key = %q", got)
	}
}
