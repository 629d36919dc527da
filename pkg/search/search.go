// Package search provides grounded and structured search over LLM backends.
//
// A Client wraps a Backend (Gemini, OpenAI, Anthropic) and adds the query
// handling shared by all of them: blank-query rejection, the search
// optimisation preamble, sampling presets, schema parsing and observer
// notification. Retrying is left to callers.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/pkg/schema"
)

var (
	// ErrEmptyQuery is returned when the query is blank after trimming.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrNoSchema is returned by StructuredSearch when no schema is given.
	ErrNoSchema = errors.New("structured search requires a schema")
)

// Sampling holds the generation parameters for one kind of call.
// Zero TopK leaves the backend default in place.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
}

// DefaultSearchSampling is used for free-text grounded search.
func DefaultSearchSampling() Sampling {
	return Sampling{Temperature: 0.1, TopP: 0.8, TopK: 40}
}

// DefaultStructuredSampling is used for schema-constrained search.
func DefaultStructuredSampling() Sampling {
	return Sampling{Temperature: 0.2, TopP: 0.9}
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the result of a search call.
type Response struct {
	Text string
	// Parsed holds the validated schema object (a pointer to the schema's
	// struct type) or nil when the model did not produce a conforming answer.
	Parsed any
	// ParseError records why Parsed is nil for structured calls.
	ParseError   error
	Grounding    *Grounding
	Model        string
	FinishReason string
	Usage        Usage
	Duration     time.Duration
}

// Client performs searches against a single backend.
type Client struct {
	backend    Backend
	search     Sampling
	structured Sampling
	grounded   bool
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithSearchSampling overrides the free-text search sampling.
func WithSearchSampling(s Sampling) Option {
	return func(c *Client) { c.search = s }
}

// WithStructuredSampling overrides the structured search sampling.
func WithStructuredSampling(s Sampling) Option {
	return func(c *Client) { c.structured = s }
}

// WithGroundedStructured enables live search grounding on structured calls.
// Not every backend supports grounding and a response schema together.
func WithGroundedStructured(enabled bool) Option {
	return func(c *Client) { c.grounded = enabled }
}

// WithObserver registers an observer notified after every backend call.
func WithObserver(obs Observer) Option {
	return func(c *Client) { c.observer = obs }
}

// New creates a Client on top of backend.
func New(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		search:     DefaultSearchSampling(),
		structured: DefaultStructuredSampling(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the backend name.
func (c *Client) Name() string { return c.backend.Name() }

// Model returns the backend model.
func (c *Client) Model() string { return c.backend.Model() }

// Search sends a free-text grounded query.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	return c.call(ctx, "search", Request{
		Prompt:   OptimizeQuery(query),
		Sampling: c.search,
		Grounded: true,
	})
}

// StructuredSearch sends query constrained to s. The schema's field list is
// sent as the system instruction, so backends without native schema
// enforcement still see every required field. A response whose text does
// not decode into a valid s object is returned with a nil Parsed field, not
// an error.
func (c *Client) StructuredSearch(ctx context.Context, query string, s *schema.Schema) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if s == nil {
		return nil, ErrNoSchema
	}

	resp, err := c.call(ctx, "structured", Request{
		Prompt:   query,
		System:   s.ToPromptDescription(),
		Sampling: c.structured,
		Schema:   s,
		Grounded: c.grounded,
	})
	if err != nil {
		return nil, err
	}

	parsed, perr := s.Parse([]byte(resp.Text))
	if perr != nil {
		logger.Warn("structured response rejected",
			"schema", s.Name,
			"backend", c.backend.Name(),
			"error", perr)
		resp.ParseError = perr
		return resp, nil
	}
	resp.Parsed = parsed
	return resp, nil
}

// Generate sends prompt as-is without grounding or a schema.
func (c *Client) Generate(ctx context.Context, prompt string) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyQuery
	}
	return c.call(ctx, "generate", Request{
		Prompt:   prompt,
		Sampling: c.structured,
	})
}

func (c *Client) call(ctx context.Context, kind string, req Request) (*Response, error) {
	logger.Debug("search request",
		"kind", kind,
		"backend", c.backend.Name(),
		"model", c.backend.Model(),
		"prompt_size", len(req.Prompt),
		"grounded", req.Grounded)

	start := time.Now()
	resp, err := c.backend.Generate(ctx, req)
	duration := time.Since(start)

	if c.observer != nil {
		event := CallEvent{
			Backend:    c.backend.Name(),
			Model:      c.backend.Model(),
			Kind:       kind,
			PromptSize: len(req.Prompt),
			Grounded:   req.Grounded,
			StartedAt:  start,
			Duration:   duration,
			Error:      err,
		}
		if resp != nil {
			if resp.Model != "" {
				event.Model = resp.Model
			}
			event.Usage = resp.Usage
			if resp.Grounding != nil {
				event.Sources = len(resp.Grounding.Chunks)
			}
		}
		c.observer.OnCall(ctx, event)
	}

	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.backend.Name(), kind, err)
	}
	if resp.Duration == 0 {
		resp.Duration = duration
	}

	logger.Debug("search response",
		"kind", kind,
		"model", resp.Model,
		"finish_reason", resp.FinishReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", duration)
	return resp, nil
}

// OptimizeQuery wraps a free-text query with instructions that steer the
// model toward authoritative product sources.
func OptimizeQuery(query string) string {
	return fmt.Sprintf(`Search for accurate and current information about: %s

Focus on finding:
- Official product specifications
- Manufacturer documentation
- Technical datasheets
- Verified retailer information

Prioritize recent and authoritative sources.
`, query)
}
