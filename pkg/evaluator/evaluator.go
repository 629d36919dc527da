// Package evaluator verifies the reference URLs produced by an extraction
// run. Each URL is checked for reachability, fetched, and judged by an LLM
// against the expected product data.
package evaluator

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/grounding/internal/logger"
	"github.com/jmylchreest/grounding/pkg/fetcher"
	"github.com/jmylchreest/grounding/pkg/search"
)

// Validation notes for results that never reach the judge.
const (
	NoteNotAccessible = "URL not accessible"
	NoteFetchFailed   = "Could not fetch page content"
	NoteUnparseable   = "Unable to parse LLM response"
)

const (
	// DefaultJudgeChars is how much page content the judge sees.
	DefaultJudgeChars = 2000
	// DefaultDelay is the pause after each URL.
	DefaultDelay = time.Second
)

// ContentMode selects what page content is sent to the judge.
type ContentMode string

const (
	// ContentRaw sends the response body as fetched.
	ContentRaw ContentMode = "raw"
	// ContentText sends the visible text with markup removed.
	ContentText ContentMode = "text"
)

// ParseContentMode validates a content mode name.
func ParseContentMode(s string) (ContentMode, error) {
	switch ContentMode(strings.ToLower(s)) {
	case "", ContentRaw:
		return ContentRaw, nil
	case ContentText:
		return ContentText, nil
	default:
		return "", fmt.Errorf("unknown content mode: %s (available: raw, text)", s)
	}
}

// Judge answers a free-form prompt.
type Judge interface {
	Generate(ctx context.Context, prompt string) (*search.Response, error)
}

// Expected holds the values the page should agree with, as written in the
// extraction output. Empty values are shown to the judge as N/A.
type Expected struct {
	Weight string
	Length string
	Width  string
	Height string
}

// ValidationResult is the outcome for one URL. Nil pointers mean the
// value was never determined.
type ValidationResult struct {
	URL             string
	Accessible      bool
	StatusCode      *int
	HasCorrectInfo  *bool
	ConfidenceScore *float64
	Notes           string
}

// Evaluator runs the check, fetch and judge steps for URLs.
type Evaluator struct {
	checker     fetcher.Checker
	fetcher     fetcher.Fetcher
	judge       Judge
	contentMode ContentMode
	judgeChars  int
	delay       time.Duration
	testMode    bool
	console     io.Writer
	onResult    func(ValidationResult)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithContentMode selects raw or text content for the judge.
func WithContentMode(m ContentMode) Option {
	return func(e *Evaluator) { e.contentMode = m }
}

// WithJudgeChars limits how many characters of content the judge sees.
func WithJudgeChars(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.judgeChars = n
		}
	}
}

// WithDelay sets the pause after each URL. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(e *Evaluator) { e.delay = d }
}

// WithTestMode limits CSV evaluation to the first data row.
func WithTestMode(enabled bool) Option {
	return func(e *Evaluator) { e.testMode = enabled }
}

// WithConsole sets where operator progress lines are printed.
func WithConsole(w io.Writer) Option {
	return func(e *Evaluator) { e.console = w }
}

// WithResultHook registers a callback invoked after every URL.
func WithResultHook(fn func(ValidationResult)) Option {
	return func(e *Evaluator) { e.onResult = fn }
}

// New creates an evaluator. checker probes reachability and f retrieves
// page content; a StaticFetcher can serve as both.
func New(checker fetcher.Checker, f fetcher.Fetcher, judge Judge, opts ...Option) *Evaluator {
	e := &Evaluator{
		checker:     checker,
		fetcher:     f,
		judge:       judge,
		contentMode: ContentRaw,
		judgeChars:  DefaultJudgeChars,
		delay:       DefaultDelay,
		console:     io.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateURL checks, fetches and judges a single URL.
func (e *Evaluator) EvaluateURL(ctx context.Context, url, manufacturer, partNumber, description string, expected Expected) ValidationResult {
	url = strings.TrimSpace(url)
	result := ValidationResult{URL: url}

	if url == "" {
		result.Notes = NoteNotAccessible
		return result
	}

	status, err := e.checker.Check(ctx, url)
	if err != nil {
		logger.Debug("url check failed", "url", url, "error", err)
		result.Notes = NoteNotAccessible
		return result
	}
	result.StatusCode = &status
	if !fetcher.Accessible(status) {
		result.Notes = NoteNotAccessible
		return result
	}
	result.Accessible = true

	content, err := e.fetcher.Fetch(ctx, url)
	body := content.HTML
	if e.contentMode == ContentText {
		body = content.Text
	}
	if err != nil || body == "" {
		if err != nil {
			logger.Debug("content fetch failed", "url", url, "error", err)
		}
		result.Notes = NoteFetchFailed
		return result
	}

	prompt := BuildJudgePrompt(body, e.judgeChars, manufacturer, partNumber, description, expected)
	correct, confidence, notes := e.validate(ctx, prompt)
	result.HasCorrectInfo = &correct
	result.ConfidenceScore = &confidence
	result.Notes = notes
	return result
}

func (e *Evaluator) validate(ctx context.Context, prompt string) (bool, float64, string) {
	resp, err := e.judge.Generate(ctx, prompt)
	if err != nil {
		logger.Error("llm validation failed", "error", err)
		return false, 0, fmt.Sprintf("Validation error: %v", err)
	}
	if resp == nil {
		return false, 0, NoteUnparseable
	}
	return ParseJudgement(resp.Text)
}

// ParseJudgement parses a STATUS|CONFIDENCE|EXPLANATION reply. Only the
// status CORRECT counts as correct. Replies that do not fit the format give
// a zero-confidence result.
func ParseJudgement(text string) (bool, float64, string) {
	parts := strings.Split(strings.TrimSpace(text), "|")
	if len(parts) < 3 {
		return false, 0, NoteUnparseable
	}
	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return false, 0, NoteUnparseable
	}
	return strings.TrimSpace(parts[0]) == "CORRECT", confidence, strings.TrimSpace(parts[2])
}

// BuildJudgePrompt renders the judging prompt with the first limit
// characters of content.
func BuildJudgePrompt(content string, limit int, manufacturer, partNumber, description string, expected Expected) string {
	return fmt.Sprintf(`Analyze the following webpage content to determine if it contains accurate information about this product:

Expected Product:
- Manufacturer: %s
- Part Number: %s
- Description: %s
- Expected Weight: %s kg
- Expected Dimensions: %s x %s x %s cm

Webpage Content (first %d chars):
%s

Please evaluate:
1. Does this page contain information about the correct product (matching manufacturer and part number)?
2. Are the product specifications (dimensions, weight) consistent with expected values?
3. Is this a reliable source (manufacturer site, official retailer, technical documentation)?

Respond with:
- CORRECT: if product matches and specs are consistent
- INCORRECT: if wrong product or significantly different specs
- PARTIAL: if correct product but missing/unclear specs

Also provide a confidence score (0.0-1.0) and brief explanation.

Format: STATUS|CONFIDENCE|EXPLANATION`,
		manufacturer, partNumber, description,
		orNA(expected.Weight), orNA(expected.Length), orNA(expected.Width), orNA(expected.Height),
		limit, fetcher.Truncate(content, limit))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
