// Package fetcher checks and retrieves the web pages cited as reference
// sources.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Defaults for reachability checks and content fetches.
const (
	DefaultCheckTimeout = 10 * time.Second
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxChars     = 50000
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Checker probes whether a URL is reachable.
type Checker interface {
	// Check issues a HEAD request and returns the final status code after
	// redirects. A network failure returns an error and status 0.
	Check(ctx context.Context, url string) (int, error)
}

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL. Status codes of 400 and
	// above are returned as ErrHTTPStatus.
	Fetch(ctx context.Context, url string) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Content represents fetched page data. HTML and Text are truncated to the
// fetcher's character limit.
type Content struct {
	URL         string
	HTML        string
	Text        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// ErrHTTPStatus is returned for responses with status 400 or above.
var ErrHTTPStatus = errors.New("unsuccessful HTTP status")

// StatusError reports the failing status code.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrHTTPStatus, e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrHTTPStatus }

// Accessible reports whether a status code counts as reachable.
func Accessible(status int) bool {
	return status > 0 && status < 400
}

// Config holds configuration shared by fetchers.
type Config struct {
	UserAgent    string
	CheckTimeout time.Duration
	FetchTimeout time.Duration
	// MaxChars caps HTML and Text, counted in characters.
	MaxChars int
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		CheckTimeout: DefaultCheckTimeout,
		FetchTimeout: DefaultFetchTimeout,
		MaxChars:     DefaultMaxChars,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = d.CheckTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.MaxChars <= 0 {
		c.MaxChars = d.MaxChars
	}
	return c
}

// New creates a fetcher by type name: "static" or "dynamic".
func New(kind string, cfg Config) (Fetcher, error) {
	switch kind {
	case "", "static":
		return NewStatic(cfg), nil
	case "dynamic":
		return NewDynamic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (available: static, dynamic)", kind)
	}
}

// parseContent fills Title and Text from the full HTML, then truncates
// both HTML and Text to maxChars.
func parseContent(content *Content, maxChars int) error {
	if content.HTML != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
		if err != nil {
			return err
		}

		if content.Title == "" {
			content.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}

		doc.Find("script, style, noscript, iframe, svg").Remove()

		var textParts []string
		doc.Find("body").Each(func(_ int, s *goquery.Selection) {
			if text := cleanText(s.Text()); text != "" {
				textParts = append(textParts, text)
			}
		})
		content.Text = strings.Join(textParts, "\n")
	}

	content.HTML = Truncate(content.HTML, maxChars)
	content.Text = Truncate(content.Text, maxChars)
	return nil
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
