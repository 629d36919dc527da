package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/grounding/internal/logger"
)

// StaticFetcher uses Colly for plain HTTP requests.
// It implements both Checker and Fetcher.
type StaticFetcher struct {
	config Config
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg Config) *StaticFetcher {
	return &StaticFetcher{config: cfg.withDefaults()}
}

// newCollector creates a new collector for each request. Error statuses are
// delivered to OnResponse so callers can see every status code. Cancelling
// ctx aborts the request in flight.
func (f *StaticFetcher) newCollector(ctx context.Context, timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(timeout)
	return c
}

// Check issues a HEAD request.
func (f *StaticFetcher) Check(ctx context.Context, targetURL string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	logger.Debug("checking url", "url", targetURL, "timeout", f.config.CheckTimeout)

	c := f.newCollector(ctx, f.config.CheckTimeout)

	var status int
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if err := c.Head(targetURL); err != nil {
		logger.Debug("url check failed", "url", targetURL, "error", err)
		return 0, fmt.Errorf("head request failed: %w", err)
	}
	if reqErr != nil {
		return 0, fmt.Errorf("head request failed: %w", reqErr)
	}

	logger.Debug("url checked", "url", targetURL, "status", status)
	return status, nil
}

// Fetch retrieves page content using a GET request.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string) (Content, error) {
	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	logger.Debug("static fetch starting", "url", targetURL, "timeout", f.config.FetchTimeout)

	c := f.newCollector(ctx, f.config.FetchTimeout)

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = string(r.Body)
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	if err := c.Visit(targetURL); err != nil {
		logger.Debug("static fetch visit failed", "url", targetURL, "error", err)
		return result, fmt.Errorf("failed to visit URL: %w", err)
	}
	if fetchErr != nil {
		return result, fetchErr
	}
	if result.StatusCode >= 400 {
		return result, &StatusError{StatusCode: result.StatusCode}
	}

	if err := parseContent(&result, f.config.MaxChars); err != nil {
		return result, fmt.Errorf("failed to parse content: %w", err)
	}

	logger.Debug("static fetch complete", "url", targetURL, "title", result.Title, "html_size", len(result.HTML))
	return result, nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}

var (
	_ Checker = (*StaticFetcher)(nil)
	_ Fetcher = (*StaticFetcher)(nil)
)
