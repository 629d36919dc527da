package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/grounding/internal/logger"
)

// DynamicFetcher renders pages in headless Chrome for sites that build
// their content with JavaScript.
type DynamicFetcher struct {
	config    Config
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewDynamic creates a dynamic fetcher. The browser starts on first use.
func NewDynamic(cfg Config) *DynamicFetcher {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug("dynamic fetcher created", "user_agent", cfg.UserAgent, "timeout", cfg.FetchTimeout)
	return &DynamicFetcher{
		config:    cfg,
		allocCtx:  allocCtx,
		cancelCtx: cancel,
	}
}

// Fetch navigates to the URL and returns the rendered document.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string) (Content, error) {
	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}
	logger.Debug("dynamic fetch starting", "url", targetURL)

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx)
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, f.config.FetchTimeout)
	defer cancelTimeout()

	// Tie the browser tab to the caller's context as well.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	resp, err := chromedp.RunResponse(timeoutCtx, chromedp.Navigate(targetURL))
	if err != nil {
		logger.Debug("dynamic fetch navigation failed", "url", targetURL, "error", err)
		return result, fmt.Errorf("browser navigation failed: %w", err)
	}
	if resp != nil {
		result.StatusCode = int(resp.Status)
		result.ContentType = resp.MimeType
	}
	if result.StatusCode >= 400 {
		return result, &StatusError{StatusCode: result.StatusCode}
	}

	var html, title string
	if err := chromedp.Run(timeoutCtx,
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	); err != nil {
		return result, fmt.Errorf("browser automation failed: %w", err)
	}

	result.HTML = html
	result.Title = title
	if err := parseContent(&result, f.config.MaxChars); err != nil {
		return result, fmt.Errorf("failed to parse content: %w", err)
	}

	logger.Debug("dynamic fetch complete", "url", targetURL, "status", result.StatusCode, "html_size", len(result.HTML))
	return result, nil
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelCtx != nil {
		f.cancelCtx()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}

var _ Fetcher = (*DynamicFetcher)(nil)
