package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/fetch"
	"github.com/hklex/lexharvest/internal/metrics"
)

// Retry tuning for transient transport failures.
const (
	retryBaseDelay = 4 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// ClientConfig bounds the fetch behavior of a Client.
type ClientConfig struct {
	// Site labels metrics and logs.
	Site string
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
	// MaxRetries bounds additional attempts after a transient failure.
	MaxRetries int
}

// Client is the rate-limited, retrying page fetcher handed to site crawlers.
// It classifies outcomes: an HTTP error status is a soft failure surfaced as
// *fetch.HTTPError with no retry; a transport timeout or dropped connection
// is retried with exponential backoff before being surfaced; everything else
// is returned as-is.
type Client struct {
	renderer fetch.Fetcher
	static   fetch.Fetcher
	limiter  Limiter
	cfg      ClientConfig
	log      *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client. renderer is used for pages, static for binary
// resources; either may be nil when a source never needs that path.
func NewClient(renderer, static fetch.Fetcher, limiter Limiter, cfg ClientConfig, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		renderer: renderer,
		static:   static,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
		sleep:    sleepContext,
	}
}

// FetchPage fetches a rendered page and returns its markup. waitSelector,
// when non-empty, delays completion until that selector is visible.
func (c *Client) FetchPage(ctx context.Context, url, waitSelector string) (string, error) {
	if c.renderer == nil {
		return "", fmt.Errorf("no renderer configured")
	}
	body, err := c.fetchWithRetry(ctx, c.renderer, fetch.Request{URL: url, WaitSelector: waitSelector})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes fetches a static resource (PDF, sitemap) over plain HTTP.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	f := c.static
	if f == nil {
		f = c.renderer
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	return c.fetchWithRetry(ctx, f, fetch.Request{URL: url})
}

func (c *Client) fetchWithRetry(ctx context.Context, f fetch.Fetcher, req fetch.Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			c.log.Debug("retrying fetch",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, err := c.fetchOnce(ctx, f, req)
		if err == nil {
			return body, nil
		}
		var httpErr *fetch.HTTPError
		if errors.As(err, &httpErr) || ctx.Err() != nil {
			// Soft failure or caller cancellation: no retry.
			return nil, err
		}
		if !fetch.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, f fetch.Fetcher, req fetch.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer c.limiter.Release()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.log.Debug("fetching", zap.String("url", req.URL))
	resp, err := f.Fetch(attemptCtx, req)
	if err != nil {
		c.report(false, false)
		metrics.ObservePage(c.cfg.Site, "error")
		return nil, err
	}
	metrics.ObserveFetchDuration(c.cfg.Site, resp.Duration)

	if resp.StatusCode >= 400 {
		c.report(false, fetch.IsRateLimitStatus(resp.StatusCode))
		metrics.ObservePage(c.cfg.Site, fmt.Sprintf("%d", resp.StatusCode))
		return nil, &fetch.HTTPError{URL: req.URL, StatusCode: resp.StatusCode}
	}

	c.report(true, false)
	metrics.ObservePage(c.cfg.Site, "ok")
	return resp.Body, nil
}

func (c *Client) report(success, rateLimited bool) {
	if c.limiter == nil {
		return
	}
	if success {
		c.limiter.ReportSuccess()
		return
	}
	c.limiter.ReportFailure(rateLimited)
}

func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
