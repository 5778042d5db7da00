package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticConfig controls the plain-HTTP fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Static implements Fetcher with a Colly collector for resources that do not
// need a browser: PDFs, sitemaps, and other static assets.
type Static struct {
	cfg           StaticConfig
	baseCollector *colly.Collector
}

// NewStatic builds a Static fetcher.
func NewStatic(cfg StaticConfig) *Static {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	// Non-2xx responses must reach OnResponse as responses, not fail the
	// visit, so callers can classify 429/503 as soft failures.
	c.ParseHTTPErrorResponse = true
	return &Static{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Close is a no-op; collectors hold no long-lived resources.
func (s *Static) Close() {}

// Fetch executes a single HTTP GET using Colly.
func (s *Static) Fetch(ctx context.Context, request Request) (Response, error) {
	collector := s.baseCollector.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.Timeout)

	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("fetch %s: %w", request.URL, err)
	}

	var (
		result   Response
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(resp *colly.Response) {
		result = Response{
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(resp *colly.Response, err error) {
		if resp != nil && resp.StatusCode > 0 {
			// HTTP-level failure: surface the status, not an error, so the
			// caller can classify it as a soft failure.
			result = Response{
				URL:        request.URL,
				StatusCode: resp.StatusCode,
				Body:       resp.Body,
				Duration:   time.Since(start),
			}
			return
		}
		fetchErr = err
	})

	if err := collector.Visit(request.URL); err != nil {
		if result.StatusCode > 0 {
			return result, nil
		}
		return Response{}, fmt.Errorf("visit %s: %w", request.URL, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return Response{}, fmt.Errorf("fetch %s: %w", request.URL, fetchErr)
	}
	if result.StatusCode == 0 {
		return Response{}, fmt.Errorf("fetch %s: no response", request.URL)
	}
	return result, nil
}

// IsTransient reports whether err looks like a retryable transport problem:
// a timeout or a dropped connection rather than a definitive server answer.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRateLimitStatus reports whether an HTTP status should be treated as a
// rate-limit signal for the adaptive limiter.
func IsRateLimitStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
