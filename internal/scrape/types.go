// Package scrape implements the resumable crawl engine shared by the site
// crawlers: checkpointed state, rate-limited fetching with bounded retries,
// and the discovery/scrape iteration loop.
package scrape

import (
	"context"
	"time"
)

// ItemMeta is the part of a scraped item the engine itself understands:
// where it came from, when, the raw markup, and an error if extraction left
// the item unusable. Site crawlers embed it in their concrete item types.
type ItemMeta struct {
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
	RawHTML   string    `json:"-"`
	Err       string    `json:"error,omitempty"`
}

// Meta returns the embedded metadata.
func (m *ItemMeta) Meta() *ItemMeta { return m }

// Valid reports whether the item is usable: markup present and no error.
func (m *ItemMeta) Valid() bool {
	return m.RawHTML != "" && m.Err == ""
}

// Item is one fetched and parsed unit produced by a Source.
type Item interface {
	Meta() *ItemMeta
	Valid() bool
}

// Source supplies a URL discovery strategy and per-item scraping for one
// site. The engine depends only on this interface.
type Source interface {
	// Name identifies the source in logs and checkpoint files.
	Name() string

	// DiscoverURLs walks the site's URL space lazily, calling yield for each
	// candidate URL. A non-nil error from yield stops discovery and is
	// returned unchanged; any other error from the walk itself is
	// catastrophic and aborts the run.
	DiscoverURLs(ctx context.Context, yield func(url string) error) error

	// ScrapeItem fetches and parses one URL. Failures that should be
	// recorded against the URL are reported on the returned item's Err
	// field, not as an error; a non-nil error is treated the same way by
	// the engine (recorded, loop continues).
	ScrapeItem(ctx context.Context, url string) (Item, error)
}

// Limiter is the pacing contract the client honors around every fetch.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
	ReportSuccess()
	ReportFailure(rateLimited bool)
}

// Stats counts the outcome of every URL the engine consumed.
type Stats struct {
	TotalProcessed int `json:"totalProcessed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
}
