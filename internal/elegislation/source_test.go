package elegislation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/config"
	"github.com/hklex/lexharvest/internal/fetch"
	"github.com/hklex/lexharvest/internal/scrape"
)

type handlerFetcher struct {
	handle func(req fetch.Request) (fetch.Response, error)
}

func (f *handlerFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Response, error) {
	return f.handle(req)
}

func (f *handlerFetcher) Close() {}

func newTestSource(t *testing.T, cfg config.SiteConfig, handle func(req fetch.Request) (fetch.Response, error)) *Source {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://eleg.test"
	}
	f := &handlerFetcher{handle: handle}
	client := scrape.NewClient(f, f, nil, scrape.ClientConfig{Site: "elegislation", Timeout: time.Second}, zap.NewNop())
	return NewSource(client, cfg, zap.NewNop())
}

func TestDiscoverURLsEnumeratesChapters(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{
		CapFrom:           1,
		CapTo:             2,
		IncludeSubsidiary: true,
	}, nil)

	var urls []string
	err := src.DiscoverURLs(context.Background(), func(u string) error {
		urls = append(urls, u)
		return nil
	})
	require.NoError(t, err)

	// Two chapters, each with 12 subsidiary suffixes.
	assert.Len(t, urls, 2*(1+12))
	assert.Equal(t, "https://eleg.test/hk/cap1", urls[0])
	assert.Equal(t, "https://eleg.test/hk/cap1A", urls[1])
	assert.Contains(t, urls, "https://eleg.test/hk/cap2L")
}

func TestDiscoverURLsWithoutSubsidiary(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{
		CapFrom: 1,
		CapTo:   3,
	}, nil)

	var urls []string
	err := src.DiscoverURLs(context.Background(), func(u string) error {
		urls = append(urls, u)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://eleg.test/hk/cap1",
		"https://eleg.test/hk/cap2",
		"https://eleg.test/hk/cap3",
	}, urls)
}

func TestDiscoverURLsStopsOnYieldError(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{CapFrom: 1, CapTo: 100}, nil)

	var count int
	err := src.DiscoverURLs(context.Background(), func(string) error {
		count++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, count)
}

func TestShouldIncludeExcludesHistorical(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{CapFrom: 1, CapTo: 1}, nil)
	assert.False(t, src.shouldInclude("https://eleg.test/hk/cap32/version/2020"))
	assert.True(t, src.shouldInclude("https://eleg.test/hk/cap32"))
}

func TestScrapeItemWaitsForContent(t *testing.T) {
	var gotSelector string
	src := newTestSource(t, config.SiteConfig{}, func(req fetch.Request) (fetch.Response, error) {
		gotSelector = req.WaitSelector
		return fetch.Response{StatusCode: 200, Body: []byte(chapterFixture)}, nil
	})

	item, err := src.ScrapeItem(context.Background(), "https://eleg.test/hk/cap32")
	require.NoError(t, err)
	assert.Equal(t, ".content", gotSelector)
	require.True(t, item.Valid())

	leg, ok := item.(*Item)
	require.True(t, ok)
	assert.Equal(t, "Cap. 32", leg.ChapterNumber)
	assert.Equal(t, "Companies (Winding Up and Miscellaneous Provisions) Ordinance", leg.TitleEN)
}

func TestScrapeItemWithoutIdentifierIsInvalid(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{}, func(req fetch.Request) (fetch.Response, error) {
		return fetch.Response{StatusCode: 200, Body: []byte("<html><head><title>View Legislation</title></head><body></body></html>")}, nil
	})

	item, err := src.ScrapeItem(context.Background(), "https://eleg.test/unknown")
	require.NoError(t, err)
	assert.False(t, item.Valid())
	assert.Equal(t, "could not extract legislation identifier", item.Meta().Err)
}

func TestScrapeItemFetchFailureIsSoft(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{}, func(req fetch.Request) (fetch.Response, error) {
		return fetch.Response{StatusCode: 503}, nil
	})

	item, err := src.ScrapeItem(context.Background(), "https://eleg.test/hk/cap9999")
	require.NoError(t, err)
	assert.False(t, item.Valid())
	assert.NotEmpty(t, item.Meta().Err)
}

func TestScrapeChapterNormalizesInput(t *testing.T) {
	var fetched string
	src := newTestSource(t, config.SiteConfig{}, func(req fetch.Request) (fetch.Response, error) {
		fetched = req.URL
		return fetch.Response{StatusCode: 200, Body: []byte(chapterFixture)}, nil
	})

	item, err := src.ScrapeChapter(context.Background(), "Cap. 32")
	require.NoError(t, err)
	assert.Equal(t, "https://eleg.test/hk/cap32", fetched)
	assert.Equal(t, "Cap. 32", item.ChapterNumber)
}

func TestScrapeSectionFindsRequestedNumber(t *testing.T) {
	src := newTestSource(t, config.SiteConfig{}, func(req fetch.Request) (fetch.Response, error) {
		return fetch.Response{StatusCode: 200, Body: []byte(chapterFixture)}, nil
	})

	sec, err := src.ScrapeSection(context.Background(), "32", "2")
	require.NoError(t, err)
	assert.Equal(t, "2", sec.SectionNumber)
	assert.Equal(t, "Interpretation", sec.Title)
	assert.Equal(t, "https://eleg.test/hk/cap32!en@2", sec.SourceURL)
}

func TestPDFURLFromAnchor(t *testing.T) {
	html := `<html><body><a href="/hk/cap32!en.pdf">Download PDF</a></body></html>`
	assert.Equal(t, "https://eleg.test/hk/cap32!en.pdf", pdfURL(html, "https://eleg.test/hk/cap32"))
}

func TestDiscoverFromSitemapFollowsIndex(t *testing.T) {
	index := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://eleg.test/sitemap-1.xml</loc></sitemap>
</sitemapindex>`
	urlset := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://eleg.test/hk/cap1</loc></url>
  <url><loc>https://eleg.test/hk/cap1A</loc></url>
  <url><loc>https://eleg.test/hk/cap1!en.pdf</loc></url>
  <url><loc>https://eleg.test/about</loc></url>
</urlset>`

	src := newTestSource(t, config.SiteConfig{}, func(req fetch.Request) (fetch.Response, error) {
		switch {
		case strings.HasSuffix(req.URL, "/sitemap.xml"):
			return fetch.Response{StatusCode: 200, Body: []byte(index)}, nil
		case strings.HasSuffix(req.URL, "/sitemap-1.xml"):
			return fetch.Response{StatusCode: 200, Body: []byte(urlset)}, nil
		default:
			t.Fatalf("unexpected fetch %s", req.URL)
			return fetch.Response{}, nil
		}
	})

	var urls []string
	err := src.DiscoverFromSitemap(context.Background(), func(u string) error {
		urls = append(urls, u)
		return nil
	})
	require.NoError(t, err)

	// cap1 appears once; the pdf variant collapses onto it and non-chapter
	// pages are dropped. Subsidiary cap1A is excluded by default config.
	assert.Equal(t, []string{"https://eleg.test/hk/cap1"}, urls)
}

func TestDiscoverFromSitemapIncludesSubsidiary(t *testing.T) {
	urlset := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://eleg.test/hk/cap32</loc></url>
  <url><loc>https://eleg.test/hk/cap32A</loc></url>
</urlset>`

	src := newTestSource(t, config.SiteConfig{IncludeSubsidiary: true}, func(req fetch.Request) (fetch.Response, error) {
		return fetch.Response{StatusCode: 200, Body: []byte(urlset)}, nil
	})

	var urls []string
	err := src.DiscoverFromSitemap(context.Background(), func(u string) error {
		urls = append(urls, u)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://eleg.test/hk/cap32",
		"https://eleg.test/hk/cap32A",
	}, urls)
}
