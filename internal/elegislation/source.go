// Package elegislation crawls the Hong Kong e-Legislation database. Chapter
// pages render via client-side script, so items are fetched through the
// headless renderer and discovery enumerates the chapter number space
// directly rather than trusting the sitemap to be reachable.
package elegislation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/config"
	"github.com/hklex/lexharvest/internal/scrape"
)

// contentSelector is the element whose visibility marks a rendered page.
const contentSelector = ".content"

var subsidiarySuffixes = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}

// Item is one scraped chapter.
type Item struct {
	scrape.ItemMeta
	Legislation
}

// Source discovers and scrapes chapters cap1 through the configured upper
// bound, optionally including subsidiary legislation suffixes.
type Source struct {
	client *scrape.Client
	cfg    config.SiteConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewSource builds an e-Legislation Source around a shared fetch client.
func NewSource(client *scrape.Client, cfg config.SiteConfig, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		client: client,
		cfg:    cfg,
		log:    log.With(zap.String("source", "elegislation")),
		now:    time.Now,
	}
}

// Name identifies the source in checkpoints and logs.
func (s *Source) Name() string { return "elegislation" }

// DiscoverURLs enumerates chapter URLs in numeric order. Best effort: not
// every generated URL corresponds to an existing chapter, and missing ones
// surface as soft failures during scraping.
func (s *Source) DiscoverURLs(ctx context.Context, yield func(url string) error) error {
	s.log.Info("generating chapter urls",
		zap.Int("cap_from", s.cfg.CapFrom),
		zap.Int("cap_to", s.cfg.CapTo),
		zap.Bool("include_subsidiary", s.cfg.IncludeSubsidiary),
	)

	for capNum := s.cfg.CapFrom; capNum <= s.cfg.CapTo; capNum++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		u := fmt.Sprintf("%s/hk/cap%d", s.cfg.BaseURL, capNum)
		if s.shouldInclude(u) {
			if err := yield(u); err != nil {
				return err
			}
		}

		if !s.cfg.IncludeSubsidiary {
			continue
		}
		for _, suffix := range subsidiarySuffixes {
			if err := yield(fmt.Sprintf("%s/hk/cap%d%s", s.cfg.BaseURL, capNum, suffix)); err != nil {
				return err
			}
		}
	}
	return nil
}

// DiscoverFromSitemap walks the published sitemap instead of enumerating
// chapter numbers. One level of sitemap index nesting is followed; a nested
// sitemap that fails to fetch or parse is logged and skipped. Chapter URLs
// pass through the same configuration filter as enumeration.
func (s *Source) DiscoverFromSitemap(ctx context.Context, yield func(url string) error) error {
	rootURL := s.cfg.BaseURL + "/sitemap.xml"
	s.log.Info("discovering chapters from sitemap", zap.String("url", rootURL))

	body, err := s.client.FetchBytes(ctx, rootURL)
	if err != nil {
		return fmt.Errorf("fetch sitemap: %w", err)
	}
	entries, err := ParseSitemap(string(body), s.cfg.BaseURL)
	if err != nil {
		return err
	}

	pages := entries
	if len(entries) > 0 && strings.Contains(strings.ToLower(entries[0]), ".xml") {
		pages = nil
		for _, smURL := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			nested, err := s.client.FetchBytes(ctx, smURL)
			if err != nil {
				s.log.Warn("nested sitemap fetch failed", zap.String("url", smURL), zap.Error(err))
				continue
			}
			urls, err := ParseSitemap(string(nested), s.cfg.BaseURL)
			if err != nil {
				s.log.Warn("nested sitemap parse failed", zap.String("url", smURL), zap.Error(err))
				continue
			}
			pages = append(pages, urls...)
		}
	}

	seen := make(map[string]struct{}, len(pages))
	for _, u := range pages {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if !s.shouldInclude(u) {
			continue
		}
		if err := yield(u); err != nil {
			return err
		}
	}
	return nil
}

// shouldInclude filters URLs the configuration excludes.
func (s *Source) shouldInclude(u string) bool {
	lower := strings.ToLower(u)

	if !s.cfg.IncludeSubsidiary {
		if i := strings.LastIndex(lower, "/cap"); i >= 0 {
			tail := lower[i+len("/cap"):]
			if len(tail) > 3 {
				tail = tail[:3]
			}
			for _, c := range tail {
				if c >= 'a' && c <= 'z' {
					return false
				}
			}
		}
	}

	if !s.cfg.IncludeHistorical {
		if strings.Contains(lower, "history") || strings.Contains(lower, "version") {
			return false
		}
	}
	return true
}

// ScrapeItem fetches one chapter page, waiting for the content container to
// render before parsing.
func (s *Source) ScrapeItem(ctx context.Context, pageURL string) (scrape.Item, error) {
	s.log.Info("scraping legislation", zap.String("url", pageURL))

	item := &Item{ItemMeta: scrape.ItemMeta{SourceURL: pageURL, ScrapedAt: s.now().UTC()}}

	html, err := s.client.FetchPage(ctx, pageURL, contentSelector)
	if err != nil {
		item.Err = err.Error()
		return item, nil
	}
	item.RawHTML = html

	item.Legislation = ParseLegislation(html, pageURL)
	item.PDFURL = pdfURL(html, pageURL)

	if item.ChapterNumber == "" && item.TitleEN == "" {
		s.log.Warn("no chapter or title found", zap.String("url", pageURL))
		item.Err = "could not extract legislation identifier"
	}

	return item, nil
}

// ScrapeChapter scrapes one chapter by number, e.g. "32" or "32A".
func (s *Source) ScrapeChapter(ctx context.Context, chapter string) (*Item, error) {
	chapter = strings.TrimSpace(strings.NewReplacer("CAP.", "", "CAP", "").Replace(strings.ToUpper(chapter)))
	item, err := s.ScrapeItem(ctx, fmt.Sprintf("%s/hk/cap%s", s.cfg.BaseURL, chapter))
	if err != nil {
		return nil, err
	}
	return item.(*Item), nil
}

// ScrapeSection scrapes a single section of a chapter through the per-section
// page URL, falling back to the first parsed section when the requested
// number is absent.
func (s *Source) ScrapeSection(ctx context.Context, chapter, section string) (*Section, error) {
	chapter = strings.TrimSpace(strings.NewReplacer("CAP.", "", "CAP", "").Replace(strings.ToUpper(chapter)))
	section = strings.TrimSpace(section)

	pageURL := fmt.Sprintf("%s/hk/cap%s!en@%s", s.cfg.BaseURL, chapter, section)
	html, err := s.client.FetchPage(ctx, pageURL, contentSelector)
	if err != nil {
		return nil, err
	}

	parsed := ParseLegislation(html, pageURL)
	for i := range parsed.Sections {
		if parsed.Sections[i].SectionNumber == section {
			sec := parsed.Sections[i]
			sec.SourceURL = pageURL
			return &sec, nil
		}
	}
	if len(parsed.Sections) > 0 {
		sec := parsed.Sections[0]
		sec.SourceURL = pageURL
		return &sec, nil
	}
	return nil, fmt.Errorf("no sections found in cap%s section %s", chapter, section)
}

// pdfURL finds a PDF link by href, then by anchor text or title attribute.
func pdfURL(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(strings.ToLower(href), ".pdf") {
			found = resolveRef(base, href)
			return false
		}
		title, _ := a.Attr("title")
		text := strings.ToLower(strings.TrimSpace(a.Text()) + " " + title)
		if strings.Contains(text, "pdf") || strings.Contains(text, "download") {
			found = resolveRef(base, href)
			return false
		}
		return true
	})
	return found
}

func resolveRef(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
