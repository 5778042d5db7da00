// Package judiciary crawls the Hong Kong Judiciary Legal Reference System.
//
// The LRS robots.txt disallows automated access. Use only with authorization,
// and keep the request delay at 3 seconds or more.
package judiciary

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/citation"
	"github.com/hklex/lexharvest/internal/config"
	"github.com/hklex/lexharvest/internal/pdftext"
	"github.com/hklex/lexharvest/internal/scrape"
)

// Case is one scraped judgment.
type Case struct {
	scrape.ItemMeta
	Judgment
}

// Search results embed detail ids in script variables:
// var temp32205='DIS=32205&QS=%2B&TP=JU'
var disIDRe = regexp.MustCompile(`var\s+temp\d+='DIS=(\d+)&`)

// Source discovers and scrapes judgments day by day through the LRS search
// interface.
type Source struct {
	client  *scrape.Client
	cfg     config.SiteConfig
	log     *zap.Logger
	primed  bool
	now     func() time.Time
}

// NewSource builds a judiciary Source around a shared fetch client.
func NewSource(client *scrape.Client, cfg config.SiteConfig, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		client: client,
		cfg:    cfg,
		log:    log.With(zap.String("source", "judiciary")),
		now:    time.Now,
	}
}

// Name identifies the source in checkpoints and logs.
func (s *Source) Name() string { return "judiciary" }

// ensureSession visits the landing page once so the search endpoint sees an
// established session cookie.
func (s *Source) ensureSession(ctx context.Context) error {
	if s.primed {
		return nil
	}
	initURL := s.cfg.BaseURL + "/lrs/common/ju/judgment.jsp"
	s.log.Info("initializing session", zap.String("url", initURL))
	if _, err := s.client.FetchPage(ctx, initURL, ""); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	s.primed = true
	return nil
}

// DiscoverURLs walks every day in the configured year range and yields the
// detail URL of each judgment handed down that day. A day whose search fails
// is logged and skipped; discovery itself only aborts on yield error.
func (s *Source) DiscoverURLs(ctx context.Context, yield func(url string) error) error {
	if err := s.ensureSession(ctx); err != nil {
		return err
	}

	start := time.Date(s.cfg.YearFrom, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(s.cfg.YearTo, time.December, 31, 0, 0, 0, 0, time.UTC)
	if today := s.now().UTC().Truncate(24 * time.Hour); end.After(today) {
		end = today
	}

	s.log.Info("starting date-driven discovery",
		zap.Int("year_from", s.cfg.YearFrom),
		zap.Int("year_to", s.cfg.YearTo),
	)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.discoverDay(ctx, day, yield); err != nil {
			// A yield error must stop the walk; a search failure must not.
			var ys yieldStop
			if errors.As(err, &ys) {
				return ys.err
			}
			if ctx.Err() != nil {
				return err
			}
			s.log.Error("failed to index date",
				zap.String("date", day.Format("2006-01-02")),
				zap.Error(err),
			)
		}
	}
	return nil
}

type yieldStop struct{ err error }

func (y yieldStop) Error() string { return y.err.Error() }
func (y yieldStop) Unwrap() error { return y.err }

func (s *Source) discoverDay(ctx context.Context, day time.Time, yield func(string) error) error {
	page := 1
	totalPages := 1

	for page <= totalPages {
		searchURL := s.searchURL(day, page)
		html, err := s.client.FetchPage(ctx, searchURL, "")
		if err != nil {
			return err
		}
		if html == "" {
			return nil
		}

		if strings.Contains(html, "No record found") || strings.Contains(html, "0</span>&nbsp; found") {
			return nil
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return fmt.Errorf("parse search results: %w", err)
		}

		if page == 1 {
			totalPages = totalPagesFrom(doc)
			s.log.Info("found judgments for date",
				zap.String("date", day.Format("2006-01-02")),
				zap.Int("total_pages", totalPages),
			)
		}

		urls := s.detailURLs(html)
		if len(urls) == 0 {
			return nil
		}
		for _, u := range urls {
			if err := yield(u); err != nil {
				return yieldStop{err: err}
			}
		}

		page++
	}
	return nil
}

func totalPagesFrom(doc *goquery.Document) int {
	if span := doc.Find("span#searchresult-totalpages"); span.Length() > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(span.Text())); err == nil {
			return n
		}
	}
	if items := doc.Find("ul.pagination li.page-item"); items.Length() > 0 {
		return items.Length()
	}
	return 1
}

// detailURLs builds detail body URLs from the script-embedded DIS ids,
// deduplicated in order of appearance.
func (s *Source) detailURLs(html string) []string {
	var urls []string
	seen := make(map[string]struct{})
	for _, m := range disIDRe.FindAllStringSubmatch(html, -1) {
		u := fmt.Sprintf(
			"%s/lrs/common/search/search_result_detail_body.jsp?DIS=%s&QS=%%2B&TP=JU",
			s.cfg.BaseURL, m[1],
		)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// searchURL builds the advanced-search query for one day. The form wants
// every court and database box ticked and repeats keys for multi-selects.
func (s *Source) searchURL(day time.Time, page int) string {
	d, m, y := day.Day(), int(day.Month()), day.Year()

	pairs := [][2]string{
		{"isadvsearch", "1"},
		{"txtselectopt", "1"},
		{"txtSearch", ""},
		{"txtselectopt1", "2"},
		{"txtSearch1", ""},
		{"txtselectopt2", "3"},
		{"txtSearch2", ""},
		{"stem", "1"},
		{"txtselectopt3", "5"},
		{"txtSearch3", fmt.Sprintf("%d/%d/%d", d, m, y)},
		{"day1", strconv.Itoa(d)},
		{"month", strconv.Itoa(m)},
		{"year", strconv.Itoa(y)},
		{"txtselectopt4", "6"},
		{"txtSearch4", ""},
		{"txtselectopt5", "7"},
		{"txtSearch5", ""},
		{"txtselectopt6", "8"},
		{"txtSearch6", ""},
		{"txtselectopt7", "9"},
		{"txtSearch7", ""},
		{"selallct", "1"},
	}
	for _, ct := range []string{"FA", "CA", "HC", "CT", "DC", "FC", "LD", "OT"} {
		pairs = append(pairs, [2]string{"selSchct", ct})
	}
	pairs = append(pairs,
		[2]string{"selcourtname", ""},
		[2]string{"selcourtype", ""},
		[2]string{"txtselectopt8", "10"},
		[2]string{"txtSearch8", ""},
		[2]string{"txtselectopt9", "4"},
		[2]string{"txtSearch9", ""},
		[2]string{"txtselectopt10", "12"},
		[2]string{"txtSearch10", ""},
		[2]string{"selall2", "1"},
	)
	for _, db := range []string{"JU", "RV", "RS", "PD"} {
		pairs = append(pairs, [2]string{"selDatabase2", db})
	}
	pairs = append(pairs,
		[2]string{"order", "1"},
		[2]string{"SHC", ""},
		[2]string{"page", strconv.Itoa(page)},
	)

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p[0]+"="+p[1])
	}
	return s.cfg.BaseURL + "/lrs/common/search/search_result_form.jsp?" + strings.Join(parts, "&")
}

// ScrapeItem fetches and parses one judgment. Parse shortfalls are recorded
// on the item so the engine marks the URL and moves on.
func (s *Source) ScrapeItem(ctx context.Context, pageURL string) (scrape.Item, error) {
	s.log.Info("scraping judgment", zap.String("url", pageURL))

	item := &Case{ItemMeta: scrape.ItemMeta{SourceURL: pageURL, ScrapedAt: s.now().UTC()}}

	html, err := s.client.FetchPage(ctx, pageURL, "")
	if err != nil {
		item.Err = err.Error()
		return item, nil
	}
	item.RawHTML = html

	item.Judgment = ParseJudgment(html)
	item.PDFURL = s.pdfURL(html, pageURL)

	if item.CaseNumber == "" && item.NeutralCitation == "" && item.PDFURL != "" {
		s.enrichFromPDF(ctx, item)
	}
	if item.CaseNumber == "" && item.NeutralCitation == "" {
		s.log.Warn("no case number or citation found", zap.String("url", pageURL))
		item.Err = "could not extract case identifier"
	}

	return item, nil
}

// pdfURL finds a likely PDF link by href extension, then by anchor text.
func (s *Source) pdfURL(html, pageURL string) string {
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
		text := strings.ToLower(strings.TrimSpace(a.Text()))
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

// enrichFromPDF downloads the judgment PDF and recovers identifiers from its
// text. Failures here are logged only; the item keeps whatever it has.
func (s *Source) enrichFromPDF(ctx context.Context, item *Case) {
	data, err := s.client.FetchBytes(ctx, item.PDFURL)
	if err != nil {
		s.log.Error("failed to fetch pdf", zap.String("url", item.PDFURL), zap.Error(err))
		return
	}
	text, err := pdftext.Extract(data)
	if err != nil || text == "" {
		if err != nil {
			s.log.Error("failed to extract pdf text", zap.String("url", item.PDFURL), zap.Error(err))
		}
		return
	}

	if item.CaseNumber == "" {
		item.CaseNumber = citation.ExtractCaseNumber(text)
	}
	if item.NeutralCitation == "" {
		for _, c := range citation.Extract(text) {
			if c.Jurisdiction != "HK" || c.Volume != 0 {
				continue
			}
			item.NeutralCitation = c.FullCitation
			if item.Court == "" {
				item.Court = c.Court
			}
			break
		}
	}
}

// ScrapeByCitation looks up a single case through the search interface and
// scrapes the first matching judgment page.
func (s *Source) ScrapeByCitation(ctx context.Context, neutralCitation string) (*Case, error) {
	searchURL := s.cfg.BaseURL + "/lrs/common/search/search_result.jsp?citation=" +
		url.QueryEscape(neutralCitation)

	html, err := s.client.FetchPage(ctx, searchURL, "")
	if err != nil {
		return nil, err
	}

	links := judgmentLinks(html)
	if len(links) == 0 {
		return nil, fmt.Errorf("no judgment found for %q", neutralCitation)
	}

	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	item, err := s.ScrapeItem(ctx, resolveRef(base, links[0]))
	if err != nil {
		return nil, err
	}
	return item.(*Case), nil
}

// judgmentLinks pulls plausible judgment anchors out of a search results
// page, ordered and deduplicated.
func judgmentLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	add := func(href string) {
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		for _, marker := range []string{"judgment", "decision", "ruling", "ju_frame", "case_no", "casenumber"} {
			if strings.Contains(lower, marker) {
				add(href)
				return
			}
		}
		if (strings.HasSuffix(lower, ".htm") || strings.HasSuffix(lower, ".html")) &&
			!strings.Contains(lower, "search") && !strings.Contains(lower, "index") {
			add(href)
		}
	})
	return links
}
