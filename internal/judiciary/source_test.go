package judiciary

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

// handlerFetcher routes fetches through a test-supplied handler.
type handlerFetcher struct {
	handle func(url string) (fetch.Response, error)
}

func (f *handlerFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Response, error) {
	return f.handle(req.URL)
}

func (f *handlerFetcher) Close() {}

func newTestSource(t *testing.T, handle func(url string) (fetch.Response, error)) *Source {
	t.Helper()
	f := &handlerFetcher{handle: handle}
	client := scrape.NewClient(f, f, nil, scrape.ClientConfig{Site: "judiciary", Timeout: time.Second}, zap.NewNop())
	cfg := config.SiteConfig{
		BaseURL:  "https://lrs.test",
		YearFrom: 2024,
		YearTo:   2024,
	}
	src := NewSource(client, cfg, zap.NewNop())
	src.now = func() time.Time { return time.Date(2024, time.January, 2, 12, 0, 0, 0, time.UTC) }
	return src
}

const searchResultsFixture = `<html><body>
<span id="searchresult-totalpages">1</span>
<script>
var temp111='DIS=111&QS=%2B&TP=JU';
var temp222='DIS=222&QS=%2B&TP=JU';
var temp111='DIS=111&QS=%2B&TP=JU';
</script>
</body></html>`

func TestDiscoverURLsYieldsDetailPages(t *testing.T) {
	var fetched []string
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		fetched = append(fetched, url)
		switch {
		case strings.Contains(url, "judgment.jsp"):
			return fetch.Response{StatusCode: 200, Body: []byte("<html>landing</html>")}, nil
		case strings.Contains(url, "txtSearch3=1/1/2024"):
			return fetch.Response{StatusCode: 200, Body: []byte(searchResultsFixture)}, nil
		default:
			return fetch.Response{StatusCode: 200, Body: []byte("No record found")}, nil
		}
	})

	var urls []string
	err := src.DiscoverURLs(context.Background(), func(u string) error {
		urls = append(urls, u)
		return nil
	})
	require.NoError(t, err)

	// Duplicate DIS ids collapse to one URL each.
	require.Len(t, urls, 2)
	assert.Equal(t, "https://lrs.test/lrs/common/search/search_result_detail_body.jsp?DIS=111&QS=%2B&TP=JU", urls[0])
	assert.Equal(t, "https://lrs.test/lrs/common/search/search_result_detail_body.jsp?DIS=222&QS=%2B&TP=JU", urls[1])

	// Landing page was visited before any search.
	require.NotEmpty(t, fetched)
	assert.Contains(t, fetched[0], "judgment.jsp")
}

func TestDiscoverURLsStopsOnYieldError(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		if strings.Contains(url, "judgment.jsp") {
			return fetch.Response{StatusCode: 200, Body: []byte("ok")}, nil
		}
		return fetch.Response{StatusCode: 200, Body: []byte(searchResultsFixture)}, nil
	})

	stop := assert.AnError
	var count int
	err := src.DiscoverURLs(context.Background(), func(string) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestDiscoverURLsSkipsFailedDays(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		switch {
		case strings.Contains(url, "judgment.jsp"):
			return fetch.Response{StatusCode: 200, Body: []byte("ok")}, nil
		case strings.Contains(url, "txtSearch3=1/1/2024"):
			return fetch.Response{StatusCode: 500}, nil
		case strings.Contains(url, "txtSearch3=2/1/2024"):
			return fetch.Response{StatusCode: 200, Body: []byte(searchResultsFixture)}, nil
		default:
			return fetch.Response{StatusCode: 200, Body: []byte("No record found")}, nil
		}
	})

	var urls []string
	err := src.DiscoverURLs(context.Background(), func(u string) error {
		urls = append(urls, u)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, urls, 2, "the failing day is skipped, the next day still yields")
}

func TestScrapeItemValidJudgment(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		return fetch.Response{StatusCode: 200, Body: []byte(judgmentFixture)}, nil
	})

	item, err := src.ScrapeItem(context.Background(), "https://lrs.test/detail?DIS=1")
	require.NoError(t, err)
	require.True(t, item.Valid())

	c, ok := item.(*Case)
	require.True(t, ok)
	assert.Equal(t, "FACC1/1997", c.CaseNumber)
	assert.Equal(t, "[1997] HKCFA 12", c.NeutralCitation)
	assert.Equal(t, "https://lrs.test/detail?DIS=1", c.Meta().SourceURL)
}

func TestScrapeItemWithoutIdentifierIsInvalid(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		return fetch.Response{StatusCode: 200, Body: []byte("<html><head><title></title></head><body><p>nothing here</p></body></html>")}, nil
	})

	item, err := src.ScrapeItem(context.Background(), "https://lrs.test/detail?DIS=2")
	require.NoError(t, err)
	assert.False(t, item.Valid())
	assert.Equal(t, "could not extract case identifier", item.Meta().Err)
}

func TestScrapeItemFetchFailureIsSoft(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		return fetch.Response{StatusCode: 404}, nil
	})

	item, err := src.ScrapeItem(context.Background(), "https://lrs.test/detail?DIS=3")
	require.NoError(t, err)
	assert.False(t, item.Valid())
	assert.NotEmpty(t, item.Meta().Err)
}

func TestScrapeByCitation(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		if strings.Contains(url, "search_result.jsp") {
			return fetch.Response{StatusCode: 200, Body: []byte(
				`<html><body><a href="/lrs/ju_frame.jsp?DIS=9">HKSAR v. TANG</a></body></html>`,
			)}, nil
		}
		return fetch.Response{StatusCode: 200, Body: []byte(judgmentFixture)}, nil
	})

	c, err := src.ScrapeByCitation(context.Background(), "[1997] HKCFA 12")
	require.NoError(t, err)
	assert.Equal(t, "[1997] HKCFA 12", c.NeutralCitation)
}

func TestScrapeByCitationNoResults(t *testing.T) {
	src := newTestSource(t, func(url string) (fetch.Response, error) {
		return fetch.Response{StatusCode: 200, Body: []byte("<html><body>No record found</body></html>")}, nil
	})

	_, err := src.ScrapeByCitation(context.Background(), "[2024] HKCFA 1")
	assert.Error(t, err)
}
