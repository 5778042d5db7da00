package elegislation

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

var sitemapCapRe = regexp.MustCompile(`(?i)(/hk/cap\d+[A-Z]?)`)

// ParseSitemap extracts legislation URLs from sitemap XML. A sitemap index
// yields the nested sitemap locations; a url set yields one chapter page URL
// per chapter, deduplicated, with file-format variants collapsed to the HTML
// page.
func ParseSitemap(xmlContent, baseURL string) ([]string, error) {
	data := []byte(xmlContent)

	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		urls := make([]string, 0, len(index.Sitemaps))
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	var urls []string
	seen := make(map[string]struct{})
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if !strings.Contains(strings.ToLower(loc), "/hk/cap") {
			continue
		}
		m := sitemapCapRe.FindStringSubmatch(loc)
		if m == nil {
			continue
		}
		path := strings.ToLower(m[1])
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		urls = append(urls, baseURL+m[1])
	}
	return urls, nil
}
