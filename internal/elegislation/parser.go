package elegislation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Section is one numbered provision of a chapter.
type Section struct {
	SectionNumber string `json:"section_number"`
	Title         string `json:"title,omitempty"`
	Content       string `json:"content"`
	SourceURL     string `json:"source_url,omitempty"`
}

// Schedule is an appendix attached to a chapter.
type Schedule struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Legislation holds the fields extracted from one chapter page.
type Legislation struct {
	ChapterNumber    string     `json:"chapter_number,omitempty"`
	TitleEN          string     `json:"title_en,omitempty"`
	TitleZH          string     `json:"title_zh,omitempty"`
	Type             string     `json:"type"`
	EnactmentDate    time.Time  `json:"enactment_date,omitempty"`
	CommencementDate time.Time  `json:"commencement_date,omitempty"`
	Status           string     `json:"status"`
	LongTitle        string     `json:"long_title,omitempty"`
	Preamble         string     `json:"preamble,omitempty"`
	Sections         []Section  `json:"sections,omitempty"`
	Schedules        []Schedule `json:"schedules,omitempty"`
	VersionDate      time.Time  `json:"version_date,omitempty"`
	PDFURL           string     `json:"pdf_url,omitempty"`
}

var (
	capURLRe = regexp.MustCompile(`(?i)/cap(\d+[A-Z]?)`)

	capTextRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Cap(?:\.|\s+)\s*(\d+[A-Z]?)`),
		regexp.MustCompile(`(?i)Chapter\s+(\d+[A-Z]?)`),
		regexp.MustCompile(`第(\d+[A-Z]?)章`),
	}

	capTitleRe    = regexp.MustCompile(`^Cap\.\s*\d+[A-Z]?\s+(.+)`)
	zhBookTitleRe = regexp.MustCompile(`Cap\.\s*\d+[A-Z]?\s+[^《]*《(.+?)》`)
	cjkCharRe     = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	zhTailRe      = regexp.MustCompile(`([\x{4e00}-\x{9fff}].+)`)
	sectionNumRe  = regexp.MustCompile(`^(\d+[A-Z]?\.?)\s*`)
	sectionTextRe = regexp.MustCompile(`(?m)^(\d+[A-Z]?)\.\s+`)
	yearOnlyRe    = regexp.MustCompile(`^\d{4}$`)
)

var genericTitles = map[string]struct{}{
	"View Legislation": {},
	"Back":             {},
	"Home":             {},
	"eLegislation":     {},
}

// ParseLegislation extracts structured fields from an e-Legislation chapter
// page. Every extractor is a fallback chain; missing fields stay zero.
func ParseLegislation(rawHTML, sourceURL string) Legislation {
	leg := Legislation{Type: "ordinance", Status: "active"}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return leg
	}

	leg.ChapterNumber = chapterNumber(sourceURL, rawHTML)
	leg.TitleEN = titleEN(doc)
	leg.TitleZH = titleZH(doc)
	leg.Type = legislationType(sourceURL, doc)
	leg.Status = legislationStatus(doc)

	leg.EnactmentDate = extractDate(doc, "enactment")
	leg.CommencementDate = extractDate(doc, "commencement")
	leg.VersionDate = extractDate(doc, "version")

	if sel := findByClassContains(doc, "long-title"); sel != nil {
		leg.LongTitle = strings.TrimSpace(sel.Text())
	}
	if sel := findByClassContains(doc, "preamble"); sel != nil {
		leg.Preamble = strings.TrimSpace(sel.Text())
	}

	leg.Sections = extractSections(doc)
	leg.Schedules = extractSchedules(doc)

	return leg
}

func chapterNumber(sourceURL, rawHTML string) string {
	if m := capURLRe.FindStringSubmatch(sourceURL); m != nil {
		return "Cap. " + strings.ToUpper(m[1])
	}
	for _, re := range capTextRes {
		if m := re.FindStringSubmatch(rawHTML); m != nil {
			return "Cap. " + strings.ToUpper(m[1])
		}
	}
	return ""
}

// titleEN prefers the page title tag, which carries
// "Cap. 32 Companies (Winding Up and Miscellaneous Provisions) Ordinance".
func titleEN(doc *goquery.Document) string {
	titleText := strings.TrimSpace(doc.Find("title").First().Text())
	if m := capTitleRe.FindStringSubmatch(titleText); m != nil {
		title := strings.TrimSpace(m[1])
		if _, generic := genericTitles[title]; title != "" && !generic {
			return title
		}
	} else if titleText != "" && !cjkCharRe.MatchString(titleText) {
		if _, generic := genericTitles[titleText]; !generic {
			return titleText
		}
	}

	for _, sel := range []string{"[lang='en'] .title", "[lang='en'] h1", ".title-en"} {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			text := strings.TrimSpace(el.Text())
			if _, generic := genericTitles[text]; text != "" && !generic {
				return text
			}
		}
	}
	return ""
}

func titleZH(doc *goquery.Document) string {
	titleText := strings.TrimSpace(doc.Find("title").First().Text())
	if m := zhBookTitleRe.FindStringSubmatch(titleText); m != nil {
		return strings.TrimSpace(m[1])
	}
	if cjkCharRe.MatchString(titleText) {
		if m := zhTailRe.FindStringSubmatch(titleText); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	for _, sel := range []string{"[lang='zh'] .title", "[lang='zh'] h1", ".title-zh"} {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			if text := strings.TrimSpace(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func legislationType(sourceURL string, doc *goquery.Document) string {
	lower := strings.ToLower(sourceURL)
	switch {
	case strings.Contains(lower, "/reg"), strings.Contains(lower, "regulation"):
		return "regulation"
	case strings.Contains(lower, "/rule"):
		return "rule"
	case strings.Contains(lower, "/order"):
		return "order"
	case strings.Contains(lower, "/notice"):
		return "notice"
	}

	text := strings.ToLower(doc.Text())
	if strings.Contains(text, "subsidiary legislation") {
		head := text
		if len(head) > 500 {
			head = head[:500]
		}
		switch {
		case strings.Contains(head, "regulation"):
			return "regulation"
		case strings.Contains(head, "rule"):
			return "rule"
		case strings.Contains(head, "order"):
			return "order"
		}
		return "regulation"
	}
	return "ordinance"
}

func legislationStatus(doc *goquery.Document) string {
	text := strings.ToLower(doc.Text())
	if len(text) > 1000 {
		text = text[:1000]
	}
	switch {
	case strings.Contains(text, "repealed"), strings.Contains(text, "廢除"):
		return "repealed"
	case strings.Contains(text, "expired"), strings.Contains(text, "届滿"):
		return "expired"
	case strings.Contains(text, "omitted"):
		return "omitted"
	}
	return "active"
}

var dateMetaNames = map[string][]string{
	"enactment":    {"dc.date.enacted", "enacted", "enactment-date"},
	"commencement": {"dc.date.commenced", "commenced", "commencement-date"},
	"version":      {"dc.date", "dc_date", "version-date"},
}

var dateClassNames = map[string][]string{
	"enactment":    {"enactment-date", "enacted-date", "date-enacted"},
	"commencement": {"commencement-date", "commenced-date", "date-commenced"},
	"version":      {"version-date", "dc_date", "as-at-date"},
}

var dateTextRes = map[string][]*regexp.Regexp{
	"enactment": {
		regexp.MustCompile(`(?i)enacted[:\s]+(\d{1,2}[/.-]\d{1,2}[/.-]\d{4})`),
		regexp.MustCompile(`(?i)enacted[:\s]+(\d{4}[/.-]\d{1,2}[/.-]\d{1,2})`),
		regexp.MustCompile(`(?i)enacted[:\s]+(\d{4})`),
	},
	"commencement": {
		regexp.MustCompile(`(?i)commenced?[:\s]+(\d{1,2}[/.-]\d{1,2}[/.-]\d{4})`),
		regexp.MustCompile(`(?i)commenced?[:\s]+(\d{4}[/.-]\d{1,2}[/.-]\d{1,2})`),
		regexp.MustCompile(`(?i)commencement[:\s]+(\d{1,2}[/.-]\d{1,2}[/.-]\d{4})`),
	},
	"version": {
		regexp.MustCompile(`(?i)version[:\s]+(\d{1,2}[/.-]\d{1,2}[/.-]\d{4})`),
		regexp.MustCompile(`(?i)version[:\s]+(\d{4}[/.-]\d{1,2}[/.-]\d{1,2})`),
		regexp.MustCompile(`(?i)as at[:\s]+(\d{1,2}[/.-]\d{1,2}[/.-]\d{4})`),
	},
}

// extractDate tries Dublin Core markup, then meta tags, then class-named
// elements, then text patterns.
func extractDate(doc *goquery.Document, kind string) time.Time {
	if kind == "version" {
		if sel := findByClassContains(doc, "dc_date"); sel != nil {
			if d := parseDateString(strings.TrimSpace(sel.Text())); !d.IsZero() {
				return d
			}
		}
	}

	for _, name := range dateMetaNames[kind] {
		var found time.Time
		doc.Find("meta[name='" + name + "']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			content, _ := s.Attr("content")
			if d := parseDateString(content); !d.IsZero() {
				found = d
				return false
			}
			return true
		})
		if !found.IsZero() {
			return found
		}
	}

	for _, class := range dateClassNames[kind] {
		if el := doc.Find("." + class).First(); el.Length() > 0 {
			if d := parseDateString(strings.TrimSpace(el.Text())); !d.IsZero() {
				return d
			}
		}
	}

	text := doc.Text()
	for _, re := range dateTextRes[kind] {
		if m := re.FindStringSubmatch(text); m != nil {
			if d := parseDateString(m[1]); !d.IsZero() {
				return d
			}
		}
	}
	return time.Time{}
}

var legDateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-1-2",
	"2006/1/2",
}

func parseDateString(s string) time.Time {
	s = strings.TrimSpace(s)
	if yearOnlyRe.MatchString(s) {
		if d, err := time.Parse("2006", s); err == nil {
			return d
		}
	}
	for _, layout := range legDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}
	return time.Time{}
}

// findByClassContains returns the first element whose class attribute
// contains substr, compared case-insensitively.
func findByClassContains(doc *goquery.Document, substr string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), substr) {
			found = s
			return false
		}
		return true
	})
	return found
}

func eachByClassContains(doc *goquery.Document, substrs []string, fn func(*goquery.Selection)) {
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		attr, _ := s.Attr("class")
		class := strings.ToLower(attr)
		for _, sub := range substrs {
			if strings.Contains(class, sub) {
				fn(s)
				return
			}
		}
	})
}

func extractSections(doc *goquery.Document) []Section {
	var sections []Section
	eachByClassContains(doc, []string{"section", "provision", "clause"}, func(s *goquery.Selection) {
		if sec, ok := parseSectionElement(s); ok {
			sections = append(sections, sec)
		}
	})
	if len(sections) == 0 {
		sections = sectionsFromText(doc.Text())
	}
	return sections
}

func parseSectionElement(el *goquery.Selection) (Section, bool) {
	var number string
	if numEl := firstChildByClassContains(el, "number"); numEl != nil {
		number = strings.TrimSuffix(strings.TrimSpace(numEl.Text()), ".")
	} else {
		head := el.Text()
		if len(head) > 50 {
			head = head[:50]
		}
		m := sectionNumRe.FindStringSubmatch(strings.TrimSpace(head))
		if m == nil {
			return Section{}, false
		}
		number = strings.TrimSuffix(m[1], ".")
	}

	var title string
	if titleEl := firstChildByClassContains(el, "heading"); titleEl != nil {
		title = strings.TrimSpace(titleEl.Text())
	}

	var content string
	if contentEl := firstChildByClassContains(el, "content"); contentEl != nil {
		content = lineText(contentEl)
	} else {
		content = lineText(el)
	}

	return Section{SectionNumber: number, Title: title, Content: content}, true
}

func firstChildByClassContains(el *goquery.Selection, substr string) *goquery.Selection {
	var found *goquery.Selection
	el.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), substr) {
			found = s
			return false
		}
		return true
	})
	return found
}

// sectionsFromText recovers numbered sections from flat text when the page
// carries no section markup. Bounded to keep a pathological page from
// producing thousands of bogus sections.
func sectionsFromText(text string) []Section {
	matches := sectionTextRe.FindAllStringSubmatchIndex(text, -1)
	var sections []Section
	for i, m := range matches {
		if len(sections) == 100 {
			break
		}
		number := text[m[2]:m[3]]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:end])
		if body == "" {
			continue
		}

		title := body
		content := body
		if idx := strings.IndexByte(body, '\n'); idx >= 0 {
			title = strings.TrimSpace(body[:idx])
			content = strings.TrimSpace(body[idx+1:])
		}
		sections = append(sections, Section{
			SectionNumber: number,
			Title:         title,
			Content:       content,
		})
	}
	return sections
}

func extractSchedules(doc *goquery.Document) []Schedule {
	var schedules []Schedule
	eachByClassContains(doc, []string{"schedule"}, func(s *goquery.Selection) {
		n := len(schedules) + 1
		title := ""
		if h := s.Find("h1, h2, h3, h4").First(); h.Length() > 0 {
			title = strings.TrimSpace(h.Text())
		}
		if title == "" {
			title = fmt.Sprintf("Schedule %d", n)
		}
		schedules = append(schedules, Schedule{
			Number:  n,
			Title:   title,
			Content: lineText(s),
		})
	})
	return schedules
}

// lineText renders a selection's text with one line per text node.
func lineText(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range sel.Nodes {
		collectText(n, &sb)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
