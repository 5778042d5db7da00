package judiciary

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hklex/lexharvest/internal/citation"
)

// Judgment holds the fields extracted from one LRS judgment page. Extractors
// that find nothing leave the field zero rather than failing; the item stays
// usable as long as one strong identifier was recovered.
type Judgment struct {
	NeutralCitation string              `json:"neutral_citation,omitempty"`
	CaseNumber      string              `json:"case_number,omitempty"`
	CaseName        string              `json:"case_name,omitempty"`
	Court           string              `json:"court,omitempty"`
	DecisionDate    time.Time           `json:"decision_date,omitempty"`
	Judges          []string            `json:"judges,omitempty"`
	Parties         map[string][]string `json:"parties,omitempty"`
	FullText        string              `json:"full_text,omitempty"`
	WordCount       int                 `json:"word_count"`
	Language        string              `json:"language"`
	CitedCases      []string            `json:"cited_cases,omitempty"`
	PDFURL          string              `json:"pdf_url,omitempty"`
}

var (
	// Body-text fallback, e.g. "FACC No. 1 of 1997".
	caseNoBodyRe = regexp.MustCompile(`([A-Z]{2,6})\s*(?:No\.?\s*)?(\d+)\s*(?:of\s*)?(\d{4})`)

	neutralCitationRe = regexp.MustCompile(`\[(\d{4})\]\s*(HK(?:CFA|CA|CFI|DC|FC|LT|LAB|SCT))\s*(\d+)`)

	casePrefixRe = regexp.MustCompile(`^([A-Z]+)`)

	cjkRe = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
)

// ParseJudgment extracts structured fields from an LRS judgment page. The
// pages use custom tags (<caseno>, <parties>, <coram>, <date>); each field
// has an ordered fallback chain for pages without them.
func ParseJudgment(rawHTML string) Judgment {
	j := Judgment{Language: "en", Parties: map[string][]string{"applicant": {}, "respondent": {}}}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return j
	}

	// Title format: "FACC1/1997 HKSAR v. TANG SIU MAN". Pages sometimes carry
	// several title tags; the first non-empty one wins.
	doc.Find("title").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		parts := strings.SplitN(text, " ", 2)
		j.CaseNumber = parts[0]
		if len(parts) == 2 {
			j.CaseName = strings.TrimSpace(parts[1])
		}
		return false
	})

	if j.CaseNumber == "" {
		if m := caseNoBodyRe.FindStringSubmatch(rawHTML); m != nil {
			j.CaseNumber = m[1] + m[2] + "/" + m[3]
		}
	}

	if m := neutralCitationRe.FindStringSubmatch(rawHTML); m != nil {
		j.NeutralCitation = m[0]
		j.Court = m[2]
	}
	if j.Court == "" && j.CaseNumber != "" {
		if m := casePrefixRe.FindStringSubmatch(j.CaseNumber); m != nil {
			j.Court = CourtForCasePrefix(m[1])
		}
	}

	if coram := doc.Find("coram"); coram.Length() > 0 {
		j.Judges = JudgesFromCoram(strings.TrimSpace(coram.Text()))
	} else {
		j.Judges = judgesFromBody(rawHTML)
	}

	if dateEl := doc.Find("date"); dateEl.Length() > 0 {
		j.DecisionDate = dateFromText(strings.TrimSpace(dateEl.Text()))
	}
	if j.DecisionDate.IsZero() {
		j.DecisionDate = dateFromDocument(rawHTML, doc)
	}

	if partiesEl := doc.Find("parties"); partiesEl.Length() > 0 {
		j.Parties = partiesFromTag(partiesEl)
	} else {
		j.Parties = partiesFromCaseName(j.CaseName)
	}

	if body := doc.Find("body"); body.Length() > 0 && len(body.Nodes) > 0 {
		j.FullText = blockText(body.Nodes[0])
		j.WordCount = len(strings.Fields(j.FullText))
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok && strings.Contains(strings.ToLower(lang), "zh") {
		j.Language = "zh"
	}
	if j.Language == "en" && dominantlyChinese(j.FullText) {
		j.Language = "zh"
	}

	if j.FullText != "" {
		for _, c := range citation.Extract(j.FullText) {
			if c.Jurisdiction != "HK" || c.Volume != 0 {
				continue
			}
			if j.NeutralCitation != "" && c.FullCitation == j.NeutralCitation {
				continue
			}
			j.CitedCases = append(j.CitedCases, c.FullCitation)
		}
	}

	return j
}

// blockText walks the DOM collecting text nodes, one line each, skipping
// chrome elements that never carry judgment text.
func blockText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteByte('\n')
			}
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimRight(sb.String(), "\n")
}

func dominantlyChinese(text string) bool {
	if text == "" {
		return false
	}
	runes := []rune(text)
	if len(runes) > 1000 {
		runes = runes[:1000]
	}
	cjk := len(cjkRe.FindAllString(string(runes), -1))
	return float64(cjk)/1000 > 0.3
}

// Coram title abbreviations written with periods, normalized before splitting.
var coramNormalizations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bV\.?-?P\.?\b`), "VP"},
	{regexp.MustCompile(`(?i)\bJ\.?\s*A\.?\b`), "JA"},
	{regexp.MustCompile(`(?i)\bC\.?\s*J\.?\b`), "CJ"},
	{regexp.MustCompile(`(?i)\bP\.?\s*J\.?\b`), "PJ"},
	{regexp.MustCompile(`(?i)\bN\.?\s*P\.?\s*J\.?\b`), "NPJ"},
	{regexp.MustCompile(`(?i)\bC\.?\s*J\.?\s*H\.?\s*C\.?\b`), "CJHC"},
}

var coramPrefixRe = regexp.MustCompile(`(?i)^(?:Appeal Committee|Coram)[:\s]*`)

var coramSplitRe = regexp.MustCompile(`,\s*|\s+and\s+`)

// Judicial titles stripped from each coram part, longest patterns first so a
// long title is never half-consumed by a shorter one.
var judgeTitleRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bThe\s+Honourable\b`),
	regexp.MustCompile(`(?i)\bChief\s+Justice\b`),
	regexp.MustCompile(`(?i)\bMr\.?\s+Justice\b`),
	regexp.MustCompile(`(?i)\bMrs\.?\s+Justice\b`),
	regexp.MustCompile(`(?i)\bMs\.?\s+Justice\b`),
	regexp.MustCompile(`(?i)\bJustice\b`),
	regexp.MustCompile(`(?i)\bHon\.?\b`),
	regexp.MustCompile(`(?i)\bCJHC\b`),
	regexp.MustCompile(`(?i)\bNPJ\b`),
	regexp.MustCompile(`(?i)\bPJ\b`),
	regexp.MustCompile(`(?i)\bJA\b`),
	regexp.MustCompile(`(?i)\bVP\b`),
	regexp.MustCompile(`(?i)\bCJ\b`),
	regexp.MustCompile(`(?i)\bJ\b`),
}

var (
	wsRe        = regexp.MustCompile(`\s+`)
	edgePunctRe = regexp.MustCompile(`^[\s,.]+|[\s,.]+$`)
	letterRunRe = regexp.MustCompile(`[A-Za-z]{2,}`)
)

// JudgesFromCoram extracts judge names from a coram line. Title abbreviations
// are normalized first so splitting on commas does not cut through "J.A.".
func JudgesFromCoram(coram string) []string {
	coram = coramPrefixRe.ReplaceAllString(coram, "")
	for _, n := range coramNormalizations {
		coram = n.re.ReplaceAllString(coram, n.repl)
	}

	var judges []string
	for _, part := range coramSplitRe.Split(coram, -1) {
		name := part
		for _, re := range judgeTitleRes {
			name = re.ReplaceAllString(name, "")
		}
		name = wsRe.ReplaceAllString(name, " ")
		name = edgePunctRe.ReplaceAllString(name, "")
		name = strings.TrimSpace(name)
		if len(name) >= 2 && letterRunRe.MatchString(name) {
			judges = append(judges, name)
		}
	}
	return judges
}

var judgeBodyRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Before|Coram)[:\s]*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)(?:The Honourable|Hon\.?)\s+(?:Mr\.?|Mrs\.?|Ms\.?)?\s*Justice\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
}

func judgesFromBody(rawHTML string) []string {
	var judges []string
	seen := make(map[string]struct{})
	for _, re := range judgeBodyRes {
		for _, m := range re.FindAllStringSubmatch(rawHTML, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" || len(name) <= 2 {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			judges = append(judges, name)
			if len(judges) == 10 {
				return judges
			}
		}
	}
	return judges
}

var (
	dateOfRe    = regexp.MustCompile(`(?i)Date of (?:Handing Down|Judgment|Decision|Ruling|Hearing)[:\s]*(\d{1,2})\s+(\w+)\s+(\d{4})`)
	dayNameYrRe = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})`)
	slashDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

func dateFromText(text string) time.Time {
	for _, re := range []*regexp.Regexp{dateOfRe, dayNameYrRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if d := buildDate(m[1], m[2], m[3]); !d.IsZero() {
				return d
			}
		}
	}
	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func dateFromDocument(rawHTML string, doc *goquery.Document) time.Time {
	if m := dateOfRe.FindStringSubmatch(rawHTML); m != nil {
		if d := buildDate(m[1], m[2], m[3]); !d.IsZero() {
			return d
		}
	}

	var found time.Time
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.Contains(strings.ToLower(name), "date") {
			return true
		}
		content, _ := s.Attr("content")
		if d := parseDateString(content); !d.IsZero() {
			found = d
			return false
		}
		return true
	})
	return found
}

func buildDate(dayStr, monthStr, yearStr string) time.Time {
	month, ok := monthNumbers[strings.ToLower(monthStr)]
	if !ok {
		return time.Time{}
	}
	day, _ := strconv.Atoi(dayStr)
	year, _ := strconv.Atoi(yearStr)
	if day < 1 || day > 31 {
		return time.Time{}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"2-1-2006",
	"2006/1/2",
	"2 January 2006",
	"2 Jan 2006",
}

func parseDateString(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}
	return time.Time{}
}

var (
	betweenRe    = regexp.MustCompile(`(?i)Between\s+(.+?)\s+(?:Appellant|Applicant|Plaintiff)`)
	respondentRe = regexp.MustCompile(`(?i)(?:AND|and)\s+(.+?)\s+(?:Respondent|Defendant)`)
	andSplitRe   = regexp.MustCompile(`(?i)\s+and\s+`)
)

func partiesFromTag(sel *goquery.Selection) map[string][]string {
	parties := map[string][]string{"applicant": {}, "respondent": {}}
	text := wsRe.ReplaceAllString(strings.TrimSpace(sel.Text()), " ")

	if m := betweenRe.FindStringSubmatch(text); m != nil {
		parties["applicant"] = append(parties["applicant"], strings.TrimSpace(m[1]))
	}
	if m := respondentRe.FindStringSubmatch(text); m != nil {
		parties["respondent"] = append(parties["respondent"], strings.TrimSpace(m[1]))
	}

	if len(parties["applicant"]) > 0 {
		return parties
	}

	// Tabular layout: the role label sits in the cell after the name.
	cells := sel.Find("td")
	texts := make([]string, cells.Length())
	cells.Each(func(i int, s *goquery.Selection) {
		texts[i] = strings.TrimSpace(s.Text())
	})
	for i, cell := range texts {
		if i == 0 {
			continue
		}
		name := texts[i-1]
		if name == "" || name == "Between" || name == "AND" {
			continue
		}
		switch {
		case strings.Contains(cell, "Appellant"), strings.Contains(cell, "Applicant"), strings.Contains(cell, "Plaintiff"):
			parties["applicant"] = append(parties["applicant"], name)
		case strings.Contains(cell, "Respondent"), strings.Contains(cell, "Defendant"):
			parties["respondent"] = append(parties["respondent"], name)
		}
	}
	return parties
}

func partiesFromCaseName(caseName string) map[string][]string {
	parties := map[string][]string{"applicant": {}, "respondent": {}}
	if caseName == "" {
		return parties
	}

	var parts []string
	switch {
	case strings.Contains(caseName, " v. "):
		parts = strings.SplitN(caseName, " v. ", 2)
	case strings.Contains(caseName, " v "):
		parts = strings.SplitN(caseName, " v ", 2)
	case andSplitRe.MatchString(caseName):
		parts = andSplitRe.Split(caseName, 2)
	default:
		return parties
	}

	if len(parts) == 2 {
		parties["applicant"] = []string{strings.TrimSpace(parts[0])}
		parties["respondent"] = []string{strings.TrimSpace(parts[1])}
	}
	return parties
}
