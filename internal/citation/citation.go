// Package citation recognizes legal citations in judgment text across the
// common law jurisdictions HK courts routinely cite.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Citation is one recognized citation occurrence.
type Citation struct {
	FullCitation string `json:"fullCitation"`
	Year         int    `json:"year"`
	Court        string `json:"court"`
	Number       int    `json:"number"`
	Jurisdiction string `json:"jurisdiction"`
	Volume       int    `json:"volume,omitempty"`
}

// Neutral citations, e.g. [2024] HKCFI 123.
var hkNeutralPattern = regexp.MustCompile(
	`(?i)\[(\d{4})\]\s*(HK(?:CFA|CA|CFI|DC|FC|LT|LAB|SCT|EC|MC|HKEC))\s*(\d+)`,
)

// Report series, e.g. [1996] 2 HKLR 401, [2000] 3 HKCFAR 125.
var hkLawReportsPattern = regexp.MustCompile(
	`(?i)\[(\d{4})\]\s*(\d+)\s*(HKLR|HKLRD|HKCFAR|HKC)\s*(\d+)`,
)

var hkCaseNumberPattern = regexp.MustCompile(
	`(?i)(FACV|CACV|CACC|CAAR|HCAL|HCMP|HCCT|HCCL|HCSD|HCPI|HCMC|HCCW|HCAJ|` +
		`DCCC|DCEC|DCMP|DCPI|DCCJ|FCMC|FCMP|LDBM|LDMR|LDCS|LDPD|LDRT|` +
		`ESCC|KCCC|KTCC|STCC|FLCC|TMCC|TWCC|WKCC)\s*(\d+)/(\d{4})`,
)

var ukPattern = regexp.MustCompile(
	`(?i)\[(\d{4})\]\s*(?:(\d+)\s+)?(AC|QB|WLR|All\s*ER|UKSC|UKHL|UKPC|EWCA\s*(?:Civ|Crim)?|EWHC)\s*(\d+)?`,
)

var auPattern = regexp.MustCompile(
	`(?i)\[(\d{4})\]\s*(HCA|FCAFC|FCA|NSWCA|NSWSC|VSCA|VSC|QCA|QSC)\s*(\d+)`,
)

var courtNames = map[string]string{
	"HKCFA": "Court of Final Appeal",
	"HKCA":  "Court of Appeal",
	"HKCFI": "Court of First Instance",
	"HKDC":  "District Court",
	"HKFC":  "Family Court",
	"HKLT":  "Lands Tribunal",
	"HKLAB": "Labour Tribunal",
	"HKSCT": "Small Claims Tribunal",
	"HKEC":  "Eastern Magistrates' Courts",
	"HKMC":  "Magistrates' Courts",
}

var courtRanks = map[string]int{
	"HKCFA": 1,
	"HKCA":  2,
	"HKCFI": 3,
	"HKDC":  4,
	"HKFC":  4,
	"HKLT":  4,
	"HKLAB": 5,
	"HKSCT": 5,
}

// Extract scans text with every jurisdiction pattern and returns citations in
// first-seen order, deduplicated by exact citation string.
func Extract(text string) []Citation {
	var out []Citation
	seen := make(map[string]struct{})

	add := func(c Citation) {
		if _, dup := seen[c.FullCitation]; dup {
			return
		}
		seen[c.FullCitation] = struct{}{}
		out = append(out, c)
	}

	for _, m := range hkNeutralPattern.FindAllStringSubmatch(text, -1) {
		add(Citation{
			FullCitation: m[0],
			Year:         atoi(m[1]),
			Court:        strings.ToUpper(m[2]),
			Number:       atoi(m[3]),
			Jurisdiction: "HK",
		})
	}
	for _, m := range hkLawReportsPattern.FindAllStringSubmatch(text, -1) {
		add(Citation{
			FullCitation: m[0],
			Year:         atoi(m[1]),
			Court:        strings.ToUpper(m[3]),
			Number:       atoi(m[4]),
			Jurisdiction: "HK",
			Volume:       atoi(m[2]),
		})
	}
	for _, m := range ukPattern.FindAllStringSubmatch(text, -1) {
		add(Citation{
			FullCitation: m[0],
			Year:         atoi(m[1]),
			Court:        strings.ReplaceAll(strings.ToUpper(m[3]), " ", ""),
			Number:       atoi(m[4]),
			Jurisdiction: "UK",
			Volume:       atoi(m[2]),
		})
	}
	for _, m := range auPattern.FindAllStringSubmatch(text, -1) {
		add(Citation{
			FullCitation: m[0],
			Year:         atoi(m[1]),
			Court:        strings.ToUpper(m[2]),
			Number:       atoi(m[3]),
			Jurisdiction: "AU",
		})
	}
	return out
}

// ExtractCaseNumber returns the first HK case number found in text, formatted
// as "FACV 1/2024", or "" when none is present.
func ExtractCaseNumber(text string) string {
	m := hkCaseNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s %s/%s", strings.ToUpper(m[1]), m[2], m[3])
}

// Normalize rewrites a citation into canonical spacing and casing. Strings
// matching no known pattern are returned trimmed but otherwise unchanged.
func Normalize(citation string) string {
	citation = strings.TrimSpace(citation)

	if m := hkNeutralPattern.FindStringSubmatch(citation); m != nil && strings.HasPrefix(citation, m[0]) {
		return fmt.Sprintf("[%s] %s %s", m[1], strings.ToUpper(m[2]), m[3])
	}
	if m := ukPattern.FindStringSubmatch(citation); m != nil && strings.HasPrefix(citation, m[0]) {
		parts := []string{"[" + m[1] + "]"}
		if m[2] != "" {
			parts = append(parts, m[2])
		}
		parts = append(parts, strings.ToUpper(m[3]))
		if m[4] != "" {
			parts = append(parts, m[4])
		}
		return strings.Join(parts, " ")
	}
	return citation
}

// CourtHierarchy maps a court code to its rank, 1 being the apex court.
// Unknown codes rank lowest.
func CourtHierarchy(code string) int {
	if rank, ok := courtRanks[strings.ToUpper(code)]; ok {
		return rank
	}
	return 5
}

// CourtName returns the full name for an HK court citation code.
func CourtName(code string) string {
	return courtNames[strings.ToUpper(code)]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
