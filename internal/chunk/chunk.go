// Package chunk groups document text into bounded spans suitable for
// embedding. Splitting is structural: paragraphs are never divided and
// adjacent chunks share boundary paragraphs for cross-chunk context.
package chunk

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultMaxChars keeps a chunk comfortably under embedding token limits.
	DefaultMaxChars = 2000
	// DefaultOverlapParas is the number of whole paragraphs repeated at the
	// start of a successive chunk.
	DefaultOverlapParas = 2
)

// Chunk is one retrieval unit derived from a document.
type Chunk struct {
	DocType          string `json:"doc_type"`
	DocID            string `json:"doc_id"`
	ChunkIndex       int    `json:"chunk_index"`
	Text             string `json:"text"`
	ChunkType        string `json:"chunk_type"`
	ParagraphNumbers []int  `json:"paragraph_numbers,omitempty"`
	SectionPath      string `json:"section_path,omitempty"`
}

// Leading paragraph markers: "[12]", "(12)", "12.".
var paraMarkerRe = regexp.MustCompile(`^\s*(\[\d+\]|\(\d+\)|\d+\.)\s+`)

// SegmentParagraphs splits judgment text on blank lines and on lines opening
// with a paragraph marker. A marker only forces a split when a paragraph is
// already accumulating, so a marker-like token at the very start never
// produces an empty leading paragraph. Continuation lines join with spaces.
func SegmentParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paras []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		var parts []string
		for _, p := range current {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		if joined := strings.Join(parts, " "); joined != "" {
			paras = append(paras, joined)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if paraMarkerRe.MatchString(line) && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return paras
}

// ParagraphNumber extracts a leading paragraph number, or 0 when absent.
func ParagraphNumber(para string) int {
	m := paraMarkerRe.FindStringSubmatch(para)
	if m == nil {
		return 0
	}
	raw := strings.Trim(m[1], "[]().")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// groupParagraphs accumulates whole paragraphs greedily up to maxChars. A
// paragraph that alone exceeds the budget becomes its own chunk, so the loop
// always advances. Successive groups restart overlap paragraphs before the
// previous end unless that would fail to advance past the previous start.
func groupParagraphs(paragraphs []string, maxChars, overlap int) [][]string {
	var groups [][]string
	n := len(paragraphs)
	start := 0

	for start < n {
		var current []string
		length := 0
		i := start
		for i < n && length+len(paragraphs[i]) <= maxChars {
			current = append(current, paragraphs[i])
			length += len(paragraphs[i])
			i++
		}
		if len(current) == 0 {
			current = append(current, paragraphs[start])
			i = start + 1
		}
		groups = append(groups, current)
		if i >= n {
			break
		}
		if i-overlap > start {
			start = i - overlap
		} else {
			start = i
		}
	}
	return groups
}

// ChunkCase chunks a full judgment. Chunk types are positional: the first
// chunk is labeled facts, the last order, everything between reasoning.
func ChunkCase(caseID, fullText string) []Chunk {
	return ChunkCaseWith(caseID, fullText, DefaultMaxChars, DefaultOverlapParas)
}

// ChunkCaseWith is ChunkCase with explicit sizing, mainly for tests.
func ChunkCaseWith(caseID, fullText string, maxChars, overlap int) []Chunk {
	paragraphs := SegmentParagraphs(fullText)
	groups := groupParagraphs(paragraphs, maxChars, overlap)

	chunks := make([]Chunk, 0, len(groups))
	for idx, group := range groups {
		var nums []int
		for _, p := range group {
			if n := ParagraphNumber(p); n > 0 {
				nums = append(nums, n)
			}
		}

		ctype := "reasoning"
		switch {
		case idx == 0:
			ctype = "facts"
		case idx == len(groups)-1:
			ctype = "order"
		}

		chunks = append(chunks, Chunk{
			DocType:          "case",
			DocID:            caseID,
			ChunkIndex:       idx,
			Text:             strings.Join(group, "\n"),
			ChunkType:        ctype,
			ParagraphNumbers: nums,
		})
	}
	return chunks
}

// ChunkSection chunks one legislation section. Short sections become a single
// chunk; long ones split on blank lines with one paragraph of overlap. The
// caller-supplied structural path is threaded unchanged onto every chunk.
func ChunkSection(sectionID, content, sectionPath string) []Chunk {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}

	if len(text) <= DefaultMaxChars {
		return []Chunk{{
			DocType:     "legislation",
			DocID:       sectionID,
			ChunkIndex:  0,
			Text:        text,
			ChunkType:   "section_body",
			SectionPath: sectionPath,
		}}
	}

	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paras = append(paras, p)
		}
	}
	groups := groupParagraphs(paras, DefaultMaxChars, 1)

	chunks := make([]Chunk, 0, len(groups))
	for idx, group := range groups {
		chunks = append(chunks, Chunk{
			DocType:     "legislation",
			DocID:       sectionID,
			ChunkIndex:  idx,
			Text:        strings.Join(group, "\n\n"),
			ChunkType:   "section_body",
			SectionPath: sectionPath,
		})
	}
	return chunks
}
