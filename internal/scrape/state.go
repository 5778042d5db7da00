package scrape

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// State is the persisted crawl checkpoint. A URL present in the processed
// set is never re-fetched in the same or a resumed run unless the state file
// is deleted. All mutation goes through mutex-guarded methods; concurrent
// fetch completions race to update the same state.
type State struct {
	mu sync.Mutex

	scraperName        string
	lastRunAt          time.Time
	lastSuccessfulURL  string
	lastSuccessfulDate time.Time // zero means unset
	processed          map[string]struct{}
	failed             map[string]string
	stats              Stats
}

// stateFile is the on-disk JSON shape of a checkpoint.
type stateFile struct {
	ScraperName        string            `json:"scraperName"`
	LastRunAt          time.Time         `json:"lastRunAt"`
	LastSuccessfulURL  string            `json:"lastSuccessfulUrl,omitempty"`
	LastSuccessfulDate string            `json:"lastSuccessfulDate,omitempty"`
	ProcessedURLs      []string          `json:"processedUrls"`
	FailedURLs         map[string]string `json:"failedUrls"`
	Stats              Stats             `json:"stats"`
}

// NewState builds an empty checkpoint for the named scraper.
func NewState(scraperName string) *State {
	return &State{
		scraperName: scraperName,
		processed:   make(map[string]struct{}),
		failed:      make(map[string]string),
	}
}

// LoadState reads a checkpoint from path. A missing or corrupt file is not
// an error: the crawl starts fresh and the condition is reported through the
// second return value so the caller can log it.
func LoadState(scraperName, path string) (*State, bool, error) {
	s := NewState(scraperName)
	if path == "" {
		return s, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, false, nil
		}
		return s, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return s, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	s.scraperName = f.ScraperName
	if s.scraperName == "" {
		s.scraperName = scraperName
	}
	s.lastRunAt = f.LastRunAt
	s.lastSuccessfulURL = f.LastSuccessfulURL
	if f.LastSuccessfulDate != "" {
		if d, err := time.Parse(dateLayout, f.LastSuccessfulDate); err == nil {
			s.lastSuccessfulDate = d
		}
	}
	for _, u := range f.ProcessedURLs {
		s.processed[u] = struct{}{}
	}
	for u, reason := range f.FailedURLs {
		s.failed[u] = reason
	}
	s.stats = f.Stats
	return s, true, nil
}

// Save writes the checkpoint atomically: temp file in the target directory,
// then rename. The parent directory is created if needed.
func (s *State) Save(path string) error {
	if path == "" {
		return nil
	}
	s.mu.Lock()
	s.lastRunAt = time.Now().UTC()
	f := s.snapshotLocked()
	s.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

func (s *State) snapshotLocked() stateFile {
	urls := make([]string, 0, len(s.processed))
	for u := range s.processed {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	failed := make(map[string]string, len(s.failed))
	for u, reason := range s.failed {
		failed[u] = reason
	}
	f := stateFile{
		ScraperName:       s.scraperName,
		LastRunAt:         s.lastRunAt,
		LastSuccessfulURL: s.lastSuccessfulURL,
		ProcessedURLs:     urls,
		FailedURLs:        failed,
		Stats:             s.stats,
	}
	if !s.lastSuccessfulDate.IsZero() {
		f.LastSuccessfulDate = s.lastSuccessfulDate.Format(dateLayout)
	}
	return f
}

// IsProcessed reports whether the URL was already attempted in this or a
// previous run sharing the checkpoint.
func (s *State) IsProcessed(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[url]
	return ok
}

// MarkProcessed records the outcome of an attempt. Both successes and
// failures consume the URL so it is not retried on resume; the failure
// reason is kept for operators.
func (s *State) MarkProcessed(url string, success bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[url] = struct{}{}
	s.stats.TotalProcessed++
	if success {
		s.stats.Successful++
		s.lastSuccessfulURL = url
		return
	}
	s.stats.Failed++
	if reason != "" {
		s.failed[url] = reason
	}
}

// MarkSkipped counts a URL that was discovered again but already processed.
func (s *State) MarkSkipped(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Skipped++
}

// LastSuccessfulDate returns the date-driven resume point, if any.
func (s *State) LastSuccessfulDate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccessfulDate, !s.lastSuccessfulDate.IsZero()
}

// SetLastSuccessfulDate advances the date-driven resume point.
func (s *State) SetLastSuccessfulDate(d time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccessfulDate = d
}

// Stats returns a copy of the running counters.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ProcessedCount returns the size of the processed set.
func (s *State) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// FailedURLs returns a copy of the failure map.
func (s *State) FailedURLs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.failed))
	for u, reason := range s.failed {
		out[u] = reason
	}
	return out
}
