package scrape

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s := NewState("judiciary")
	s.MarkProcessed("https://example.org/a", true, "")
	s.MarkProcessed("https://example.org/b", false, "http status 500")
	s.MarkSkipped("https://example.org/a")
	s.SetLastSuccessfulDate(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(path))

	loaded, ok, err := LoadState("judiciary", path)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.IsProcessed("https://example.org/a"))
	require.True(t, loaded.IsProcessed("https://example.org/b"))
	require.False(t, loaded.IsProcessed("https://example.org/c"))
	require.Equal(t, Stats{TotalProcessed: 2, Successful: 1, Failed: 1, Skipped: 1}, loaded.Stats())
	require.Equal(t, map[string]string{"https://example.org/b": "http status 500"}, loaded.FailedURLs())

	d, ok := loaded.LastSuccessfulDate()
	require.True(t, ok)
	require.Equal(t, "2024-03-15", d.Format("2006-01-02"))
}

func TestStateFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewState("elegislation")
	s.MarkProcessed("https://example.org/cap1", true, "")
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "elegislation", raw["scraperName"])
	require.Contains(t, raw, "lastRunAt")
	require.Contains(t, raw, "processedUrls")
	require.Contains(t, raw, "failedUrls")
	stats, ok := raw["stats"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, stats, "totalProcessed")
	require.Contains(t, stats, "successful")
	require.Contains(t, stats, "failed")
	require.Contains(t, stats, "skipped")
}

func TestLoadStateMissingFile(t *testing.T) {
	s, ok, err := LoadState("judiciary", filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Stats{}, s.Stats())
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, ok, err := LoadState("judiciary", path)
	require.Error(t, err, "corruption should be reported")
	require.False(t, ok)
	require.NotNil(t, s, "a fresh state must still be returned")
	require.Equal(t, Stats{}, s.Stats())
}

func TestStateSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := NewState("judiciary")
	require.NoError(t, s.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file should remain after save")
}
