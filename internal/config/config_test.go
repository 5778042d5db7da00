package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://legalref.judiciary.hk", cfg.Judiciary.BaseURL)
	assert.Equal(t, "https://www.elegislation.gov.hk", cfg.ELegislation.BaseURL)
	assert.Equal(t, 3, cfg.Judiciary.MaxRetries)
	assert.Equal(t, 1, cfg.ELegislation.CapFrom)
	assert.Equal(t, 1200, cfg.ELegislation.CapTo)
	assert.True(t, cfg.ELegislation.IncludeSubsidiary)
	assert.Equal(t, 2000, cfg.Chunking.MaxChars)
	assert.Equal(t, 2, cfg.Chunking.OverlapParagraphs)
	assert.Equal(t, "noop", cfg.Blob.Provider)
	assert.Equal(t, 3*time.Second, cfg.Judiciary.RequestDelay())
	assert.Equal(t, 60*time.Second, cfg.Judiciary.Timeout())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
judiciary:
  year_from: 2010
  year_to: 2020
  request_delay_seconds: 1.5
chunking:
  max_chars: 1500
blob:
  provider: local
  base_dir: /tmp/blobs
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2010, cfg.Judiciary.YearFrom)
	assert.Equal(t, 2020, cfg.Judiciary.YearTo)
	assert.Equal(t, 1500*time.Millisecond, cfg.Judiciary.RequestDelay())
	assert.Equal(t, 1500, cfg.Chunking.MaxChars)
	assert.Equal(t, "local", cfg.Blob.Provider)
	assert.Equal(t, "/tmp/blobs", cfg.Blob.BaseDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEXHARVEST_JUDICIARY_MAX_RETRIES", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Judiciary.MaxRetries)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"inverted year range", func(c *Config) { c.Judiciary.YearFrom = 2030; c.Judiciary.YearTo = 2020 }, "year_from"},
		{"zero cap_from", func(c *Config) { c.ELegislation.CapFrom = 0 }, "cap range"},
		{"zero max_chars", func(c *Config) { c.Chunking.MaxChars = 0 }, "max_chars"},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapParagraphs = -1 }, "overlap_paragraphs"},
		{"gcs without bucket", func(c *Config) { c.Blob.Provider = "gcs" }, "blob.bucket"},
		{"local without base dir", func(c *Config) { c.Blob.Provider = "local" }, "blob.base_dir"},
		{"unknown provider", func(c *Config) { c.Blob.Provider = "s3" }, "unknown blob provider"},
		{"missing base url", func(c *Config) { c.Judiciary.BaseURL = "" }, "base_url"},
		{"negative delay", func(c *Config) { c.ELegislation.RequestDelaySec = -1 }, "request_delay_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
