// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging"`
	Server       ServerConfig       `mapstructure:"server"`
	Judiciary    SiteConfig         `mapstructure:"judiciary"`
	ELegislation SiteConfig         `mapstructure:"elegislation"`
	Headless     HeadlessConfig     `mapstructure:"headless"`
	Chunking     ChunkingConfig     `mapstructure:"chunking"`
	DB           DBConfig           `mapstructure:"db"`
	Blob         BlobConfig         `mapstructure:"blob"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls the status HTTP server started beside a crawl.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SiteConfig governs one site crawler: pacing, retries, and checkpointing.
type SiteConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	RequestDelaySec   float64 `mapstructure:"request_delay_seconds"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	TimeoutSec        int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	StateFile         string  `mapstructure:"state_file"`
	YearFrom          int     `mapstructure:"year_from"`
	YearTo            int     `mapstructure:"year_to"`
	CapFrom           int     `mapstructure:"cap_from"`
	CapTo             int     `mapstructure:"cap_to"`
	IncludeSubsidiary bool    `mapstructure:"include_subsidiary"`
	IncludeHistorical bool    `mapstructure:"include_historical"`
	Adaptive          bool    `mapstructure:"adaptive_rate_limit"`
}

// HeadlessConfig configures the chromedp rendering subsystem.
type HeadlessConfig struct {
	UserAgent     string `mapstructure:"user_agent"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
}

// ChunkingConfig bounds chunk size and paragraph overlap.
type ChunkingConfig struct {
	MaxChars          int `mapstructure:"max_chars"`
	OverlapParagraphs int `mapstructure:"overlap_paragraphs"`
}

// DBConfig controls access to the document database. An empty DSN selects
// the no-op store.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	DocumentsTable  string `mapstructure:"documents_table"`
	ChunksTable     string `mapstructure:"chunks_table"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeSec int    `mapstructure:"conn_lifetime_seconds"`
}

// BlobConfig selects where raw HTML and PDFs are archived.
type BlobConfig struct {
	Provider string `mapstructure:"provider"` // "gcs", "local", or "noop"
	Bucket   string `mapstructure:"bucket"`
	BaseDir  string `mapstructure:"base_dir"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for the chunk-record publisher. An empty
// project selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEXHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("judiciary.base_url", "https://legalref.judiciary.hk")
	v.SetDefault("judiciary.request_delay_seconds", 3.0)
	v.SetDefault("judiciary.max_concurrent", 2)
	v.SetDefault("judiciary.timeout_seconds", 60)
	v.SetDefault("judiciary.max_retries", 3)
	v.SetDefault("judiciary.state_file", "state/judiciary_state.json")
	v.SetDefault("judiciary.year_from", 2000)
	v.SetDefault("judiciary.year_to", 2027)
	v.SetDefault("judiciary.adaptive_rate_limit", true)

	v.SetDefault("elegislation.base_url", "https://www.elegislation.gov.hk")
	v.SetDefault("elegislation.request_delay_seconds", 3.0)
	v.SetDefault("elegislation.max_concurrent", 2)
	v.SetDefault("elegislation.timeout_seconds", 60)
	v.SetDefault("elegislation.max_retries", 3)
	v.SetDefault("elegislation.state_file", "state/elegislation_state.json")
	v.SetDefault("elegislation.cap_from", 1)
	v.SetDefault("elegislation.cap_to", 1200)
	v.SetDefault("elegislation.include_subsidiary", true)
	v.SetDefault("elegislation.include_historical", false)

	v.SetDefault("headless.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 60)

	v.SetDefault("chunking.max_chars", 2000)
	v.SetDefault("chunking.overlap_paragraphs", 2)

	v.SetDefault("db.documents_table", "documents")
	v.SetDefault("db.chunks_table", "chunks")

	v.SetDefault("blob.provider", "noop")
	v.SetDefault("blob.prefix", "raw")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	for name, site := range map[string]SiteConfig{"judiciary": c.Judiciary, "elegislation": c.ELegislation} {
		if site.BaseURL == "" {
			return fmt.Errorf("%s.base_url is required", name)
		}
		if site.MaxConcurrent <= 0 {
			return fmt.Errorf("%s.max_concurrent must be > 0", name)
		}
		if site.TimeoutSec <= 0 {
			return fmt.Errorf("%s.timeout_seconds must be > 0", name)
		}
		if site.RequestDelaySec < 0 {
			return fmt.Errorf("%s.request_delay_seconds must be >= 0", name)
		}
	}
	if c.Judiciary.YearFrom > c.Judiciary.YearTo {
		return fmt.Errorf("judiciary.year_from must not exceed judiciary.year_to")
	}
	if c.ELegislation.CapFrom <= 0 || c.ELegislation.CapFrom > c.ELegislation.CapTo {
		return fmt.Errorf("elegislation cap range [%d, %d] is invalid", c.ELegislation.CapFrom, c.ELegislation.CapTo)
	}
	if c.Chunking.MaxChars <= 0 {
		return fmt.Errorf("chunking.max_chars must be > 0")
	}
	if c.Chunking.OverlapParagraphs < 0 {
		return fmt.Errorf("chunking.overlap_paragraphs must be >= 0")
	}
	switch c.Blob.Provider {
	case "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required when blob.provider is gcs")
		}
	case "local":
		if c.Blob.BaseDir == "" {
			return fmt.Errorf("blob.base_dir is required when blob.provider is local")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown blob provider: %s", c.Blob.Provider)
	}
	return nil
}

// RequestDelay converts the configured delay into a time.Duration.
func (s SiteConfig) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelaySec * float64(time.Second))
}

// Timeout converts the configured page timeout into a time.Duration.
func (s SiteConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}
