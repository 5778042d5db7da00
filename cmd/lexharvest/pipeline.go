package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hklex/lexharvest/internal/api"
	"github.com/hklex/lexharvest/internal/config"
	"github.com/hklex/lexharvest/internal/fetch"
	"github.com/hklex/lexharvest/internal/metrics"
	"github.com/hklex/lexharvest/internal/publish"
	memorypublisher "github.com/hklex/lexharvest/internal/publish/memory"
	gcppublisher "github.com/hklex/lexharvest/internal/publish/pubsub"
	"github.com/hklex/lexharvest/internal/ratelimit"
	"github.com/hklex/lexharvest/internal/scrape"
	"github.com/hklex/lexharvest/internal/storage"
	gcsstorage "github.com/hklex/lexharvest/internal/storage/gcs"
	localstorage "github.com/hklex/lexharvest/internal/storage/local"
	pgstore "github.com/hklex/lexharvest/internal/storage/postgres"
)

// pipeline bundles the sinks every harvest shares: the document store, the
// raw-artifact archive, and the event publisher.
type pipeline struct {
	docs    storage.DocumentStore
	blobs   storage.BlobStore
	pub     publish.Publisher
	closers []func()
}

func buildPipeline(ctx context.Context, cfg config.Config, log *zap.Logger) (*pipeline, error) {
	metrics.Init()
	p := &pipeline{}

	if err := p.setupDocumentStore(ctx, cfg, log); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.setupBlobStore(ctx, cfg, log); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.setupPublisher(ctx, cfg, log); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *pipeline) setupDocumentStore(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.DB.DSN == "" {
		log.Warn("no database DSN configured, documents will not be persisted")
		p.docs = storage.NoopDocumentStore{}
		return nil
	}
	docs, err := pgstore.NewDocumentStore(ctx, pgstore.DocumentStoreConfig{
		DSN:             cfg.DB.DSN,
		DocumentTable:   cfg.DB.DocumentsTable,
		ChunkTable:      cfg.DB.ChunksTable,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeSec) * time.Second,
	}, log.Named("store"))
	if err != nil {
		return fmt.Errorf("document store init: %w", err)
	}
	log.Info("document store initialized",
		zap.String("documents_table", cfg.DB.DocumentsTable),
		zap.String("chunks_table", cfg.DB.ChunksTable),
	)
	p.docs = docs
	p.closers = append(p.closers, docs.Close)
	return nil
}

func (p *pipeline) setupBlobStore(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	switch cfg.Blob.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init: %w", err)
		}
		p.closers = append(p.closers, func() { _ = client.Close() })
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: cfg.Blob.Bucket,
			Prefix: cfg.Blob.Prefix,
		})
		if err != nil {
			return fmt.Errorf("gcs blob store init: %w", err)
		}
		log.Info("using GCS blob store", zap.String("bucket", cfg.Blob.Bucket))
		p.blobs = blobs
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: cfg.Blob.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init: %w", err)
		}
		log.Info("using local blob store", zap.String("base_dir", cfg.Blob.BaseDir))
		p.blobs = blobs
	default:
		log.Info("raw artifact archiving disabled")
		p.blobs = storage.NoopBlobStore{}
	}
	return nil
}

func (p *pipeline) setupPublisher(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		log.Warn("no Pub/Sub topic configured, using in-memory publisher")
		p.pub = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	p.closers = append(p.closers, func() {
		topic.Stop()
		_ = client.Close()
	})
	log.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	p.pub = gcppublisher.New(topic)
	return nil
}

// Close releases pipeline resources in reverse construction order.
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// buildClient assembles the rate-limited fetch client for one site. The
// returned closer shuts down the headless browser.
func buildClient(siteName string, site config.SiteConfig, head config.HeadlessConfig, log *zap.Logger) (*scrape.Client, func(), error) {
	renderer, err := fetch.NewRenderer(fetch.RendererConfig{
		MaxParallel:       head.MaxParallel,
		UserAgent:         head.UserAgent,
		NavigationTimeout: time.Duration(head.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("renderer init: %w", err)
	}
	static := fetch.NewStatic(fetch.StaticConfig{
		UserAgent: head.UserAgent,
		Timeout:   site.Timeout(),
	})

	var limiter scrape.Limiter
	if site.Adaptive {
		limiter = ratelimit.NewAdaptive(ratelimit.AdaptiveConfig{
			Site:          siteName,
			BaseDelay:     site.RequestDelay(),
			MinDelay:      time.Second,
			MaxDelay:      60 * time.Second,
			MaxConcurrent: site.MaxConcurrent,
		}, log.Named("ratelimit"))
	} else {
		limiter = ratelimit.New(site.MaxConcurrent, site.RequestDelay())
	}

	client := scrape.NewClient(renderer, static, limiter, scrape.ClientConfig{
		Site:       siteName,
		Timeout:    site.Timeout(),
		MaxRetries: site.MaxRetries,
	}, log.Named("client"))

	closer := func() {
		renderer.Close()
		static.Close()
	}
	return client, closer, nil
}

// runHarvest drives one engine run, serving the status API alongside when
// enabled. SIGINT and SIGTERM stop the crawl after the in-flight item.
func runHarvest(ctx context.Context, siteName string, eng *scrape.Engine, limit int, handle func(scrape.Item) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		statusAPI := api.NewServer(siteName, func() scrape.Stats {
			return eng.State().Stats()
		}, logger.Named("api"))
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           statusAPI.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("status server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
			return nil
		})
	}

	stats, runErr := eng.Run(gctx, limit, handle)
	stop()
	if err := g.Wait(); err != nil {
		logger.Warn("status server error", zap.Error(err))
	}

	logger.Info("harvest complete",
		zap.String("site", siteName),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
