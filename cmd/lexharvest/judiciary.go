package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/chunk"
	"github.com/hklex/lexharvest/internal/judiciary"
	"github.com/hklex/lexharvest/internal/metrics"
	"github.com/hklex/lexharvest/internal/publish"
	"github.com/hklex/lexharvest/internal/scrape"
	"github.com/hklex/lexharvest/internal/storage"
)

var (
	judiciaryLimit    int
	judiciaryCitation string
	judiciaryYearFrom int
	judiciaryYearTo   int
	judiciaryState    string
)

var judiciaryCmd = &cobra.Command{
	Use:   "judiciary",
	Short: "Harvest judgments from the Legal Reference System",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if judiciaryYearFrom > 0 {
			cfg.Judiciary.YearFrom = judiciaryYearFrom
		}
		if judiciaryYearTo > 0 {
			cfg.Judiciary.YearTo = judiciaryYearTo
		}
		if judiciaryState != "" {
			cfg.Judiciary.StateFile = judiciaryState
		}
		if cfg.Judiciary.YearFrom > cfg.Judiciary.YearTo {
			return fmt.Errorf("year range [%d, %d] is invalid", cfg.Judiciary.YearFrom, cfg.Judiciary.YearTo)
		}

		p, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		client, closeClient, err := buildClient("judiciary", cfg.Judiciary, cfg.Headless, logger)
		if err != nil {
			return err
		}
		defer closeClient()

		src := judiciary.NewSource(client, cfg.Judiciary, logger)

		if judiciaryCitation != "" {
			return harvestSingleJudgment(ctx, p, src, judiciaryCitation)
		}

		eng := scrape.NewEngine(src, scrape.EngineConfig{StatePath: cfg.Judiciary.StateFile}, logger)
		return runHarvest(ctx, "judiciary", eng, judiciaryLimit, func(item scrape.Item) error {
			return handleCase(ctx, p, item)
		})
	},
}

func harvestSingleJudgment(ctx context.Context, p *pipeline, src *judiciary.Source, citation string) error {
	c, err := src.ScrapeByCitation(ctx, citation)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", citation, err)
	}
	if err := handleCase(ctx, p, c); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Judgment)
}

// handleCase archives, persists, chunks, and publishes one judgment. Archive
// and publish failures are logged and the crawl continues; a store failure
// aborts the run.
func handleCase(ctx context.Context, p *pipeline, item scrape.Item) error {
	c, ok := item.(*judiciary.Case)
	if !ok {
		return fmt.Errorf("unexpected item type %T", item)
	}

	naturalKey := c.NeutralCitation
	if naturalKey == "" {
		naturalKey = c.CaseNumber
	}

	blobURI, err := p.blobs.PutObject(ctx,
		storage.ObjectPath("judiciary", []byte(c.RawHTML), "html"),
		"text/html", strings.NewReader(c.RawHTML))
	if err != nil {
		logger.Warn("archive failed", zap.String("key", naturalKey), zap.Error(err))
	}

	docID, err := p.docs.SaveDocument(ctx, storage.Document{
		DocType:    "case",
		NaturalKey: naturalKey,
		SourceURL:  c.SourceURL,
		ScrapedAt:  c.ScrapedAt,
		BlobURI:    blobURI,
		WordCount:  c.WordCount,
		Language:   c.Language,
		Payload:    c.Judgment,
	})
	if err != nil {
		return err
	}

	chunks := chunk.ChunkCaseWith(naturalKey, c.FullText, cfg.Chunking.MaxChars, cfg.Chunking.OverlapParagraphs)
	if err := p.docs.SaveChunks(ctx, docID, chunks); err != nil {
		return err
	}
	metrics.ObserveChunks("case", len(chunks))

	if _, err := p.pub.Publish(ctx, publish.Event{
		DocType:    "case",
		NaturalKey: naturalKey,
		SourceURL:  c.SourceURL,
		Payload:    c.Judgment,
	}); err != nil {
		logger.Warn("publish failed", zap.String("key", naturalKey), zap.Error(err))
	}

	logger.Info("judgment harvested",
		zap.String("key", naturalKey),
		zap.String("court", c.Court),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func init() {
	judiciaryCmd.Flags().IntVar(&judiciaryLimit, "limit", 0, "stop after this many judgments (0 = unbounded)")
	judiciaryCmd.Flags().StringVar(&judiciaryCitation, "citation", "", "harvest a single judgment by neutral citation")
	judiciaryCmd.Flags().IntVar(&judiciaryYearFrom, "year-from", 0, "override the first year to crawl")
	judiciaryCmd.Flags().IntVar(&judiciaryYearTo, "year-to", 0, "override the last year to crawl")
	judiciaryCmd.Flags().StringVar(&judiciaryState, "state-file", "", "override the checkpoint path")
	rootCmd.AddCommand(judiciaryCmd)
}
