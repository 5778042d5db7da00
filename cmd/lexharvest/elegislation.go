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
	"github.com/hklex/lexharvest/internal/elegislation"
	"github.com/hklex/lexharvest/internal/metrics"
	"github.com/hklex/lexharvest/internal/publish"
	"github.com/hklex/lexharvest/internal/scrape"
	"github.com/hklex/lexharvest/internal/storage"
)

var (
	elegislationLimit   int
	elegislationChapter string
	elegislationSection string
	elegislationSitemap bool
	elegislationCapFrom int
	elegislationCapTo   int
	elegislationState   string
)

// sitemapSource swaps enumeration-based discovery for the site's sitemap.
type sitemapSource struct {
	*elegislation.Source
}

func (s sitemapSource) DiscoverURLs(ctx context.Context, yield func(string) error) error {
	return s.DiscoverFromSitemap(ctx, yield)
}

var elegislationCmd = &cobra.Command{
	Use:   "elegislation",
	Short: "Harvest chapters from Hong Kong e-Legislation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if elegislationCapFrom > 0 {
			cfg.ELegislation.CapFrom = elegislationCapFrom
		}
		if elegislationCapTo > 0 {
			cfg.ELegislation.CapTo = elegislationCapTo
		}
		if elegislationState != "" {
			cfg.ELegislation.StateFile = elegislationState
		}
		if cfg.ELegislation.CapFrom > cfg.ELegislation.CapTo {
			return fmt.Errorf("cap range [%d, %d] is invalid", cfg.ELegislation.CapFrom, cfg.ELegislation.CapTo)
		}

		p, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		client, closeClient, err := buildClient("elegislation", cfg.ELegislation, cfg.Headless, logger)
		if err != nil {
			return err
		}
		defer closeClient()

		src := elegislation.NewSource(client, cfg.ELegislation, logger)

		if elegislationChapter != "" {
			return harvestSingleChapter(ctx, p, src, elegislationChapter, elegislationSection)
		}

		var engineSrc scrape.Source = src
		if elegislationSitemap {
			engineSrc = sitemapSource{src}
		}
		eng := scrape.NewEngine(engineSrc, scrape.EngineConfig{StatePath: cfg.ELegislation.StateFile}, logger)
		return runHarvest(ctx, "elegislation", eng, elegislationLimit, func(item scrape.Item) error {
			return handleLegislation(ctx, p, item)
		})
	},
}

func harvestSingleChapter(ctx context.Context, p *pipeline, src *elegislation.Source, chapter, section string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if section != "" {
		sec, err := src.ScrapeSection(ctx, chapter, section)
		if err != nil {
			return fmt.Errorf("scrape cap %s s. %s: %w", chapter, section, err)
		}
		return enc.Encode(sec)
	}

	item, err := src.ScrapeChapter(ctx, chapter)
	if err != nil {
		return fmt.Errorf("scrape cap %s: %w", chapter, err)
	}
	if err := handleLegislation(ctx, p, item); err != nil {
		return err
	}
	return enc.Encode(item.Legislation)
}

// handleLegislation archives, persists, chunks, and publishes one chapter.
func handleLegislation(ctx context.Context, p *pipeline, item scrape.Item) error {
	leg, ok := item.(*elegislation.Item)
	if !ok {
		return fmt.Errorf("unexpected item type %T", item)
	}

	naturalKey := leg.ChapterNumber
	if naturalKey == "" {
		naturalKey = leg.TitleEN
	}

	blobURI, err := p.blobs.PutObject(ctx,
		storage.ObjectPath("elegislation", []byte(leg.RawHTML), "html"),
		"text/html", strings.NewReader(leg.RawHTML))
	if err != nil {
		logger.Warn("archive failed", zap.String("key", naturalKey), zap.Error(err))
	}

	docID, err := p.docs.SaveDocument(ctx, storage.Document{
		DocType:    "legislation",
		NaturalKey: naturalKey,
		SourceURL:  leg.SourceURL,
		ScrapedAt:  leg.ScrapedAt,
		BlobURI:    blobURI,
		WordCount:  legislationWordCount(leg.Legislation),
		Language:   "en",
		Payload:    leg.Legislation,
	})
	if err != nil {
		return err
	}

	chunks := legislationChunks(naturalKey, leg.Legislation)
	if err := p.docs.SaveChunks(ctx, docID, chunks); err != nil {
		return err
	}
	metrics.ObserveChunks("legislation", len(chunks))

	if _, err := p.pub.Publish(ctx, publish.Event{
		DocType:    "legislation",
		NaturalKey: naturalKey,
		SourceURL:  leg.SourceURL,
		Payload:    leg.Legislation,
	}); err != nil {
		logger.Warn("publish failed", zap.String("key", naturalKey), zap.Error(err))
	}

	logger.Info("chapter harvested",
		zap.String("key", naturalKey),
		zap.Int("sections", len(leg.Sections)),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// legislationChunks chunks every section and schedule of a chapter, with
// chunk indexes running across the whole document.
func legislationChunks(chapter string, leg elegislation.Legislation) []chunk.Chunk {
	var all []chunk.Chunk
	next := 0

	add := func(content, path string) {
		for _, c := range chunk.ChunkSection(chapter, content, path) {
			c.ChunkIndex = next
			next++
			all = append(all, c)
		}
	}

	if leg.LongTitle != "" {
		add(leg.LongTitle, chapter+" long title")
	}
	for _, sec := range leg.Sections {
		add(sec.Content, fmt.Sprintf("%s s. %s", chapter, sec.SectionNumber))
	}
	for _, sch := range leg.Schedules {
		add(sch.Content, fmt.Sprintf("%s %s", chapter, sch.Title))
	}
	return all
}

func legislationWordCount(leg elegislation.Legislation) int {
	n := len(strings.Fields(leg.LongTitle))
	for _, sec := range leg.Sections {
		n += len(strings.Fields(sec.Content))
	}
	for _, sch := range leg.Schedules {
		n += len(strings.Fields(sch.Content))
	}
	return n
}

func init() {
	elegislationCmd.Flags().IntVar(&elegislationLimit, "limit", 0, "stop after this many chapters (0 = unbounded)")
	elegislationCmd.Flags().StringVar(&elegislationChapter, "chapter", "", "harvest a single chapter, e.g. 32 or 571AB")
	elegislationCmd.Flags().StringVar(&elegislationSection, "section", "", "with --chapter, print a single section")
	elegislationCmd.Flags().BoolVar(&elegislationSitemap, "from-sitemap", false, "discover chapters from the published sitemap")
	elegislationCmd.Flags().IntVar(&elegislationCapFrom, "cap-from", 0, "override the first chapter number")
	elegislationCmd.Flags().IntVar(&elegislationCapTo, "cap-to", 0, "override the last chapter number")
	elegislationCmd.Flags().StringVar(&elegislationState, "state-file", "", "override the checkpoint path")
	rootCmd.AddCommand(elegislationCmd)
}
