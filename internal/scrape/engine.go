package scrape

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/metrics"
)

// checkpointEvery is how many yielded items pass between checkpoint flushes.
const checkpointEvery = 10

// errStop signals that the caller asked the discovery walk to end early
// (limit reached). It never escapes Run.
var errStop = errors.New("stop iteration")

// EngineConfig bounds one engine run.
type EngineConfig struct {
	// StatePath is where the checkpoint lives; empty disables persistence.
	StatePath string
}

// Engine drives a Source through its URL space: skip already-processed
// URLs, scrape the rest, record every outcome, and checkpoint as it goes.
// One bad document never aborts the crawl; only discovery itself failing or
// the context being canceled stops a run early.
type Engine struct {
	src   Source
	state *State
	cfg   EngineConfig
	log   *zap.Logger
}

// NewEngine loads the checkpoint (tolerating absence or corruption) and
// returns an engine ready to run. A corrupt checkpoint is logged and the
// crawl starts fresh; startup never fails on a bad checkpoint.
func NewEngine(src Source, cfg EngineConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("scraper", src.Name()))

	state, loaded, err := LoadState(src.Name(), cfg.StatePath)
	if err != nil {
		log.Warn("failed to load checkpoint, starting fresh", zap.Error(err))
	} else if loaded {
		log.Info("loaded checkpoint",
			zap.Int("processed_count", state.ProcessedCount()),
		)
	}
	return &Engine{
		src:   src,
		state: state,
		cfg:   cfg,
		log:   log,
	}
}

// State exposes the engine's checkpoint, e.g. for a status endpoint.
func (e *Engine) State() *State {
	return e.state
}

// Run iterates the source's discovery sequence and invokes handle for every
// valid item. limit <= 0 means unbounded. The checkpoint is flushed every
// few yields and once more on the way out, including when the context is
// canceled mid-run; in-flight work completes before the loop observes the
// cancellation between iterations.
func (e *Engine) Run(ctx context.Context, limit int, handle func(Item) error) (Stats, error) {
	e.log.Info("starting crawl", zap.Int("limit", limit))

	yielded := 0
	walkErr := e.src.DiscoverURLs(ctx, func(url string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if limit > 0 && yielded >= limit {
			return errStop
		}

		if e.state.IsProcessed(url) {
			e.log.Debug("skipping processed url", zap.String("url", url))
			e.state.MarkSkipped(url)
			metrics.ObserveItem(e.src.Name(), "skipped")
			return nil
		}

		item, err := e.src.ScrapeItem(ctx, url)
		switch {
		case err != nil && ctx.Err() != nil:
			// Cancellation surfaced through the scrape; do not consume the
			// URL, the next run should attempt it.
			return ctx.Err()
		case err != nil:
			e.log.Error("scrape failed", zap.String("url", url), zap.Error(err))
			e.state.MarkProcessed(url, false, err.Error())
			metrics.ObserveItem(e.src.Name(), "failed")
		case item == nil:
			e.state.MarkProcessed(url, false, "no item returned")
			metrics.ObserveItem(e.src.Name(), "failed")
		case !item.Valid():
			reason := item.Meta().Err
			if reason == "" {
				reason = "invalid item"
			}
			e.log.Warn("invalid item", zap.String("url", url), zap.String("reason", reason))
			e.state.MarkProcessed(url, false, reason)
			metrics.ObserveItem(e.src.Name(), "failed")
		default:
			e.state.MarkProcessed(url, true, "")
			metrics.ObserveItem(e.src.Name(), "success")
			yielded++
			if err := handle(item); err != nil {
				return fmt.Errorf("handle item %s: %w", url, err)
			}
			if yielded%checkpointEvery == 0 {
				e.checkpoint()
			}
		}
		return nil
	})

	e.checkpoint()
	stats := e.state.Stats()
	e.log.Info("crawl finished",
		zap.Int("total_processed", stats.TotalProcessed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)

	switch {
	case walkErr == nil, errors.Is(walkErr, errStop):
		return stats, nil
	case errors.Is(walkErr, context.Canceled), errors.Is(walkErr, context.DeadlineExceeded):
		return stats, walkErr
	default:
		return stats, fmt.Errorf("discovery failed: %w", walkErr)
	}
}

// checkpoint flushes state to disk. Failures are logged, not fatal: the
// crawl continues with in-memory state and the data-loss risk is accepted.
func (e *Engine) checkpoint() {
	if e.cfg.StatePath == "" {
		return
	}
	if err := e.state.Save(e.cfg.StatePath); err != nil {
		e.log.Error("failed to save checkpoint", zap.Error(err))
		metrics.ObserveCheckpointWrite(e.src.Name(), "error")
		return
	}
	metrics.ObserveCheckpointWrite(e.src.Name(), "ok")
}
