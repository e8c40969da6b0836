// Package checker drives a full link check run: page through due candidates, probe each batch
// with per-host fairness, commit the batch, then advance the cursor.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"linkchecker/internal/kafka"
	"linkchecker/internal/metrics"
	"linkchecker/internal/models"
	"linkchecker/internal/pager"
	"linkchecker/internal/probe"
	"linkchecker/internal/schedule"
	"linkchecker/internal/store"
)

var (
	// ErrStorage wraps any candidate fetch, status write or commit failure.
	ErrStorage = errors.New("storage failure")
	// ErrUnclassifiedProbe is returned in strict mode when a probe error fits no known kind.
	ErrUnclassifiedProbe = errors.New("unclassified probe error")
)

// Prober checks one URL within timeout; see probe.Prober.
type Prober interface {
	Probe(ctx context.Context, rawURL string, timeout time.Duration) (models.LinkCheckResult, error)
}

// Summary describes what a run got through. Cursor is the last committed key.
type Summary struct {
	RunID   string
	Batches int
	Results int
	Cursor  string
}

type Runner struct {
	cfg       Config
	runID     string
	pager     *pager.Pager
	batcher   *schedule.Batcher
	writer    store.BatchOpener
	publisher kafka.StatusPublisher
	now       func() time.Time
}

// New wires a runner. source should be a read-only handle and writer a read-write one;
// publisher may be nil.
func New(cfg Config, source store.CandidateSource, writer store.BatchOpener, prober Prober, publisher kafka.StatusPublisher) *Runner {
	cfg = cfg.withDefaults()
	adapter := &probeAdapter{prober: prober, timeout: cfg.Timeout, strict: cfg.StrictUnknown}
	return &Runner{
		cfg:       cfg,
		runID:     uuid.NewString(),
		pager:     pager.New(source, cfg.PageSize, cfg.RecheckAge),
		batcher:   schedule.New(adapter, cfg.HostDelay, cfg.Jobs),
		writer:    writer,
		publisher: publisher,
		now:       time.Now,
	}
}

// RunID identifies this runner's run in logs and published events.
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes batches until no candidates remain. On error, every batch before the failing
// one is committed and Summary.Cursor points at the last of them.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: r.runID}
	log.Printf("run start run=%s page_size=%d jobs=%d delay=%s recheck_age=%s",
		r.runID, r.cfg.PageSize, r.cfg.Jobs, r.cfg.HostDelay, r.cfg.RecheckAge)

	cursor := ""
	for {
		page, err := r.pager.NextBatch(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			return summary, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if page.Empty() {
			log.Printf("empty batch, run done run=%s batches=%d results=%d", r.runID, summary.Batches, summary.Results)
			return summary, nil
		}

		log.Printf("processing batch urls=%d first=%s last=%s", len(page.URLs), page.URLs[0], page.Cursor)
		results, err := r.batcher.Schedule(ctx, page.URLs)
		if err != nil {
			return summary, err
		}

		checkedAt := r.now().UTC()
		if err := r.persist(ctx, results); err != nil {
			metrics.BatchFailed()
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			return summary, err
		}

		cursor = page.Cursor
		summary.Cursor = cursor
		summary.Batches++
		summary.Results += len(results)
		log.Printf("batch done results=%d cursor=%s", len(results), cursor)

		r.publish(ctx, results, checkedAt)
	}
}

// persist writes every result of one batch and commits them together. Nothing from the batch
// is visible if any step fails.
func (r *Runner) persist(ctx context.Context, results []models.LinkCheckResult) error {
	batch, err := r.writer.OpenBatch(ctx)
	if err != nil {
		return fmt.Errorf("%w: open batch: %w", ErrStorage, err)
	}

	log.Printf("writing batch results=%d", len(results))
	for _, result := range results {
		if err := batch.UpdateLinkStatus(ctx, result); err != nil {
			_ = batch.Discard()
			return fmt.Errorf("%w: update %s: %w", ErrStorage, result.URL, err)
		}
	}

	log.Printf("committing batch")
	start := time.Now()
	if err := batch.Commit(ctx); err != nil {
		_ = batch.Discard()
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	metrics.BatchCommitted(time.Since(start))
	return nil
}

// publish announces a committed batch. The batch is already durable, so failures only log.
func (r *Runner) publish(ctx context.Context, results []models.LinkCheckResult, checkedAt time.Time) {
	if r.publisher == nil || len(results) == 0 {
		return
	}
	if err := r.publisher.PublishResults(ctx, r.runID, results, checkedAt); err != nil {
		metrics.PublishFailed()
		log.Printf("status publish error run=%s results=%d: %v", r.runID, len(results), err)
		return
	}
	metrics.StatusesPublished(len(results))
}

// probeAdapter binds the per-probe timeout and decides what an unclassified error means.
type probeAdapter struct {
	prober  Prober
	timeout time.Duration
	strict  bool
}

func (a *probeAdapter) Probe(ctx context.Context, rawURL string) (models.LinkCheckResult, error) {
	metrics.ProbeStarted()
	start := time.Now()
	result, err := a.prober.Probe(ctx, rawURL, a.timeout)
	if err != nil && ctx.Err() != nil {
		metrics.ProbeAbandoned()
		return result, err
	}
	metrics.ProbeFinished(time.Since(start), result.Status)

	var unclassified *probe.UnclassifiedError
	if errors.As(err, &unclassified) {
		log.Printf("unclassified probe error url=%s: %v", rawURL, unclassified.Err)
		if a.strict {
			return result, fmt.Errorf("%w: %w", ErrUnclassifiedProbe, err)
		}
		return models.FailedResult(rawURL, models.StatusUnknownError), nil
	}
	if err != nil {
		return result, err
	}
	log.Printf("probed url=%s status=%s", rawURL, result.Status)
	return result, nil
}
