package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajbarea/aws-image-translate/internal/domain"
	"github.com/ajbarea/aws-image-translate/internal/logger"
)

const (
	defaultFetchLimit  = 25
	defaultWorkerCount = 4
	defaultCallTimeout = 15 * time.Second
)

// Deps carries the orchestrator's collaborators and tuning knobs.
type Deps struct {
	State      StateStore
	Objects    ObjectStore
	Feed       FeedClient
	Media      MediaFetcher
	Extractor  TextExtractor
	Detector   LanguageDetector
	Translator Translator
	Sink       ResultSink // optional

	Retry          RetryPolicy
	TargetLanguage string
	FetchLimit     int
	WorkerCount    int
	CallTimeout    time.Duration
	Log            logger.Logger
}

// Orchestrator drives one source through the full pipeline: discover new
// candidates past the checkpoint, run each through the enrichment state
// machine, and advance the checkpoint to the newest contiguous terminal item.
//
// A single orchestrator run assumes it is the sole writer of the source's
// checkpoint; concurrent runs against the same source key are the caller's
// responsibility to prevent.
type Orchestrator struct {
	state      StateStore
	objects    ObjectStore
	feed       FeedClient
	media      MediaFetcher
	extractor  TextExtractor
	detector   LanguageDetector
	translator Translator
	sink       ResultSink

	retry       RetryPolicy
	targetLang  string
	fetchLimit  int
	workerCount int
	callTimeout time.Duration
	log         logger.Logger
}

// NewOrchestrator validates deps and builds an orchestrator.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.State == nil {
		return nil, fmt.Errorf("state store must not be nil")
	}
	if deps.Objects == nil {
		return nil, fmt.Errorf("object store must not be nil")
	}
	if deps.Feed == nil {
		return nil, fmt.Errorf("feed client must not be nil")
	}
	if deps.Media == nil {
		return nil, fmt.Errorf("media fetcher must not be nil")
	}
	if deps.Extractor == nil || deps.Detector == nil || deps.Translator == nil {
		return nil, fmt.Errorf("enrichment services must not be nil")
	}
	if strings.TrimSpace(deps.TargetLanguage) == "" {
		return nil, fmt.Errorf("target language must not be empty")
	}
	if deps.Log == nil {
		deps.Log = &logger.NopLogger{}
	}
	if deps.FetchLimit <= 0 {
		deps.FetchLimit = defaultFetchLimit
	}
	if deps.WorkerCount <= 0 {
		deps.WorkerCount = defaultWorkerCount
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = defaultCallTimeout
	}

	return &Orchestrator{
		state:       deps.State,
		objects:     deps.Objects,
		feed:        deps.Feed,
		media:       deps.Media,
		extractor:   deps.Extractor,
		detector:    deps.Detector,
		translator:  deps.Translator,
		sink:        deps.Sink,
		retry:       deps.Retry.normalized(),
		targetLang:  strings.TrimSpace(deps.TargetLanguage),
		fetchLimit:  deps.FetchLimit,
		workerCount: deps.WorkerCount,
		callTimeout: deps.CallTimeout,
		log:         deps.Log,
	}, nil
}

// Run executes one batch for the source and returns its summary. The
// checkpoint only moves forward, and only after every item ahead of it has
// reached a terminal state.
func (o *Orchestrator) Run(ctx context.Context, sourceKey string) (domain.RunSummary, error) {
	sourceKey = strings.TrimSpace(sourceKey)
	summary := domain.RunSummary{Status: domain.RunFailed, SourceKey: sourceKey}
	if sourceKey == "" {
		return summary, fmt.Errorf("source key must not be empty")
	}

	checkpoint, found, err := o.state.Get(ctx, sourceKey)
	if err != nil {
		return summary, fmt.Errorf("read checkpoint for %s: %w", sourceKey, err)
	}
	summary.NewCheckpoint = checkpoint

	candidates, err := o.feed.Fetch(ctx, sourceKey, o.fetchLimit)
	if err != nil {
		return summary, fmt.Errorf("fetch candidates for %s: %w", sourceKey, err)
	}

	batch := trimAtCheckpoint(candidates, checkpoint, found)
	if len(batch) == 0 {
		summary.Status = domain.RunNoWork
		o.log.InfoObj("no new candidates", "run_meta", map[string]any{
			"source_key": sourceKey,
			"checkpoint": checkpoint,
		})
		return summary, nil
	}

	// Oldest first, so the checkpoint always describes a contiguous frontier.
	reverseItems(batch)

	results := o.processBatch(ctx, batch)

	for _, res := range results {
		if res == nil {
			continue
		}
		switch res.Status {
		case domain.StatusCompleted:
			summary.Completed++
		case domain.StatusSkippedPermanent:
			summary.SkippedPermanent++
		case domain.StatusSkippedTransientExhausted:
			summary.SkippedTransient++
		}
	}

	frontier := newFrontier(batch, results)
	if frontier == "" {
		// Nothing reached a terminal state (cancelled mid-batch); leave the
		// checkpoint untouched so the whole batch is retried next run.
		summary.Status = domain.RunOK
		return summary, nil
	}

	if err := o.state.Put(ctx, sourceKey, frontier); err != nil {
		o.log.ErrorObj("checkpoint write failed", "run_error", map[string]any{
			"source_key": sourceKey,
			"frontier":   frontier,
			"error":      err.Error(),
		})
		return summary, fmt.Errorf("advance checkpoint for %s: %w", sourceKey, err)
	}

	summary.Status = domain.RunOK
	summary.NewCheckpoint = frontier
	o.log.InfoObj("run completed", "run_summary", map[string]any{
		"source_key":        sourceKey,
		"completed":         summary.Completed,
		"skipped_permanent": summary.SkippedPermanent,
		"skipped_transient": summary.SkippedTransient,
		"new_checkpoint":    frontier,
	})
	return summary, nil
}

// processBatch runs the per-item state machine across a bounded worker pool.
// results[i] stays nil for items abandoned by cancellation.
func (o *Orchestrator) processBatch(ctx context.Context, batch []domain.CandidateItem) []*domain.EnrichmentResult {
	results := make([]*domain.EnrichmentResult, len(batch))

	sem := make(chan struct{}, o.workerCount)
	var wg sync.WaitGroup
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, item domain.CandidateItem) {
			defer wg.Done()
			defer func() { <-sem }()

			res := o.processItem(ctx, item)
			if res == nil {
				return
			}
			results[idx] = res
			o.record(ctx, *res)
		}(i, batch[i])
	}
	wg.Wait()

	return results
}

// record forwards a terminal result to the sink, if one is configured.
func (o *Orchestrator) record(ctx context.Context, res domain.EnrichmentResult) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Record(ctx, res); err != nil {
		o.log.WarnObj("result sink record failed", "sink_error", map[string]any{
			"source_key": res.SourceKey,
			"post_id":    res.PostID,
			"error":      err.Error(),
		})
	}
}

// trimAtCheckpoint cuts the newest-first candidate list at the first entry
// matching the checkpoint; everything at and after it is already processed.
func trimAtCheckpoint(candidates []domain.CandidateItem, checkpoint string, found bool) []domain.CandidateItem {
	if !found || checkpoint == "" {
		return candidates
	}
	for i, c := range candidates {
		if c.PostID == checkpoint {
			return candidates[:i]
		}
	}
	return candidates
}

// newFrontier walks the batch in processing order and returns the newest post
// ID such that every item up to it reached a terminal state. Empty when even
// the oldest item did not finish.
func newFrontier(batch []domain.CandidateItem, results []*domain.EnrichmentResult) string {
	frontier := ""
	for i := range batch {
		if results[i] == nil {
			break
		}
		frontier = batch[i].PostID
	}
	return frontier
}

func reverseItems(items []domain.CandidateItem) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
