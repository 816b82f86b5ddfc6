package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/ajbarea/aws-image-translate/internal/checkpoint"
	"github.com/ajbarea/aws-image-translate/internal/config"
	"github.com/ajbarea/aws-image-translate/internal/domain"
	"github.com/ajbarea/aws-image-translate/internal/enrich"
	"github.com/ajbarea/aws-image-translate/internal/logger"
	"github.com/ajbarea/aws-image-translate/internal/media"
	"github.com/ajbarea/aws-image-translate/internal/objectstore"
	"github.com/ajbarea/aws-image-translate/internal/pipeline"
	"github.com/ajbarea/aws-image-translate/pkg/feeds"
	"github.com/ajbarea/aws-image-translate/pkg/httpclient"
	"github.com/ajbarea/aws-image-translate/pkg/publishers"
)

// Pipeline is the ingestion runtime. It wires config into concrete stores,
// feed fetchers, enrichment services, and result publishers, and drives the
// orchestrator across all configured sources. Sources are processed
// sequentially within one runtime, so each source key has a single checkpoint
// writer at a time.
type Pipeline struct {
	cfg          *config.Config
	sourceReg    *feeds.Registry
	fanout       *publishers.Fanout
	orchestrator *pipeline.Orchestrator
	store        checkpoint.Store
	objects      objectstore.Store
	log          logger.Logger
}

// NewPipeline builds the pipeline runtime from config files.
func NewPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sourceReg, err := feeds.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceList := sourceReg.All()
	sourceIDs := make([]string, 0, len(sourceList))
	for _, s := range sourceList {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	store, err := buildCheckpointStore(cfg, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("init checkpoint store: %w", err)
	}

	objects, err := buildObjectStore(cfg, awsCfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init object store: %w", err)
	}

	extractor, detector, translator, err := buildEnrichmentServices(cfg, awsCfg, objects)
	if err != nil {
		store.Close()
		objects.Close()
		return nil, fmt.Errorf("init enrichment services: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		store.Close()
		objects.Close()
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	feedClient, err := feeds.NewClient(sourceReg, feeds.DefaultFetcherRegistry(nil))
	if err != nil {
		store.Close()
		objects.Close()
		return nil, fmt.Errorf("build feed client: %w", err)
	}

	deps := pipeline.Deps{
		State:          store,
		Objects:        objects,
		Feed:           feedClient,
		Media:          media.NewFetcher(httpclient.NewRestyClient(cfg.CallTimeout), cfg.MediaMaxBytes),
		Extractor:      extractor,
		Detector:       detector,
		Translator:     translator,
		Retry:          pipeline.NewRetryPolicy(cfg.MaxRetryAttempts, cfg.RetryBaseDelay),
		TargetLanguage: cfg.TargetLanguage,
		FetchLimit:     cfg.FetchLimit,
		WorkerCount:    cfg.WorkerCount,
		CallTimeout:    cfg.CallTimeout,
		Log:            log,
	}
	if fanout != nil {
		deps.Sink = fanout
	}

	orch, err := pipeline.NewOrchestrator(deps)
	if err != nil {
		store.Close()
		objects.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &Pipeline{
		cfg:          cfg,
		sourceReg:    sourceReg,
		fanout:       fanout,
		orchestrator: orch,
		store:        store,
		objects:      objects,
		log:          log,
	}, nil
}

// Run executes the pipeline across all sources, once or on an interval loop,
// until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil || p.orchestrator == nil {
		return fmt.Errorf("pipeline is not initialized")
	}

	sources := p.sourceReg.All()
	if len(sources) == 0 {
		p.log.WarnObj("no sources configured; pipeline idle", "sources_file", p.cfg.SourcesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	p.log.InfoObj("pipeline starting", "pipeline_state", map[string]any{
		"sources_count":    len(sources),
		"publishers_count": p.fanout.Size(),
		"run_interval":     p.cfg.RunInterval.String(),
		"run_once":         p.cfg.RunOnce,
	})

	if err := p.runOnce(ctx, sources); err != nil {
		p.log.ErrorObj("initial run failed", "error", err)
		if p.cfg.RunOnce {
			return err
		}
	}
	if p.cfg.RunOnce {
		return nil
	}

	ticker := time.NewTicker(p.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.InfoObj("pipeline exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := p.runOnce(ctx, sources); err != nil {
				p.log.ErrorObj("scheduled run failed", "error", err)
			}
		}
	}
}

// RunSource executes a single run for one source key under the run deadline.
func (p *Pipeline) RunSource(ctx context.Context, sourceKey string) (domain.RunSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.RunDeadline)
	defer cancel()
	return p.orchestrator.Run(runCtx, sourceKey)
}

// runOnce performs a single run across all sources.
func (p *Pipeline) runOnce(ctx context.Context, sources []feeds.Source) error {
	start := time.Now()
	var firstErr error
	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary, err := p.RunSource(ctx, src.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			p.log.ErrorObj("source run failed", "source_error", map[string]any{
				"source_key": src.ID,
				"error":      err.Error(),
			})
			continue
		}
		p.log.InfoObj("source run completed", "source_result", map[string]any{
			"source_key":        src.ID,
			"completed":         summary.Completed,
			"skipped_permanent": summary.SkippedPermanent,
			"skipped_transient": summary.SkippedTransient,
			"new_checkpoint":    summary.NewCheckpoint,
		})
	}
	p.log.InfoObj("run pass completed", "run_meta", map[string]any{
		"sources_count": len(sources),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return firstErr
}

// Close releases the storage backends, logging any errors encountered. The
// caller owns the pipeline's lifetime: call it once Run or RunSource has
// returned, including on the single-invocation hosted path, or a warm
// container keeps the local database file locked.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.log.ErrorObj("checkpoint store close failed", "error", err)
		}
	}
	if p.objects != nil {
		if err := p.objects.Close(); err != nil {
			p.log.ErrorObj("object store close failed", "error", err)
		}
	}
}

func buildCheckpointStore(cfg *config.Config, awsCfg aws.Config) (checkpoint.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StateStoreType)) {
	case "dynamodb":
		return checkpoint.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.CheckpointTable)
	default:
		return checkpoint.NewStore(cfg.StateStoreType, checkpoint.Options{Path: cfg.BBoltPath})
	}
}

func buildObjectStore(cfg *config.Config, awsCfg aws.Config) (objectstore.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ObjectStoreType)) {
	case "s3":
		return objectstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	default:
		return objectstore.NewStore(cfg.ObjectStoreType, objectstore.Options{Path: cfg.ObjectStorePath})
	}
}

// buildEnrichmentServices wires the Rekognition, Comprehend, and Translate
// adapters. With an s3 object store, text extraction references the stored
// object directly; local stores fall back to sending asset bytes inline.
func buildEnrichmentServices(cfg *config.Config, awsCfg aws.Config, objects objectstore.Store) (pipeline.TextExtractor, pipeline.LanguageDetector, pipeline.Translator, error) {
	rekClient := rekognition.NewFromConfig(awsCfg)

	var (
		extractor pipeline.TextExtractor
		err       error
	)
	if strings.EqualFold(strings.TrimSpace(cfg.ObjectStoreType), "s3") {
		extractor, err = enrich.NewTextExtractor(rekClient, cfg.S3Bucket, cfg.S3Prefix)
	} else {
		extractor, err = enrich.NewBytesTextExtractor(rekClient, objects)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	detector, err := enrich.NewLanguageDetector(comprehend.NewFromConfig(awsCfg))
	if err != nil {
		return nil, nil, nil, err
	}
	translator, err := enrich.NewTranslator(translate.NewFromConfig(awsCfg))
	if err != nil {
		return nil, nil, nil, err
	}
	return extractor, detector, translator, nil
}

// buildFanout loads and instantiates the configured result publishers. An
// empty publishers file path disables result publishing.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, err
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	return publishers.NewFanout(pubClients), nil
}
