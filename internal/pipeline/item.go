package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ajbarea/aws-image-translate/internal/domain"
	"github.com/ajbarea/aws-image-translate/internal/objectstore"
)

// processItem drives one candidate through the enrichment stages:
//
//	Discovered -> Downloaded -> Stored -> TextExtracted ->
//	LanguageDetected -> Translated -> Completed
//
// Any failure routes to the applicable skip status. There is no rollback and
// no mid-item resumption: a failed item is retried from scratch on a later
// run if the checkpoint has not moved past it. A nil return means the item
// was abandoned by cancellation and recorded nothing.
func (o *Orchestrator) processItem(ctx context.Context, item domain.CandidateItem) *domain.EnrichmentResult {
	res := &domain.EnrichmentResult{
		SourceKey:      item.SourceKey,
		PostID:         item.PostID,
		TargetLanguage: o.targetLang,
		ProcessedAt:    time.Now().UTC(),
	}

	if len(item.MediaURLs) == 0 {
		return o.skip(ctx, res, domain.StateDiscovered, Permanent(fmt.Errorf("candidate has no media URLs")))
	}
	mediaURL := item.MediaURLs[0]

	// Re-runs over an already-stored asset skip the download entirely. The
	// full key depends on the content type, which is only known after a
	// download, so the lookup goes through the deterministic key prefix.
	key := o.storedAssetKey(ctx, item.PostID, mediaURL)

	if key == "" {
		// Discovered -> Downloaded
		var (
			data        []byte
			contentType string
		)
		err := o.retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
			var fetchErr error
			data, contentType, fetchErr = o.media.Fetch(callCtx, mediaURL)
			return fetchErr
		})
		if err != nil {
			return o.skip(ctx, res, domain.StateDiscovered, stageError("download media", err))
		}

		// Downloaded -> Stored. The key is deterministic, so a re-run against
		// an already-processed post is an idempotent no-op; Exists avoids
		// redundant uploads on top of that.
		key = objectstore.ObjectKey(item.PostID, mediaURL, contentType)
		err = o.retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
			exists, existsErr := o.objects.Exists(callCtx, key)
			if existsErr != nil {
				return Transient(existsErr)
			}
			if exists {
				return nil
			}
			if putErr := o.objects.Put(callCtx, key, data, contentType); putErr != nil {
				return Transient(putErr)
			}
			return nil
		})
		if err != nil {
			return o.skip(ctx, res, domain.StateDownloaded, stageError("store asset", err))
		}
	}
	res.AssetKey = key

	// Stored -> TextExtracted
	var text string
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		var exErr error
		text, exErr = o.extractor.ExtractText(callCtx, key)
		return exErr
	})
	if err != nil {
		return o.skip(ctx, res, domain.StateStored, stageError("extract text", err))
	}
	res.ExtractedText = text

	// No text found is a valid outcome; detection is skipped rather than
	// attempted on empty input.
	if text == "" {
		return o.complete(res)
	}

	// TextExtracted -> LanguageDetected
	var sourceLang string
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		var detErr error
		sourceLang, detErr = o.detector.DetectLanguage(callCtx, text)
		return detErr
	})
	if err != nil {
		return o.skip(ctx, res, domain.StateTextExtracted, stageError("detect language", err))
	}
	res.SourceLanguage = sourceLang

	// LanguageDetected -> Translated
	if sourceLang == o.targetLang {
		res.TranslatedText = text
		return o.complete(res)
	}
	var translated string
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		var trErr error
		translated, trErr = o.translator.Translate(callCtx, text, sourceLang, o.targetLang)
		return trErr
	})
	if err != nil {
		return o.skip(ctx, res, domain.StateLanguageDetected, stageError("translate", err))
	}
	res.TranslatedText = translated

	return o.complete(res)
}

// storedAssetKey returns the existing object key for (postID, url) if the
// asset was stored by a previous run, or "" when a download is needed. Best
// effort: lookup failures just mean downloading again.
func (o *Orchestrator) storedAssetKey(ctx context.Context, postID, url string) string {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	keys, err := o.objects.List(callCtx, postID+"/")
	if err != nil || len(keys) == 0 {
		return ""
	}
	prefix := objectstore.KeyPrefix(postID, url) + "."
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			return k
		}
	}
	return ""
}

func (o *Orchestrator) complete(res *domain.EnrichmentResult) *domain.EnrichmentResult {
	res.Status = domain.StatusCompleted
	o.log.DebugObj("item completed", "item_result", map[string]any{
		"source_key": res.SourceKey,
		"post_id":    res.PostID,
		"asset_key":  res.AssetKey,
	})
	return res
}

// skip records a terminal skip for the item, distinguishing permanent
// failures from exhausted transient ones. Items interrupted by run
// cancellation are abandoned instead: no terminal state, so the checkpoint
// cannot move past them.
func (o *Orchestrator) skip(ctx context.Context, res *domain.EnrichmentResult, stage domain.ItemState, err error) *domain.EnrichmentResult {
	if isAbandoned(ctx) {
		o.log.WarnObj("item abandoned by cancellation", "item_abandoned", map[string]any{
			"source_key": res.SourceKey,
			"post_id":    res.PostID,
			"stage":      string(stage),
		})
		return nil
	}

	if IsPermanent(err) {
		res.Status = domain.StatusSkippedPermanent
	} else {
		res.Status = domain.StatusSkippedTransientExhausted
	}
	res.FailedStage = stage
	res.FailureReason = err.Error()

	o.log.WarnObj("item skipped", "item_skip", map[string]any{
		"source_key":  res.SourceKey,
		"post_id":     res.PostID,
		"stage":       string(stage),
		"error_class": errClass(err),
		"error":       err.Error(),
	})
	return res
}
