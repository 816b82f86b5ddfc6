package domain

import "time"

// Domain contains the core pipeline models.

// CandidateItem is a feed entry discovered during a run but not yet confirmed
// processed. It only lives for the duration of a single run.
type CandidateItem struct {
	SourceKey    string
	PostID       string
	Title        string
	MediaURLs    []string
	DiscoveredAt time.Time
}

// TerminalStatus is the final disposition of one item's state-machine run.
type TerminalStatus string

const (
	StatusCompleted                 TerminalStatus = "completed"
	StatusSkippedPermanent          TerminalStatus = "skipped_permanent"
	StatusSkippedTransientExhausted TerminalStatus = "skipped_transient_exhausted"
)

// ItemState tracks an item's progress through the enrichment stages.
type ItemState string

const (
	StateDiscovered       ItemState = "discovered"
	StateDownloaded       ItemState = "downloaded"
	StateStored           ItemState = "stored"
	StateTextExtracted    ItemState = "text_extracted"
	StateLanguageDetected ItemState = "language_detected"
	StateTranslated       ItemState = "translated"
)

// EnrichmentResult records the outcome of one item. Exactly one is produced per
// item that reaches a terminal state, success or not.
type EnrichmentResult struct {
	SourceKey      string         `json:"source_key"`
	PostID         string         `json:"post_id"`
	AssetKey       string         `json:"asset_key,omitempty"`
	ExtractedText  string         `json:"extracted_text,omitempty"`
	SourceLanguage string         `json:"source_language,omitempty"`
	TargetLanguage string         `json:"target_language,omitempty"`
	TranslatedText string         `json:"translated_text,omitempty"`
	Status         TerminalStatus `json:"status"`
	FailedStage    ItemState      `json:"failed_stage,omitempty"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	ProcessedAt    time.Time      `json:"processed_at"`
}

// RunStatus summarizes the overall outcome of a pipeline run.
type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunNoWork RunStatus = "no_work"
	RunFailed RunStatus = "failed"
)

// RunSummary is returned by the orchestrator after each run.
type RunSummary struct {
	Status           RunStatus `json:"status"`
	SourceKey        string    `json:"source_key"`
	Completed        int       `json:"completed"`
	SkippedPermanent int       `json:"skipped_permanent"`
	SkippedTransient int       `json:"skipped_transient"`
	NewCheckpoint    string    `json:"new_checkpoint,omitempty"`
}

// Processed returns the number of items that reached any terminal state.
func (s RunSummary) Processed() int {
	return s.Completed + s.SkippedPermanent + s.SkippedTransient
}
