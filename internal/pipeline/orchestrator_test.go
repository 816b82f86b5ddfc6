package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ajbarea/aws-image-translate/internal/domain"
	"github.com/ajbarea/aws-image-translate/internal/objectstore"
)

// --- fakes -----------------------------------------------------------------

type fakeState struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	putErr error
	puts   int
}

func newFakeState() *fakeState {
	return &fakeState{values: make(map[string]string)}
}

func (f *fakeState) Get(_ context.Context, sourceKey string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[sourceKey]
	return v, ok, nil
}

func (f *fakeState) Put(_ context.Context, sourceKey, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.values[sourceKey] = postID
	f.puts++
	return nil
}

type fakeFeed struct {
	items []domain.CandidateItem
	calls int
}

func (f *fakeFeed) Fetch(_ context.Context, _ string, limit int) ([]domain.CandidateItem, error) {
	f.calls++
	if limit > 0 && len(f.items) > limit {
		return append([]domain.CandidateItem(nil), f.items[:limit]...), nil
	}
	return append([]domain.CandidateItem(nil), f.items...), nil
}

type fakeMedia struct {
	mu       sync.Mutex
	order    []string
	calls    map[string]int
	failWith map[string]error
	onFetch  func(url string)
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{calls: make(map[string]int), failWith: make(map[string]error)}
}

func (f *fakeMedia) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	f.order = append(f.order, url)
	f.calls[url]++
	fail := f.failWith[url]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if fail != nil {
		return nil, "", fail
	}
	return []byte("image-bytes-" + url), "image/jpeg", nil
}

func (f *fakeMedia) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeExtractor struct {
	text   string
	err    error
	perKey map[string]string
	calls  int
	mu     sync.Mutex
}

func (f *fakeExtractor) ExtractText(_ context.Context, assetKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.perKey != nil {
		if text, ok := f.perKey[assetKey]; ok {
			return text, nil
		}
	}
	return f.text, nil
}

type fakeDetector struct {
	lang  string
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeDetector) DetectLanguage(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.lang, f.err
}

type fakeTranslator struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "[" + targetLang + "] " + text, nil
}

type fakeSink struct {
	mu      sync.Mutex
	results []domain.EnrichmentResult
	err     error
}

func (f *fakeSink) Record(_ context.Context, res domain.EnrichmentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return f.err
}

func (f *fakeSink) byPost(postID string) (domain.EnrichmentResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.results {
		if r.PostID == postID {
			return r, true
		}
	}
	return domain.EnrichmentResult{}, false
}

// --- helpers ---------------------------------------------------------------

type testEnv struct {
	state      *fakeState
	objects    *objectstore.MemoryStore
	feed       *fakeFeed
	media      *fakeMedia
	extractor  *fakeExtractor
	detector   *fakeDetector
	translator *fakeTranslator
	sink       *fakeSink
}

func newTestEnv() *testEnv {
	return &testEnv{
		state:      newFakeState(),
		objects:    objectstore.NewMemoryStore(),
		feed:       &fakeFeed{},
		media:      newFakeMedia(),
		extractor:  &fakeExtractor{text: "hola mundo"},
		detector:   &fakeDetector{lang: "es"},
		translator: &fakeTranslator{},
		sink:       &fakeSink{},
	}
}

func (e *testEnv) orchestrator(t *testing.T, workers int) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(Deps{
		State:          e.state,
		Objects:        e.objects,
		Feed:           e.feed,
		Media:          e.media,
		Extractor:      e.extractor,
		Detector:       e.detector,
		Translator:     e.translator,
		Sink:           e.sink,
		Retry:          testPolicy(3),
		TargetLanguage: "en",
		FetchLimit:     25,
		WorkerCount:    workers,
		CallTimeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

func candidate(sourceKey, postID string) domain.CandidateItem {
	return domain.CandidateItem{
		SourceKey:    sourceKey,
		PostID:       postID,
		MediaURLs:    []string{"https://img.example.com/" + postID + ".jpg"},
		DiscoveredAt: time.Now().UTC(),
	}
}

func mediaURL(postID string) string {
	return "https://img.example.com/" + postID + ".jpg"
}

// --- tests -----------------------------------------------------------------

func TestRunProcessesOldestFirstAndAdvancesCheckpoint(t *testing.T) {
	env := newTestEnv()
	// Feed is newest first.
	env.feed.items = []domain.CandidateItem{
		candidate("src", "P5"),
		candidate("src", "P4"),
		candidate("src", "P3"),
	}

	// Single worker keeps download order deterministic.
	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Status != domain.RunOK {
		t.Fatalf("status = %s", summary.Status)
	}
	if summary.Processed() != 3 || summary.Completed != 3 {
		t.Fatalf("expected 3 completed, got %+v", summary)
	}
	if summary.NewCheckpoint != "P5" {
		t.Fatalf("checkpoint = %q, want P5", summary.NewCheckpoint)
	}

	wantOrder := []string{mediaURL("P3"), mediaURL("P4"), mediaURL("P5")}
	if len(env.media.order) != 3 {
		t.Fatalf("expected 3 downloads, got %v", env.media.order)
	}
	for i, want := range wantOrder {
		if env.media.order[i] != want {
			t.Fatalf("processing order[%d] = %s, want %s", i, env.media.order[i], want)
		}
	}

	res, ok := env.sink.byPost("P3")
	if !ok {
		t.Fatalf("P3 result not recorded")
	}
	if res.SourceLanguage != "es" || res.TranslatedText != "[en] hola mundo" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRerunWithNoNewItemsIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.feed.items = []domain.CandidateItem{
		candidate("src", "P2"),
		candidate("src", "P1"),
	}
	orch := env.orchestrator(t, 2)

	if _, err := orch.Run(context.Background(), "src"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	putsAfterFirst := env.objects.PutCount()

	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Status != domain.RunNoWork {
		t.Fatalf("second run status = %s, want %s", summary.Status, domain.RunNoWork)
	}
	if summary.NewCheckpoint != "P2" {
		t.Fatalf("checkpoint moved to %q", summary.NewCheckpoint)
	}
	if env.objects.PutCount() != putsAfterFirst {
		t.Fatalf("second run wrote objects: %d -> %d", putsAfterFirst, env.objects.PutCount())
	}
}

func TestPoisonItemDoesNotBlockFrontier(t *testing.T) {
	env := newTestEnv()
	env.feed.items = []domain.CandidateItem{
		candidate("src", "P5"),
		candidate("src", "P4"),
		candidate("src", "P3"),
		candidate("src", "P2"),
		candidate("src", "P1"),
	}
	env.media.failWith[mediaURL("P3")] = Permanent(fmt.Errorf("%w: content type \"text/html\"", ErrUnsupportedMedia))

	orch := env.orchestrator(t, 2)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.NewCheckpoint != "P5" {
		t.Fatalf("checkpoint = %q, want P5", summary.NewCheckpoint)
	}
	if summary.SkippedPermanent != 1 || summary.Completed != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if env.media.callCount(mediaURL("P3")) != 1 {
		t.Fatalf("permanent failure retried: %d calls", env.media.callCount(mediaURL("P3")))
	}

	res, ok := env.sink.byPost("P3")
	if !ok {
		t.Fatalf("skipped item not recorded")
	}
	if res.Status != domain.StatusSkippedPermanent || res.FailedStage != domain.StateDiscovered {
		t.Fatalf("unexpected skip result: %+v", res)
	}
}

func TestTransientExhaustionIsRecordedDistinctly(t *testing.T) {
	env := newTestEnv()
	env.feed.items = []domain.CandidateItem{candidate("src", "P1")}
	env.media.failWith[mediaURL("P1")] = Transient(errors.New("connection reset"))

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.SkippedTransient != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.NewCheckpoint != "P1" {
		t.Fatalf("transient-exhausted item should still advance the frontier, checkpoint = %q", summary.NewCheckpoint)
	}
	if got := env.media.callCount(mediaURL("P1")); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}

	res, _ := env.sink.byPost("P1")
	if res.Status != domain.StatusSkippedTransientExhausted {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestSlowMediaURLExhaustsRetriesAndAdvancesFrontier(t *testing.T) {
	env := newTestEnv()
	env.feed.items = []domain.CandidateItem{
		candidate("src", "P2"),
		candidate("src", "P1"),
	}
	// A consistently slow download surfaces as a per-call deadline error.
	env.media.failWith[mediaURL("P1")] = Transient(fmt.Errorf("fetch media: %w", context.DeadlineExceeded))

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := env.media.callCount(mediaURL("P1")); got != 3 {
		t.Fatalf("expected exactly 3 attempts for the slow URL, got %d", got)
	}
	if summary.SkippedTransient != 1 || summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.NewCheckpoint != "P2" {
		t.Fatalf("checkpoint = %q, want P2", summary.NewCheckpoint)
	}

	res, ok := env.sink.byPost("P1")
	if !ok {
		t.Fatalf("exhausted item not recorded")
	}
	if res.Status != domain.StatusSkippedTransientExhausted {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestCheckpointWriteFailureIsRetryableWithoutDuplicateWrites(t *testing.T) {
	env := newTestEnv()
	env.feed.items = []domain.CandidateItem{
		candidate("src", "P2"),
		candidate("src", "P1"),
	}
	env.state.putErr = fmt.Errorf("%w: connection refused", ErrStateStoreUnavailable)

	orch := env.orchestrator(t, 1)
	if _, err := orch.Run(context.Background(), "src"); !errors.Is(err, ErrStateStoreUnavailable) {
		t.Fatalf("expected state store failure, got %v", err)
	}
	if _, found, _ := env.state.Get(context.Background(), "src"); found {
		t.Fatalf("checkpoint should not have advanced")
	}
	putsAfterFirst := env.objects.PutCount()

	// Store recovers; the same batch is reprocessed without new object writes.
	env.state.putErr = nil
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.NewCheckpoint != "P2" {
		t.Fatalf("checkpoint = %q, want P2", summary.NewCheckpoint)
	}
	if env.objects.PutCount() != putsAfterFirst {
		t.Fatalf("re-run duplicated object writes: %d -> %d", putsAfterFirst, env.objects.PutCount())
	}
}

func TestRunAbortsWhenStateStoreUnreachable(t *testing.T) {
	env := newTestEnv()
	env.state.getErr = fmt.Errorf("%w: connection refused", ErrStateStoreUnavailable)
	env.feed.items = []domain.CandidateItem{candidate("src", "P1")}

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if !errors.Is(err, ErrStateStoreUnavailable) {
		t.Fatalf("expected state store error, got %v", err)
	}
	if summary.Status != domain.RunFailed {
		t.Fatalf("status = %s", summary.Status)
	}
	if env.feed.calls != 0 {
		t.Fatalf("feed should not be called when checkpoint is unreadable")
	}
}

func TestCancellationDoesNotAdvancePastAbandonedItems(t *testing.T) {
	env := newTestEnv()
	env.feed.items = []domain.CandidateItem{
		candidate("src", "P3"),
		candidate("src", "P2"),
		candidate("src", "P1"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	env.media.onFetch = func(url string) {
		if url == mediaURL("P2") {
			cancel()
		}
	}

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(ctx, "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.NewCheckpoint != "P1" {
		t.Fatalf("checkpoint = %q, want P1 (P2 was abandoned)", summary.NewCheckpoint)
	}
	if summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, ok := env.sink.byPost("P2"); ok {
		t.Fatalf("abandoned item must not record a terminal result")
	}
}

func TestEmptyExtractedTextCompletesWithoutDetection(t *testing.T) {
	env := newTestEnv()
	env.extractor.text = ""
	env.feed.items = []domain.CandidateItem{candidate("src", "P1")}

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if env.detector.calls != 0 {
		t.Fatalf("detector called on empty text")
	}
	if env.translator.calls != 0 {
		t.Fatalf("translator called on empty text")
	}

	res, _ := env.sink.byPost("P1")
	if res.SourceLanguage != "" || res.ExtractedText != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestMatchingLanguageSkipsTranslationCall(t *testing.T) {
	env := newTestEnv()
	env.extractor.text = "already english"
	env.detector.lang = "en"
	env.feed.items = []domain.CandidateItem{candidate("src", "P1")}

	orch := env.orchestrator(t, 1)
	if _, err := orch.Run(context.Background(), "src"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if env.translator.calls != 0 {
		t.Fatalf("translator should not run for matching language")
	}

	res, _ := env.sink.byPost("P1")
	if res.TranslatedText != "already english" {
		t.Fatalf("unexpected translation: %q", res.TranslatedText)
	}
}

func TestServiceRejectionSkipsPermanently(t *testing.T) {
	env := newTestEnv()
	env.extractor.err = Permanent(errors.New("invalid image format"))
	env.feed.items = []domain.CandidateItem{candidate("src", "P1")}

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.SkippedPermanent != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	res, _ := env.sink.byPost("P1")
	if res.Status != domain.StatusSkippedPermanent || res.FailedStage != domain.StateStored {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.AssetKey == "" {
		t.Fatalf("asset key should be recorded for stored items")
	}
}

func TestSinkFailureDoesNotAbortRun(t *testing.T) {
	env := newTestEnv()
	env.sink.err = errors.New("results table unreachable")
	env.feed.items = []domain.CandidateItem{candidate("src", "P1")}

	orch := env.orchestrator(t, 1)
	summary, err := orch.Run(context.Background(), "src")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 1 || summary.NewCheckpoint != "P1" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunRequiresSourceKey(t *testing.T) {
	env := newTestEnv()
	orch := env.orchestrator(t, 1)
	if _, err := orch.Run(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty source key")
	}
}

func TestTrimAtCheckpoint(t *testing.T) {
	items := []domain.CandidateItem{
		candidate("src", "P5"),
		candidate("src", "P4"),
		candidate("src", "P3"),
	}

	got := trimAtCheckpoint(items, "P4", true)
	if len(got) != 1 || got[0].PostID != "P5" {
		t.Fatalf("trim at P4 = %v", got)
	}

	if got := trimAtCheckpoint(items, "", false); len(got) != 3 {
		t.Fatalf("absent checkpoint should keep all items, got %d", len(got))
	}

	if got := trimAtCheckpoint(items, "P9", true); len(got) != 3 {
		t.Fatalf("unknown checkpoint should keep all items, got %d", len(got))
	}
}

func TestNewFrontierStopsAtFirstGap(t *testing.T) {
	batch := []domain.CandidateItem{
		candidate("src", "P1"),
		candidate("src", "P2"),
		candidate("src", "P3"),
	}
	results := []*domain.EnrichmentResult{
		{PostID: "P1", Status: domain.StatusCompleted},
		nil,
		{PostID: "P3", Status: domain.StatusCompleted},
	}

	if got := newFrontier(batch, results); got != "P1" {
		t.Fatalf("frontier = %q, want P1", got)
	}
}
