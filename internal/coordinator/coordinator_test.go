package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/drywaters/recapd/internal/cache"
	"github.com/drywaters/recapd/internal/extractor"
	"github.com/drywaters/recapd/internal/messaging"
	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/storage"
)

type fakeSummarizer struct {
	mu            sync.Mutex
	calls         int
	gotTranscript string
	gotOpts       model.SummaryOptions
	err           error
	block         chan struct{}
}

func (f *fakeSummarizer) Initialize(context.Context, string) error { return nil }
func (f *fakeSummarizer) ModelName() string                        { return "fake-model" }

func (f *fakeSummarizer) Summarize(_ context.Context, videoID, transcript string, opts model.SummaryOptions) (*model.Summary, error) {
	f.mu.Lock()
	f.calls++
	f.gotTranscript = transcript
	f.gotOpts = opts
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}

	return &model.Summary{
		ID:        videoID + "_1",
		VideoID:   videoID,
		Content:   "summary of " + transcript,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testCoordinator wires a coordinator over in-memory dependencies
func testCoordinator(sum *fakeSummarizer) (*Coordinator, *messaging.Bus, *extractor.Runtime) {
	store := storage.NewMemory()
	bus := messaging.New(time.Second)
	runtime := extractor.NewRuntime(bus)

	c := New(
		sum,
		cache.NewSummaryCache(store, time.Hour),
		cache.NewSettings(store),
		runtime,
		bus,
		Config{SweepInterval: time.Hour},
	)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	c.MarkInitialized()
	return c, bus, runtime
}

func TestSummarizeVideoCachesResult(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, _, _ := testCoordinator(sum)

	req := SummarizeRequest{VideoID: "vid00000001", Transcript: "hello world"}

	first, err := c.SummarizeVideo(context.Background(), req)
	if err != nil {
		t.Fatalf("first summarize: %v", err)
	}

	second, err := c.SummarizeVideo(context.Background(), req)
	if err != nil {
		t.Fatalf("second summarize: %v", err)
	}

	if sum.callCount() != 1 {
		t.Fatalf("summarizer calls = %d, want 1 (second request served from cache)", sum.callCount())
	}
	if second.ID != first.ID {
		t.Fatalf("cached summary ID = %q, want %q", second.ID, first.ID)
	}
}

func TestSummarizeVideoConcurrentSameVideo(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{block: make(chan struct{})}
	c, _, _ := testCoordinator(sum)

	req := SummarizeRequest{VideoID: "vid00000002", Transcript: "hello"}

	done := make(chan error, 1)
	go func() {
		_, err := c.SummarizeVideo(context.Background(), req)
		done <- err
	}()

	// Wait for the first request to claim the processing slot
	deadline := time.After(2 * time.Second)
	for !c.Processing(req.VideoID) {
		select {
		case <-deadline:
			t.Fatal("first request never started processing")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := c.SummarizeVideo(context.Background(), req); !errors.Is(err, ErrAlreadyProcessing) {
		t.Fatalf("concurrent request err = %v, want ErrAlreadyProcessing", err)
	}

	close(sum.block)
	if err := <-done; err != nil {
		t.Fatalf("first request err = %v", err)
	}
	if c.Processing(req.VideoID) {
		t.Fatal("processing slot not released after completion")
	}
}

func TestSummarizeVideoReleasesSlotOnFailure(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{err: errors.New("model exploded")}
	c, _, _ := testCoordinator(sum)

	req := SummarizeRequest{VideoID: "vid00000003", Transcript: "hello"}

	if _, err := c.SummarizeVideo(context.Background(), req); err == nil {
		t.Fatal("expected summarize error")
	}
	if c.Processing(req.VideoID) {
		t.Fatal("processing slot not released after failure")
	}

	// A retry must reach the summarizer again
	sum.err = nil
	if _, err := c.SummarizeVideo(context.Background(), req); err != nil {
		t.Fatalf("retry err = %v", err)
	}
	if sum.callCount() != 2 {
		t.Fatalf("summarizer calls = %d, want 2", sum.callCount())
	}
}

func TestSummarizeVideoRequiresInitialization(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	store := storage.NewMemory()
	bus := messaging.New(time.Second)
	c := New(sum, cache.NewSummaryCache(store, time.Hour), cache.NewSettings(store), extractor.NewRuntime(bus), bus, Config{})

	_, err := c.SummarizeVideo(context.Background(), SummarizeRequest{VideoID: "vid00000004", Transcript: "hi"})
	if !errors.Is(err, ErrSummarizerUnavailable) {
		t.Fatalf("err = %v, want ErrSummarizerUnavailable", err)
	}
}

func TestSummarizeVideoFillsOptionsFromPreferences(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, _, _ := testCoordinator(sum)

	prefs := model.UserPreferences{
		Language:      "de",
		Style:         model.StyleParagraph,
		Length:        model.LengthLong,
		AutoTranslate: true,
	}
	if err := c.SetPreferences(context.Background(), prefs); err != nil {
		t.Fatalf("set preferences: %v", err)
	}

	req := SummarizeRequest{
		VideoID:    "vid00000005",
		Transcript: "hello",
		Options:    model.SummaryOptions{Style: model.StyleBullet},
	}
	if _, err := c.SummarizeVideo(context.Background(), req); err != nil {
		t.Fatalf("summarize: %v", err)
	}

	// Explicit style wins; unset length and language come from preferences
	if sum.gotOpts.Style != model.StyleBullet {
		t.Fatalf("style = %q, want explicit bullet", sum.gotOpts.Style)
	}
	if sum.gotOpts.Length != model.LengthLong {
		t.Fatalf("length = %q, want long from preferences", sum.gotOpts.Length)
	}
	if sum.gotOpts.Language != "de" {
		t.Fatalf("language = %q, want de from preferences", sum.gotOpts.Language)
	}
}

func TestSummarizeVideoFetchesTranscriptOverBus(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, bus, _ := testCoordinator(sum)

	bus.Register("tab-7", func(_ context.Context, req messaging.Request) messaging.Response {
		switch req.Action {
		case messaging.ActionPing:
			return messaging.Response{Success: true, Data: map[string]any{"pong": true}}
		case messaging.ActionGetTranscript:
			return messaging.Response{Success: true, Data: "[0:00] from the tab"}
		default:
			return messaging.Response{Success: false, Error: "unexpected action"}
		}
	})

	req := SummarizeRequest{VideoID: "vid00000006", ContextID: "tab-7"}
	if _, err := c.SummarizeVideo(context.Background(), req); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.gotTranscript != "[0:00] from the tab" {
		t.Fatalf("transcript = %q", sum.gotTranscript)
	}
}

func TestSummarizeVideoNoTranscriptNoContext(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, _, _ := testCoordinator(sum)

	_, err := c.SummarizeVideo(context.Background(), SummarizeRequest{VideoID: "vid00000007"})
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
	if sum.callCount() != 0 {
		t.Fatal("summarizer should not run without a transcript")
	}
}

func TestEnsureExtractorReadyReinjects(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, bus, runtime := testCoordinator(sum)

	page := "<html><body><ytd-watch-flexy></ytd-watch-flexy></body></html>"
	if _, err := runtime.Attach("tab-9", "https://www.youtube.com/watch?v=abc123def45", page); err != nil {
		t.Fatalf("attach: %v", err)
	}

	// Simulate a lost handler; the session itself survives
	bus.Unregister("tab-9")

	if !c.EnsureExtractorReady(context.Background(), "tab-9") {
		t.Fatal("expected readiness after re-injection")
	}
	if !bus.Registered("tab-9") {
		t.Fatal("handler not re-registered")
	}
}

func TestEnsureExtractorReadyUnknownContext(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, _, _ := testCoordinator(sum)

	if c.EnsureExtractorReady(context.Background(), "no-such-tab") {
		t.Fatal("expected not ready for unknown context")
	}
}

func TestSetAPIKeyMarksReady(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	store := storage.NewMemory()
	bus := messaging.New(time.Second)
	settings := cache.NewSettings(store)
	c := New(sum, cache.NewSummaryCache(store, time.Hour), settings, extractor.NewRuntime(bus), bus, Config{})

	if c.Ready() {
		t.Fatal("coordinator should start unready")
	}
	if err := c.SetAPIKey(context.Background(), "test-key"); err != nil {
		t.Fatalf("set key: %v", err)
	}
	if !c.Ready() {
		t.Fatal("coordinator should be ready after SetAPIKey")
	}
	if got := settings.APIKey(context.Background()); got != "test-key" {
		t.Fatalf("persisted key = %q", got)
	}
}

func TestSweeperStops(t *testing.T) {
	t.Parallel()

	sum := &fakeSummarizer{}
	c, _, _ := testCoordinator(sum)

	c.StartSweeper(context.Background())
	c.Stop()
}
