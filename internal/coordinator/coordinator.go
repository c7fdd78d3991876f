// Package coordinator routes summarize requests between the cache,
// the extractor sessions, and the summarization client, and owns the
// per-video mutual exclusion that keeps at most one summarization in
// flight per video.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drywaters/recapd/internal/cache"
	"github.com/drywaters/recapd/internal/extractor"
	"github.com/drywaters/recapd/internal/messaging"
	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/summarizer"
)

var (
	// ErrAlreadyProcessing means a summarization for this video is in
	// flight; the caller should retry later
	ErrAlreadyProcessing = errors.New("video is already being processed")
	// ErrNoTranscript means no transcript was supplied and none could
	// be obtained from the extractor
	ErrNoTranscript = errors.New("no transcript available")
	// ErrSummarizerUnavailable means no API key has been configured yet
	ErrSummarizerUnavailable = errors.New("summarizer not configured: set an API key first")
)

const (
	defaultPingAttempts = 3
	defaultPingDelay    = 500 * time.Millisecond
)

// SummarizeRequest is one inbound summarize call
type SummarizeRequest struct {
	VideoID    string
	ContextID  string
	Transcript string
	Options    model.SummaryOptions
}

// Coordinator wires the components together. All dependencies are
// injected at construction; there is no ambient global state.
type Coordinator struct {
	summarizer summarizer.Summarizer
	cache      *cache.SummaryCache
	settings   *cache.Settings
	runtime    *extractor.Runtime
	bus        *messaging.Bus

	pingAttempts int
	pingDelay    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	initialized bool
	processing  map[string]struct{}

	sweepInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// Config holds coordinator tunables
type Config struct {
	SweepInterval time.Duration
}

// New creates a coordinator over its injected dependencies
func New(sum summarizer.Summarizer, summaryCache *cache.SummaryCache, settings *cache.Settings, runtime *extractor.Runtime, bus *messaging.Bus, cfg Config) *Coordinator {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}

	return &Coordinator{
		summarizer:    sum,
		cache:         summaryCache,
		settings:      settings,
		runtime:       runtime,
		bus:           bus,
		pingAttempts:  defaultPingAttempts,
		pingDelay:     defaultPingDelay,
		sleep:         sleepContext,
		processing:    make(map[string]struct{}),
		sweepInterval: cfg.SweepInterval,
		stopCh:        make(chan struct{}),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkInitialized records that the summarizer holds a working session
func (c *Coordinator) MarkInitialized() {
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
}

// Ready reports whether summarization is currently possible
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// acquire claims the processing slot for a video. The returned release
// must run on every exit path; it is idempotent.
func (c *Coordinator) acquire(videoID string) (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.processing[videoID]; busy {
		return nil, ErrAlreadyProcessing
	}
	c.processing[videoID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.processing, videoID)
			c.mu.Unlock()
		})
	}, nil
}

// Processing reports whether a summarization is in flight for the video
func (c *Coordinator) Processing(videoID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.processing[videoID]
	return busy
}

// SummarizeVideo serves one summarize request: fail fast if the video
// is already processing, answer from cache when possible, otherwise
// obtain a transcript, summarize it, and cache the result
func (c *Coordinator) SummarizeVideo(ctx context.Context, req SummarizeRequest) (*model.Summary, error) {
	release, err := c.acquire(req.VideoID)
	if err != nil {
		return nil, err
	}
	defer release()

	if cached := c.cache.Get(ctx, req.VideoID); cached != nil {
		slog.Info("serving cached summary", "video_id", req.VideoID)
		return cached, nil
	}

	if !c.Ready() {
		return nil, ErrSummarizerUnavailable
	}

	transcript := req.Transcript
	if transcript == "" {
		transcript, err = c.fetchTranscript(ctx, req.ContextID)
		if err != nil {
			return nil, err
		}
	}

	opts := c.applyPreferences(ctx, req.Options)

	summary, err := c.summarizer.Summarize(ctx, req.VideoID, transcript, opts)
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}

	c.cache.Set(ctx, req.VideoID, summary)
	slog.Info("summarized video", "video_id", req.VideoID, "key_points", len(summary.KeyPoints))
	return summary, nil
}

// fetchTranscript asks the tab's extractor session for a transcript
// over the bus, ensuring the session is live first
func (c *Coordinator) fetchTranscript(ctx context.Context, contextID string) (string, error) {
	if contextID == "" {
		return "", ErrNoTranscript
	}
	if !c.EnsureExtractorReady(ctx, contextID) {
		return "", fmt.Errorf("%w: extractor not reachable in context %s", ErrNoTranscript, contextID)
	}

	resp, err := c.bus.Send(ctx, contextID, messaging.ActionGetTranscript, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoTranscript, err)
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", ErrNoTranscript, resp.Error)
	}

	transcript, ok := resp.Data.(string)
	if !ok || transcript == "" {
		return "", ErrNoTranscript
	}
	return transcript, nil
}

// applyPreferences fills unset option fields from the persisted
// user preferences
func (c *Coordinator) applyPreferences(ctx context.Context, opts model.SummaryOptions) model.SummaryOptions {
	prefs := c.settings.Preferences(ctx)

	if opts.Style == "" {
		opts.Style = prefs.Style
	}
	if opts.Length == "" {
		opts.Length = prefs.Length
	}
	if opts.Language == "" && prefs.AutoTranslate {
		opts.Language = prefs.Language
	}
	return opts
}

// CachedSummary returns the cached summary for a video, or nil
func (c *Coordinator) CachedSummary(ctx context.Context, videoID string) *model.Summary {
	return c.cache.Get(ctx, videoID)
}

// SetAPIKey persists the key and re-initializes the summarizer with it
func (c *Coordinator) SetAPIKey(ctx context.Context, apiKey string) error {
	if err := c.settings.SetAPIKey(ctx, apiKey); err != nil {
		slog.Warn("failed to persist API key", "error", err)
	}

	if err := c.summarizer.Initialize(ctx, apiKey); err != nil {
		return err
	}

	c.MarkInitialized()
	return nil
}

// EnsureExtractorReady pings the tab's extractor session, re-injecting
// and re-pinging with bounded retries when it does not answer.
// Never returns an error, only readiness.
func (c *Coordinator) EnsureExtractorReady(ctx context.Context, contextID string) bool {
	if c.pingExtractor(ctx, contextID) {
		return true
	}

	if !c.runtime.Inject(contextID) {
		slog.Warn("no extractor session to inject", "context_id", contextID)
		return false
	}

	for attempt := 1; attempt <= c.pingAttempts; attempt++ {
		if c.pingExtractor(ctx, contextID) {
			return true
		}
		if attempt < c.pingAttempts {
			if err := c.sleep(ctx, c.pingDelay); err != nil {
				return false
			}
		}
	}
	return false
}

// pingExtractor sends one ping and checks the acknowledgment
func (c *Coordinator) pingExtractor(ctx context.Context, contextID string) bool {
	resp, err := c.bus.Send(ctx, contextID, messaging.ActionPing, nil)
	if err != nil || !resp.Success {
		return false
	}

	data, ok := resp.Data.(map[string]any)
	if !ok {
		return false
	}
	pong, _ := data["pong"].(bool)
	return pong
}

// Metadata fetches the video metadata from a tab's extractor session
func (c *Coordinator) Metadata(ctx context.Context, contextID string) (model.VideoMetadata, error) {
	var meta model.VideoMetadata

	resp, err := c.bus.Send(ctx, contextID, messaging.ActionGetMetadata, nil)
	if err != nil {
		return meta, fmt.Errorf("metadata request failed: %w", err)
	}
	if !resp.Success {
		return meta, fmt.Errorf("metadata request failed: %s", resp.Error)
	}

	meta, ok := resp.Data.(model.VideoMetadata)
	if !ok {
		return meta, errors.New("metadata response malformed")
	}
	return meta, nil
}

// Preferences returns the persisted user preferences
func (c *Coordinator) Preferences(ctx context.Context) model.UserPreferences {
	return c.settings.Preferences(ctx)
}

// SetPreferences persists new user preferences
func (c *Coordinator) SetPreferences(ctx context.Context, prefs model.UserPreferences) error {
	return c.settings.SetPreferences(ctx, prefs)
}

// StartSweeper begins the periodic cache eviction loop
func (c *Coordinator) StartSweeper(ctx context.Context) {
	slog.Info("starting cache sweeper", "interval", c.sweepInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cache.Sweep(ctx)
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to finish
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	slog.Info("coordinator stopped")
}
