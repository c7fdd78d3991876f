// Package extractor pulls ordered (timestamp, text) transcript
// segments out of a watch page. The page renders asynchronously and
// its structure is not a stable contract, so every discovery step is
// an ordered list of independent strategies applied first-match-wins:
// structural selectors over a DOM snapshot first, then the network
// panels the page itself would open (player-response caption tracks,
// then the engagement-panel transcript endpoint).
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/urlutil"
)

var (
	// ErrNotReady means the page never finished loading its player
	ErrNotReady = errors.New("page not ready: player not found")
	// ErrNoCaptions means the video has no caption tracks at all
	ErrNoCaptions = errors.New("no captions available for this video")
	// ErrPanelNotFound means every transcript discovery strategy was exhausted
	ErrPanelNotFound = errors.New("transcript panel not found")
	// ErrNoSegments means the panel opened but contained no segments
	ErrNoSegments = errors.New("transcript panel contains no segments")
	// ErrNoTranscript means segments were found but none carried text
	ErrNoTranscript = errors.New("transcript is empty")
)

const (
	defaultReadyAttempts = 10
	defaultReadyDelay    = 500 * time.Millisecond
	defaultWaitAttempts  = 10
	defaultWaitDelay     = 500 * time.Millisecond

	// One longer wait before the final re-query when a panel turns
	// up empty on the first pass
	defaultSegmentRetryDelay = 2 * time.Second

	maxPageBytes = 6 * 1024 * 1024

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Session extracts transcripts and metadata for one tab showing one
// video. It may be primed with a DOM snapshot captured by the client;
// otherwise it fetches the watch page itself.
type Session struct {
	contextID string
	pageURL   string
	videoID   string

	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error

	readyAttempts     int
	readyDelay        time.Duration
	waitAttempts      int
	waitDelay         time.Duration
	segmentRetryDelay time.Duration
	languages         []string
	innertubeBase     string

	// fetchPage returns the current page HTML; swapped out in tests
	fetchPage func(ctx context.Context) (string, error)

	mu          sync.Mutex
	snapshot    string
	initialized bool
}

// NewSession creates a session for one tab. pageURL identifies the
// video; html optionally primes the session with a captured snapshot.
func NewSession(contextID, pageURL, html string, client *http.Client) (*Session, error) {
	// Canonicalizing first means shorts, shares, and embeds all fetch
	// the same watch page
	canonical, err := urlutil.NormalizeWatchURL(pageURL)
	if err != nil {
		return nil, err
	}
	pageURL = canonical
	videoID := urlutil.VideoID(pageURL)
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	s := &Session{
		contextID:         contextID,
		pageURL:           pageURL,
		videoID:           videoID,
		client:            client,
		sleep:             sleepContext,
		readyAttempts:     defaultReadyAttempts,
		readyDelay:        defaultReadyDelay,
		waitAttempts:      defaultWaitAttempts,
		waitDelay:         defaultWaitDelay,
		segmentRetryDelay: defaultSegmentRetryDelay,
		languages:         []string{"en"},
		innertubeBase:     defaultInnertubeBase,
		snapshot:          html,
		initialized:       true,
	}
	s.fetchPage = s.fetchWatchPage
	return s, nil
}

// VideoID returns the video this session is bound to
func (s *Session) VideoID() string { return s.videoID }

// Initialized reports whether the session finished its setup
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
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

// currentHTML returns the primed snapshot if present, refetching the
// page otherwise. refresh forces a refetch even when primed.
func (s *Session) currentHTML(ctx context.Context, refresh bool) (string, error) {
	s.mu.Lock()
	snapshot := s.snapshot
	s.mu.Unlock()

	if snapshot != "" && !refresh {
		return snapshot, nil
	}

	html, err := s.fetchPage(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.snapshot = html
	s.mu.Unlock()
	return html, nil
}

func (s *Session) fetchWatchPage(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("watch page HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read watch page: %w", err)
	}

	return string(body), nil
}

// awaitReady polls until the page snapshot shows a loaded player,
// re-checking a fresh snapshot after each wait
func (s *Session) awaitReady(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= s.readyAttempts; attempt++ {
		html, err := s.currentHTML(ctx, attempt > 1)
		if err != nil {
			slog.Debug("readiness fetch failed", "context_id", s.contextID, "attempt", attempt, "error", err)
		} else if pageReady(html) {
			return html, nil
		}

		if attempt < s.readyAttempts {
			if err := s.sleep(ctx, s.readyDelay); err != nil {
				return "", err
			}
		}
	}
	return "", ErrNotReady
}

// Transcript runs the full extraction pipeline and returns the
// newline-joined "[timestamp] text" transcript
func (s *Session) Transcript(ctx context.Context) (string, error) {
	html, err := s.awaitReady(ctx)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	// An already-open transcript panel in the DOM wins outright
	if panel, ok := findTranscriptPanel(doc); ok {
		segments := collectSegments(panel)
		if len(segments) == 0 {
			segments, err = s.retrySegmentQuery(ctx)
			if err != nil {
				return "", err
			}
			if len(segments) == 0 {
				return "", ErrNoSegments
			}
		}
		return formatSegments(segments)
	}

	// No rendered panel: open one through the network strategies
	segments, err := s.openTranscript(ctx, html)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", ErrNoSegments
	}
	return formatSegments(segments)
}

// retrySegmentQuery waits once (longer delay) and re-queries a fresh
// snapshot before giving up on an empty panel
func (s *Session) retrySegmentQuery(ctx context.Context) ([]model.TranscriptSegment, error) {
	if err := s.sleep(ctx, s.segmentRetryDelay); err != nil {
		return nil, err
	}

	html, err := s.currentHTML(ctx, true)
	if err != nil {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil
	}
	panel, ok := findTranscriptPanel(doc)
	if !ok {
		return nil, nil
	}
	return collectSegments(panel), nil
}

// openTranscript tries each opener strategy in order, first success
// wins. A definitive "no captions" answer short-circuits; any other
// failure moves on to the next strategy.
func (s *Session) openTranscript(ctx context.Context, html string) ([]model.TranscriptSegment, error) {
	segments, err := s.transcriptFromPlayerResponse(ctx, html)
	if err == nil {
		return segments, nil
	}
	if errors.Is(err, ErrNoCaptions) {
		return nil, err
	}
	slog.Debug("player response strategy failed, trying engagement panel", "video_id", s.videoID, "error", err)

	segments, err = s.transcriptFromEngagementPanel(ctx)
	if err == nil {
		return segments, nil
	}
	slog.Debug("engagement panel strategy failed", "video_id", s.videoID, "error", err)

	return nil, ErrPanelNotFound
}

// formatSegments drops textless segments, formats the survivors as
// "[timestamp] text" (bare text when no timestamp was found), and
// joins them with newlines
func formatSegments(segments []model.TranscriptSegment) (string, error) {
	lines := make([]string, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			slog.Debug("dropping textless segment", "index", i, "timestamp", seg.Timestamp)
			continue
		}
		if seg.Timestamp == "" {
			lines = append(lines, text)
			continue
		}
		lines = append(lines, "["+seg.Timestamp+"] "+text)
	}

	if len(lines) == 0 {
		return "", ErrNoTranscript
	}
	return strings.Join(lines, "\n"), nil
}
