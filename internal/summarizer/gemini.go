package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/drywaters/recapd/internal/model"
	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	defaultMaxChunkChars = 12000
	defaultMaxAttempts   = 4
	defaultBaseDelay     = time.Second

	// One request per second keeps a free-tier key under its quota
	defaultRequestsPerSecond = 1

	summaryTemperature = float32(0.7)
	derivedTemperature = float32(0.3)
)

// Preferred models in selection order. The first listed model
// supporting generateContent wins; any generation-capable model is
// accepted when none of these appear in the listing.
var modelPreference = []string{
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// generateFunc performs one generation call. Swapped out in tests.
type generateFunc func(ctx context.Context, prompt string, temperature float32) (string, error)

// Gemini implements Summarizer against Google's Gemini API
type Gemini struct {
	mu        sync.Mutex
	client    *genai.Client
	modelName string

	pinnedModel   string
	maxAttempts   int
	baseDelay     time.Duration
	maxChunkChars int

	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	generate generateFunc
}

// Option customizes the Gemini client
type Option func(*Gemini)

// WithModelPin prefers the named model when the listing offers it
func WithModelPin(name string) Option {
	return func(g *Gemini) {
		g.pinnedModel = strings.TrimSpace(name)
	}
}

// WithRetry overrides the retry attempt count and initial backoff delay
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(g *Gemini) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			g.baseDelay = baseDelay
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests)
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gemini) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithRateLimit overrides the request pacing toward the API
func WithRateLimit(requestsPerSecond float64) Option {
	return func(g *Gemini) {
		if requestsPerSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithMaxChunkChars overrides the transcript chunk size limit
func WithMaxChunkChars(maxChars int) Option {
	return func(g *Gemini) {
		if maxChars > 0 {
			g.maxChunkChars = maxChars
		}
	}
}

// NewGemini creates an uninitialized Gemini client. Initialize must
// succeed before Summarize can be used.
func NewGemini(opts ...Option) *Gemini {
	g := &Gemini{
		maxAttempts:   defaultMaxAttempts,
		baseDelay:     defaultBaseDelay,
		maxChunkChars: defaultMaxChunkChars,
		limiter:       rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
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

// Initialize creates a fresh provider session with the given key and
// selects a model. A previous session, if any, is discarded.
func (g *Gemini) Initialize(ctx context.Context, apiKey string) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName, err := selectModel(ctx, client, g.pinnedModel)
	if err != nil {
		_ = client.Close()
		return err
	}

	g.mu.Lock()
	if g.client != nil {
		_ = g.client.Close()
	}
	g.client = client
	g.modelName = modelName
	g.generate = g.generateOnce
	g.mu.Unlock()

	slog.Info("Gemini summarizer initialized", "model", modelName)
	return nil
}

// ModelName returns the selected model, or "" before Initialize
func (g *Gemini) ModelName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modelName
}

// Close releases the underlying provider session
func (g *Gemini) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	g.modelName = ""
	g.generate = nil
	return err
}

// selectModel queries the model listing and picks the pinned model if
// usable, otherwise the first preferred model supporting content
// generation, otherwise any model that does.
func selectModel(ctx context.Context, client *genai.Client, pinned string) (string, error) {
	supported := make(map[string]bool)
	var fallback string

	it := client.ListModels(ctx)
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to list models: %w", err)
		}

		if !supportsGeneration(info.SupportedGenerationMethods) {
			continue
		}
		name := strings.TrimPrefix(info.Name, "models/")
		supported[name] = true
		if fallback == "" {
			fallback = name
		}
	}

	return pickModel(supported, fallback, pinned)
}

// pickModel applies the deterministic selection policy to an already
// collected listing
func pickModel(supported map[string]bool, fallback, pinned string) (string, error) {
	if pinned != "" && supported[pinned] {
		return pinned, nil
	}
	for _, name := range modelPreference {
		if supported[name] {
			return name, nil
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", ErrNoModelAvailable
}

func supportsGeneration(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

// generateOnce performs a single generation call against the selected model
func (g *Gemini) generateOnce(ctx context.Context, prompt string, temperature float32) (string, error) {
	g.mu.Lock()
	client := g.client
	modelName := g.modelName
	g.mu.Unlock()

	if client == nil {
		return "", ErrNotInitialized
	}

	m := client.GenerativeModel(modelName)
	m.SetTemperature(temperature)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(2048)
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := extractText(resp)
	if text == "" {
		return "", ErrMalformedResponse
	}

	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}

	var result strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result.WriteString(string(text))
		}
	}

	return strings.TrimSpace(result.String())
}

// isAuthError reports an invalid or forbidden API key. These are never
// retried; the error surfaces verbatim.
func isAuthError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 401 || gerr.Code == 403
	}
	return false
}

// isRateLimited reports an HTTP 429 from the provider
func isRateLimited(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 429
}

// generateWithRetry wraps one generation call in a bounded retry loop
// with exponential backoff (baseDelay x 2^(attempt-1)). Rate limiting
// and every other transient failure retry alike; only auth errors and
// malformed responses fail immediately. Every attempt is paced by the
// shared rate limiter.
func (g *Gemini) generateWithRetry(ctx context.Context, prompt string, temperature float32) (string, error) {
	g.mu.Lock()
	generate := g.generate
	g.mu.Unlock()

	if generate == nil {
		return "", ErrNotInitialized
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		text, err := generate(ctx, prompt, temperature)
		if err == nil {
			return text, nil
		}

		if isAuthError(err) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, context.Canceled) {
			return "", err
		}

		lastErr = err
		if attempt == g.maxAttempts {
			break
		}

		delay := g.baseDelay * (1 << (attempt - 1))
		if isRateLimited(err) {
			slog.Warn("generation rate limited, backing off", "attempt", attempt, "delay", delay)
		} else {
			slog.Warn("generation failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		}
		if err := g.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, g.maxAttempts, lastErr)
}

// Summarize runs the full pipeline: normalize, chunk, summarize each
// chunk sequentially, combine, then derive key points and topics.
func (g *Gemini) Summarize(ctx context.Context, videoID, transcript string, opts model.SummaryOptions) (*model.Summary, error) {
	normalized := normalizeTranscript(transcript, opts.IncludeTimestamps)
	if normalized == "" {
		return nil, ErrEmptyTranscript
	}

	chunks := chunkWords(normalized, g.maxChunkChars)

	// Chunks go one at a time, strictly in order: the provider is
	// rate limited and the combine pass needs its inputs in
	// transcript order.
	var chunkSummaries []string
	for i, chunk := range chunks {
		text, err := g.generateWithRetry(ctx, buildChunkPrompt(chunk, opts), summaryTemperature)
		if err != nil {
			if isAuthError(err) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			slog.Warn("chunk summarization failed, skipping", "video_id", videoID, "chunk", i+1, "total", len(chunks), "error", err)
			continue
		}
		chunkSummaries = append(chunkSummaries, text)
	}

	if len(chunkSummaries) == 0 {
		return nil, fmt.Errorf("%w: %d chunks attempted", ErrAllChunksFailed, len(chunks))
	}

	final := chunkSummaries[0]
	if len(chunkSummaries) > 1 {
		combined, err := g.generateWithRetry(ctx, buildCombinePrompt(chunkSummaries, opts), summaryTemperature)
		if err != nil {
			return nil, fmt.Errorf("failed to combine chunk summaries: %w", err)
		}
		final = combined
	}

	// Key points and topics are best-effort enrichment: a failure of
	// either call degrades to an empty list.
	var keyPoints []string
	if text, err := g.generateWithRetry(ctx, buildKeyPointsPrompt(final), derivedTemperature); err != nil {
		slog.Warn("key point extraction failed", "video_id", videoID, "error", err)
	} else {
		keyPoints = parseKeyPoints(text)
	}

	var topics []string
	if opts.IncludeTags {
		if text, err := g.generateWithRetry(ctx, buildTopicsPrompt(final), derivedTemperature); err != nil {
			slog.Warn("topic extraction failed", "video_id", videoID, "error", err)
		} else {
			topics = parseTopics(text)
		}
	}

	language := opts.Language
	if language == "" {
		language = "en"
	}

	now := time.Now().UTC()
	return &model.Summary{
		ID:        fmt.Sprintf("%s_%d", videoID, now.UnixMilli()),
		VideoID:   videoID,
		Content:   final,
		KeyPoints: keyPoints,
		Topics:    topics,
		CreatedAt: now,
		Language:  language,
	}, nil
}
