package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/drywaters/recapd/internal/model"
	"google.golang.org/api/googleapi"
)

// testGemini builds a client with an injected generate function, a
// recording sleeper, and no real rate limiting
func testGemini(generate generateFunc, delays *[]time.Duration) *Gemini {
	g := NewGemini(
		WithRetry(3, 10*time.Millisecond),
		WithRateLimit(1e6),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			if delays != nil {
				*delays = append(*delays, d)
			}
			return nil
		}),
	)
	g.modelName = "test-model"
	g.generate = generate
	return g
}

func rateLimitErr() error {
	return &googleapi.Error{Code: 429, Message: "quota exceeded"}
}

func TestRetryBackoffIncreasesThenSoftFails(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	calls := 0
	g := testGemini(func(context.Context, string, float32) (string, error) {
		calls++
		return "", rateLimitErr()
	}, &delays)

	_, err := g.generateWithRetry(context.Background(), "prompt", summaryTemperature)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}

	// Backoff must be strictly increasing: d, 2d
	if len(delays) != 2 {
		t.Fatalf("delays = %v, want 2 sleeps", delays)
	}
	if delays[0] != 10*time.Millisecond || delays[1] != 20*time.Millisecond {
		t.Fatalf("delays = %v, want [10ms 20ms]", delays)
	}
}

// Non-429 HTTP failures share the 429 retry path; a 400 is retried
// even though it is logically permanent. Deliberate behavior, pinned
// here so a future classification change is a conscious one.
func TestBadRequestIsRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	g := testGemini(func(context.Context, string, float32) (string, error) {
		calls++
		return "", &googleapi.Error{Code: 400, Message: "invalid argument"}
	}, nil)

	_, err := g.generateWithRetry(context.Background(), "prompt", summaryTemperature)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (400 must be retried)", calls)
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	t.Parallel()

	for _, code := range []int{401, 403} {
		calls := 0
		g := testGemini(func(context.Context, string, float32) (string, error) {
			calls++
			return "", &googleapi.Error{Code: code, Message: "denied"}
		}, nil)

		_, err := g.generateWithRetry(context.Background(), "prompt", summaryTemperature)
		if !isAuthError(err) {
			t.Fatalf("code %d: err = %v, want auth error", code, err)
		}
		if calls != 1 {
			t.Fatalf("code %d: calls = %d, want 1 (no retry)", code, calls)
		}
	}
}

func TestMalformedResponseNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	g := testGemini(func(context.Context, string, float32) (string, error) {
		calls++
		return "", ErrMalformedResponse
	}, nil)

	_, err := g.generateWithRetry(context.Background(), "prompt", summaryTemperature)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	g := testGemini(func(context.Context, string, float32) (string, error) {
		calls++
		if calls < 3 {
			return "", rateLimitErr()
		}
		return "recovered", nil
	}, nil)

	text, err := g.generateWithRetry(context.Background(), "prompt", summaryTemperature)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if text != "recovered" {
		t.Fatalf("text = %q, want recovered", text)
	}
}

// Three-chunk pipeline where chunk 2 exhausts retries: the final
// summary is built only from chunks 1 and 3, re-summarized together,
// and key points and topics are still attempted.
func TestSummarizeSkipsFailedChunk(t *testing.T) {
	t.Parallel()

	// Words are 7 chars each; a 7-char limit forces one word per
	// chunk, giving 3 chunks.
	transcript := "chunk1a chunk2b chunk3c"

	var prompts []string
	g := testGemini(nil, nil)
	g.maxChunkChars = 7
	g.generate = func(_ context.Context, prompt string, _ float32) (string, error) {
		prompts = append(prompts, prompt)
		switch {
		case strings.Contains(prompt, "chunk2b"):
			return "", rateLimitErr()
		case strings.Contains(prompt, "chunk1a"):
			return "summary one", nil
		case strings.Contains(prompt, "chunk3c"):
			return "summary three", nil
		case strings.Contains(prompt, "Combine them"):
			if !strings.Contains(prompt, "summary one") || !strings.Contains(prompt, "summary three") {
				t.Errorf("combine prompt missing surviving summaries: %q", prompt)
			}
			if strings.Contains(prompt, "chunk2b") {
				t.Errorf("combine prompt should not contain failed chunk text")
			}
			return "combined summary", nil
		case strings.Contains(prompt, "key takeaways"):
			return "- point one\n- point two\n- point three", nil
		case strings.Contains(prompt, "topic terms"):
			return "go, testing, video", nil
		default:
			t.Errorf("unexpected prompt: %q", prompt)
			return "", errors.New("unexpected prompt")
		}
	}

	summary, err := g.Summarize(context.Background(), "abc123def45", transcript, model.SummaryOptions{IncludeTags: true})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if summary.Content != "combined summary" {
		t.Fatalf("content = %q, want combined summary", summary.Content)
	}
	if len(summary.KeyPoints) != 3 {
		t.Fatalf("key points = %q, want 3", summary.KeyPoints)
	}
	if len(summary.Topics) != 3 {
		t.Fatalf("topics = %q, want 3", summary.Topics)
	}
	if !strings.HasPrefix(summary.ID, "abc123def45_") {
		t.Fatalf("id = %q, want videoID_ prefix", summary.ID)
	}
}

func TestSummarizeAllChunksFailed(t *testing.T) {
	t.Parallel()

	g := testGemini(func(context.Context, string, float32) (string, error) {
		return "", rateLimitErr()
	}, nil)

	_, err := g.Summarize(context.Background(), "abc123def45", "some transcript text", model.SummaryOptions{})
	if !errors.Is(err, ErrAllChunksFailed) {
		t.Fatalf("err = %v, want ErrAllChunksFailed", err)
	}
}

func TestSummarizeSingleChunkSkipsCombine(t *testing.T) {
	t.Parallel()

	g := testGemini(func(_ context.Context, prompt string, _ float32) (string, error) {
		if strings.Contains(prompt, "Combine them") {
			t.Error("combine pass must not run for a single chunk")
		}
		if strings.Contains(prompt, "key takeaways") {
			return "- only point", nil
		}
		return "lone summary", nil
	}, nil)

	summary, err := g.Summarize(context.Background(), "abc123def45", "short transcript", model.SummaryOptions{})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Content != "lone summary" {
		t.Fatalf("content = %q, want lone summary", summary.Content)
	}
}

func TestSummarizeDerivedCallsDegradeToEmpty(t *testing.T) {
	t.Parallel()

	g := testGemini(func(_ context.Context, prompt string, _ float32) (string, error) {
		if strings.Contains(prompt, "key takeaways") || strings.Contains(prompt, "topic terms") {
			return "", rateLimitErr()
		}
		return "the summary", nil
	}, nil)

	summary, err := g.Summarize(context.Background(), "abc123def45", "short transcript", model.SummaryOptions{IncludeTags: true})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summary.KeyPoints) != 0 || len(summary.Topics) != 0 {
		t.Fatalf("expected empty enrichment, got points=%q topics=%q", summary.KeyPoints, summary.Topics)
	}
	if summary.Content != "the summary" {
		t.Fatalf("content = %q", summary.Content)
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	t.Parallel()

	g := testGemini(func(context.Context, string, float32) (string, error) {
		t.Error("no generation call expected for an empty transcript")
		return "", nil
	}, nil)

	_, err := g.Summarize(context.Background(), "abc123def45", "[0:00] [0:05]", model.SummaryOptions{})
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("err = %v, want ErrEmptyTranscript", err)
	}
}

func TestPickModelPreferenceOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		supported map[string]bool
		fallback  string
		pinned    string
		want      string
		wantErr   error
	}{
		{
			name:      "first preferred wins",
			supported: map[string]bool{"gemini-1.5-flash": true, "gemini-2.5-flash": true},
			fallback:  "gemini-1.5-flash",
			want:      "gemini-2.5-flash",
		},
		{
			name:      "pin beats preference",
			supported: map[string]bool{"gemini-1.5-pro": true, "gemini-2.5-flash": true},
			fallback:  "gemini-1.5-pro",
			pinned:    "gemini-1.5-pro",
			want:      "gemini-1.5-pro",
		},
		{
			name:      "unlisted pin ignored",
			supported: map[string]bool{"gemini-2.5-flash": true},
			fallback:  "gemini-2.5-flash",
			pinned:    "gemini-9000",
			want:      "gemini-2.5-flash",
		},
		{
			name:      "fallback when nothing preferred",
			supported: map[string]bool{"exotic-model": true},
			fallback:  "exotic-model",
			want:      "exotic-model",
		},
		{
			name:      "empty listing",
			supported: map[string]bool{},
			wantErr:   ErrNoModelAvailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := pickModel(tt.supported, tt.fallback, tt.pinned)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Fatalf("model = %q, want %q", got, tt.want)
			}
		})
	}
}
