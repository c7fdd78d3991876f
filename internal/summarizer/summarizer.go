package summarizer

import (
	"context"
	"errors"

	"github.com/drywaters/recapd/internal/model"
)

var (
	// ErrNotInitialized means Summarize was called before a successful Initialize
	ErrNotInitialized = errors.New("summarizer not initialized")
	// ErrNoModelAvailable means the provider listed no model supporting generation
	ErrNoModelAvailable = errors.New("no model supporting content generation available")
	// ErrRetriesExhausted means a generation call failed through every retry attempt
	ErrRetriesExhausted = errors.New("generation retries exhausted")
	// ErrMalformedResponse means the provider response carried no usable text
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrAllChunksFailed means not a single transcript chunk could be summarized
	ErrAllChunksFailed = errors.New("all transcript chunks failed to summarize")
	// ErrEmptyTranscript means there was nothing left to summarize after normalization
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Summarizer turns a raw transcript into a Summary through an external
// generative-text provider
type Summarizer interface {
	// Initialize establishes the provider session and selects a model.
	// Auth failures and an empty model listing propagate to the caller.
	Initialize(ctx context.Context, apiKey string) error

	// Summarize runs the full chunk/retry/combine pipeline for one
	// transcript. Internal failures surface as an error, never a panic.
	Summarize(ctx context.Context, videoID, transcript string, opts model.SummaryOptions) (*model.Summary, error)

	// ModelName returns the selected model, or "" before Initialize
	ModelName() string
}
