// Package messaging provides the asynchronous request/response channel
// between the coordinator and per-tab extractor sessions. The two sides
// share nothing but this bus and the persistent store, mirroring the
// isolated execution contexts of the browser runtime this service
// replaces.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions understood by extractor sessions
const (
	ActionPing          = "ping"
	ActionGetMetadata   = "getVideoMetadata"
	ActionGetTranscript = "getTranscript"
)

var (
	// ErrNoHandler means no session is registered for the context
	ErrNoHandler = errors.New("no handler registered for context")
	// ErrTimeout means the target context did not answer in time
	ErrTimeout = errors.New("message send timed out")
)

// Request is one message sent to an extractor context
type Request struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Response is the uniform reply envelope; every response carries a
// success flag and either data or a human-readable error
type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler processes one request inside the target context
type Handler func(ctx context.Context, req Request) Response

// Bus routes requests to handlers keyed by context ID. Handlers run in
// their own goroutine; Send waits for the reply or gives up after the
// bus timeout, leaving the eventual response to be discarded.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	timeout  time.Duration
}

// New creates a bus with the given send timeout
func New(timeout time.Duration) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		timeout:  timeout,
	}
}

// Register installs the handler for a context, replacing any previous one
func (b *Bus) Register(contextID string, handler Handler) {
	b.mu.Lock()
	b.handlers[contextID] = handler
	b.mu.Unlock()
}

// Unregister removes the handler for a context
func (b *Bus) Unregister(contextID string) {
	b.mu.Lock()
	delete(b.handlers, contextID)
	b.mu.Unlock()
}

// Registered reports whether a handler exists for the context
func (b *Bus) Registered(contextID string) bool {
	b.mu.RLock()
	_, ok := b.handlers[contextID]
	b.mu.RUnlock()
	return ok
}

// Send delivers a request to the context's handler and waits for its
// response. Returns ErrNoHandler when the context is unknown and
// ErrTimeout when no reply arrives in time.
func (b *Bus) Send(ctx context.Context, contextID, action string, payload map[string]any) (Response, error) {
	b.mu.RLock()
	handler, ok := b.handlers[contextID]
	b.mu.RUnlock()

	if !ok {
		return Response{}, ErrNoHandler
	}

	req := Request{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Action:    action,
		Payload:   payload,
	}

	replies := make(chan Response, 1)
	go func() {
		replies <- handler(ctx, req)
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case resp := <-replies:
		resp.ID = req.ID
		return resp, nil
	case <-timer.C:
		slog.Warn("message send timed out", "context_id", contextID, "action", action, "id", req.ID)
		return Response{}, ErrTimeout
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
