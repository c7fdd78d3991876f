package extractor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/drywaters/recapd/internal/messaging"
)

// Runtime owns the extractor sessions, one per tab context, and wires
// each onto the message bus, the equivalent of injecting a content
// script into a page
type Runtime struct {
	bus    *messaging.Bus
	client *http.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRuntime creates a runtime registering sessions on the given bus
func NewRuntime(bus *messaging.Bus) *Runtime {
	return &Runtime{
		bus:      bus,
		client:   &http.Client{Timeout: 15 * time.Second},
		sessions: make(map[string]*Session),
	}
}

// Attach creates (or replaces) the session for a tab context and
// registers its message handler. html optionally primes the session
// with a DOM snapshot captured by the client.
func (r *Runtime) Attach(contextID, pageURL, html string) (*Session, error) {
	session, err := NewSession(contextID, pageURL, html, r.client)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[contextID] = session
	r.mu.Unlock()

	r.bus.Register(contextID, r.handler(session))
	slog.Info("extractor session attached", "context_id", contextID, "video_id", session.VideoID())
	return session, nil
}

// Detach removes a tab's session and its bus handler
func (r *Runtime) Detach(contextID string) {
	r.bus.Unregister(contextID)
	r.mu.Lock()
	delete(r.sessions, contextID)
	r.mu.Unlock()
}

// Session returns the session for a context, if one exists
func (r *Runtime) Session(contextID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[contextID]
	return s, ok
}

// Inject re-registers the bus handler for an existing session,
// restoring a context whose handler went missing. Returns false when
// no session exists to re-inject.
func (r *Runtime) Inject(contextID string) bool {
	r.mu.Lock()
	session, ok := r.sessions[contextID]
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.bus.Register(contextID, r.handler(session))
	slog.Info("extractor re-injected", "context_id", contextID)
	return true
}

// handler dispatches bus requests to the session
func (r *Runtime) handler(s *Session) messaging.Handler {
	return func(ctx context.Context, req messaging.Request) messaging.Response {
		switch req.Action {
		case messaging.ActionPing:
			return messaging.Response{
				Success: true,
				Data: map[string]any{
					"pong":        true,
					"initialized": s.Initialized(),
				},
			}

		case messaging.ActionGetTranscript:
			transcript, err := s.Transcript(ctx)
			if err != nil {
				return messaging.Response{Success: false, Error: err.Error()}
			}
			return messaging.Response{Success: true, Data: transcript}

		case messaging.ActionGetMetadata:
			meta, err := s.Metadata(ctx)
			if err != nil {
				return messaging.Response{Success: false, Error: err.Error()}
			}
			return messaging.Response{Success: true, Data: meta}

		default:
			return messaging.Response{Success: false, Error: "unknown action: " + req.Action}
		}
	}
}
