// Package handler implements the JSON API surface. Every response uses
// the uniform envelope {success, data?, error?}.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drywaters/recapd/internal/coordinator"
	"github.com/drywaters/recapd/internal/export"
	"github.com/drywaters/recapd/internal/extractor"
	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/urlutil"
)

const maxBodyBytes = 8 << 20

// API holds the handlers for the summarization endpoints
type API struct {
	coordinator *coordinator.Coordinator
	runtime     *extractor.Runtime
}

// NewAPI creates the API handler set
func NewAPI(coord *coordinator.Coordinator, runtime *extractor.Runtime) *API {
	return &API{coordinator: coord, runtime: runtime}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

type summarizeRequest struct {
	VideoID    string               `json:"videoId"`
	URL        string               `json:"url"`
	ContextID  string               `json:"contextId"`
	Transcript string               `json:"transcript"`
	Options    model.SummaryOptions `json:"options"`
}

// Summarize handles POST /api/summarize
func (a *API) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	videoID := req.VideoID
	if videoID == "" && req.URL != "" {
		videoID = urlutil.VideoID(req.URL)
	}
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "videoId or a recognizable url is required")
		return
	}

	summary, err := a.coordinator.SummarizeVideo(r.Context(), coordinator.SummarizeRequest{
		VideoID:    videoID,
		ContextID:  req.ContextID,
		Transcript: req.Transcript,
		Options:    req.Options,
	})
	if err != nil {
		writeError(w, summarizeStatus(err), err.Error())
		return
	}

	writeData(w, summary)
}

// summarizeStatus maps coordinator errors onto HTTP statuses
func summarizeStatus(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrAlreadyProcessing):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrSummarizerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, coordinator.ErrNoTranscript):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GetSummary handles GET /api/summaries/{videoID}
func (a *API) GetSummary(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")

	summary := a.coordinator.CachedSummary(r.Context(), videoID)
	if summary == nil {
		writeError(w, http.StatusNotFound, "no cached summary for video "+videoID)
		return
	}

	writeData(w, summary)
}

type exportRequest struct {
	Summary *model.Summary `json:"summary"`
	VideoID string         `json:"videoId"`
	Format  string         `json:"format"`
}

// Export handles POST /api/export, answering with the rendered document
// as a download rather than the JSON envelope. The caller supplies the
// summary to render; a videoId alone falls back to the cache, so a
// summary the client still holds stays exportable after its cache
// entry expires.
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	format := export.Format(req.Format)
	if format != export.FormatText && format != export.FormatMarkdown {
		writeError(w, http.StatusBadRequest, "format must be text or markdown")
		return
	}

	summary := req.Summary
	if summary == nil {
		if req.VideoID == "" {
			writeError(w, http.StatusBadRequest, "summary or videoId is required")
			return
		}
		summary = a.coordinator.CachedSummary(r.Context(), req.VideoID)
		if summary == nil {
			writeError(w, http.StatusNotFound, "no cached summary for video "+req.VideoID)
			return
		}
	}

	body := export.Render(summary, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(summary.VideoID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type setKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// SetKey handles POST /api/key
func (a *API) SetKey(w http.ResponseWriter, r *http.Request) {
	var req setKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	if err := a.coordinator.SetAPIKey(r.Context(), req.APIKey); err != nil {
		writeError(w, http.StatusBadGateway, "failed to initialize summarizer: "+err.Error())
		return
	}

	writeData(w, map[string]any{"initialized": true})
}

type attachRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// AttachTab handles POST /api/tabs/{contextID}
func (a *API) AttachTab(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")

	var req attachRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := a.runtime.Attach(contextID, req.URL, req.HTML)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeData(w, map[string]any{
		"contextId": contextID,
		"videoId":   session.VideoID(),
	})
}

// DetachTab handles DELETE /api/tabs/{contextID}
func (a *API) DetachTab(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	a.runtime.Detach(contextID)
	writeData(w, map[string]any{"detached": true})
}

// VerifyTab handles GET /api/tabs/{contextID}/verify. It never fails;
// the body reports whether the tab's extractor answers pings.
func (a *API) VerifyTab(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	ready := a.coordinator.EnsureExtractorReady(r.Context(), contextID)
	writeData(w, map[string]any{"ready": ready})
}

// TabMetadata handles GET /api/tabs/{contextID}/metadata
func (a *API) TabMetadata(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")

	meta, err := a.coordinator.Metadata(r.Context(), contextID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeData(w, meta)
}

// GetPreferences handles GET /api/preferences
func (a *API) GetPreferences(w http.ResponseWriter, r *http.Request) {
	writeData(w, a.coordinator.Preferences(r.Context()))
}

// PutPreferences handles PUT /api/preferences
func (a *API) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs model.UserPreferences
	if !decodeBody(w, r, &prefs) {
		return
	}

	if err := a.coordinator.SetPreferences(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeData(w, prefs)
}

// Health handles GET /health
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"status":      "ok",
		"initialized": a.coordinator.Ready(),
	})
}
