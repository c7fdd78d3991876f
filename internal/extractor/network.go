package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/drywaters/recapd/internal/model"
)

const (
	defaultInnertubeBase = "https://www.youtube.com"

	innertubeNextPath          = "/youtubei/v1/next?prettyPrint=false"
	innertubeGetTranscriptPath = "/youtubei/v1/get_transcript?prettyPrint=false"
	innertubeClientVersion     = "2.20240620.05.00"

	maxPanelBytes = 2 * 1024 * 1024
)

// transcriptTokenRE pulls the transcript continuation token out of an
// engagement panel's raw JSON
var transcriptTokenRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

// transcriptFromPlayerResponse parses the embedded player response,
// picks a caption track, and fetches its timedtext payload. A player
// response that carries no caption tracks is a definitive ErrNoCaptions.
func (s *Session) transcriptFromPlayerResponse(ctx context.Context, pageHTML string) ([]model.TranscriptSegment, error) {
	raw, err := parsePlayerResponse(pageHTML)
	if err != nil {
		// The primed snapshot may predate hydration; one refetch
		// gives the page a chance to carry the script inline
		html, ferr := s.currentHTML(ctx, true)
		if ferr != nil {
			return nil, err
		}
		if raw, err = parsePlayerResponse(html); err != nil {
			return nil, err
		}
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("failed to decode player response: %w", err)
	}

	if player.Captions == nil {
		return nil, ErrNoCaptions
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	track, ok := pickCaptionTrack(tracks, s.languages)
	if !ok {
		return nil, ErrNoCaptions
	}

	return s.fetchTimedText(ctx, track.BaseURL)
}

// fetchTimedText retrieves a caption track's XML, re-polling a bounded
// number of times while the payload materializes empty
func (s *Session) fetchTimedText(ctx context.Context, baseURL string) ([]model.TranscriptSegment, error) {
	var lastErr error
	for attempt := 1; attempt <= s.waitAttempts; attempt++ {
		body, err := s.getBytes(ctx, baseURL)
		if err != nil {
			lastErr = err
		} else if len(bytes.TrimSpace(body)) > 0 {
			return parseTimedText(body)
		} else {
			lastErr = errors.New("empty timedtext payload")
		}

		if attempt < s.waitAttempts {
			if err := s.sleep(ctx, s.waitDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("timedtext never materialized: %w", lastErr)
}

func (s *Session) getBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPanelBytes))
}

func (s *Session) postInnertube(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

func innertubeContext() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"clientName":    "WEB",
			"clientVersion": innertubeClientVersion,
			"hl":            "en",
			"gl":            "US",
		},
	}
}

// nextResponse captures just the engagement panels from a /next reply.
// Panels stay raw so the title match and token scan run per panel.
type nextResponse struct {
	EngagementPanels []json.RawMessage `json:"engagementPanels"`
}

// findTranscriptPanelToken scans engagement panels for one whose
// payload mentions a transcript (case-insensitive) and carries a
// getTranscriptEndpoint continuation token
func findTranscriptPanelToken(data []byte) (string, error) {
	var next nextResponse
	if err := json.Unmarshal(data, &next); err != nil {
		return "", fmt.Errorf("failed to decode /next response: %w", err)
	}

	for _, panel := range next.EngagementPanels {
		if !strings.Contains(strings.ToLower(string(panel)), "transcript") {
			continue
		}
		if m := transcriptTokenRE.FindSubmatch(panel); len(m) >= 2 {
			// The token arrives URL-encoded; /get_transcript wants it raw
			if decoded, err := url.QueryUnescape(string(m[1])); err == nil {
				return decoded, nil
			}
			return string(m[1]), nil
		}
	}
	return "", errors.New("no transcript engagement panel in /next response")
}

// getTranscriptResponse mirrors the nested /get_transcript JSON shape
type getTranscriptResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *struct {
											StartTimeText struct {
												SimpleText string `json:"simpleText"`
											} `json:"startTimeText"`
											Snippet struct {
												Runs []struct {
													Text string `json:"text"`
												} `json:"runs"`
											} `json:"snippet"`
										} `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

func parseGetTranscript(data []byte) ([]model.TranscriptSegment, error) {
	var resp getTranscriptResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode /get_transcript response: %w", err)
	}

	var segments []model.TranscriptSegment
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		initial := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range initial {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range r.Snippet.Runs {
				if run.Text == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(run.Text)
			}
			segments = append(segments, model.TranscriptSegment{
				Timestamp: r.StartTimeText.SimpleText,
				Text:      sb.String(),
			})
		}
	}
	return segments, nil
}

// transcriptFromEngagementPanel opens the transcript through the
// Innertube endpoints: /next yields the panel token, /get_transcript
// yields the segments, re-polled while the panel materializes empty
func (s *Session) transcriptFromEngagementPanel(ctx context.Context) ([]model.TranscriptSegment, error) {
	nextData, err := s.postInnertube(ctx, s.innertubeBase+innertubeNextPath, map[string]any{
		"videoId": s.videoID,
		"context": innertubeContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := findTranscriptPanelToken(nextData)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.waitAttempts; attempt++ {
		data, err := s.postInnertube(ctx, s.innertubeBase+innertubeGetTranscriptPath, map[string]any{
			"params":  token,
			"context": innertubeContext(),
		})
		if err != nil {
			lastErr = fmt.Errorf("/get_transcript: %w", err)
		} else {
			segments, perr := parseGetTranscript(data)
			if perr != nil {
				lastErr = perr
			} else if len(segments) > 0 {
				return segments, nil
			} else {
				lastErr = errors.New("transcript panel materialized empty")
			}
		}

		if attempt < s.waitAttempts {
			if err := s.sleep(ctx, s.waitDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}
