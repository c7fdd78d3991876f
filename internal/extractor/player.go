package extractor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/drywaters/recapd/internal/model"
)

// playerResponse is the slice of ytInitialPlayerResponse we care about
type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

// timedText is the caption XML served from a track's baseUrl
type timedText struct {
	Lines []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Text  string  `xml:",chardata"`
}

const playerResponseAssignment = "ytInitialPlayerResponse = "

// extractJSON returns the first balanced JSON object at the start of
// data, tracking brace depth outside string literals
func extractJSON(data []byte) []byte {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}

	depth := 0
	inString := false
	escaped := false
	for i, b := range data {
		if escaped {
			escaped = false
			continue
		}
		switch b {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return data[:i+1]
				}
			}
		}
	}
	return nil
}

// parsePlayerResponse extracts the embedded ytInitialPlayerResponse
// JSON from watch page HTML
func parsePlayerResponse(pageHTML string) ([]byte, error) {
	idx := strings.Index(pageHTML, playerResponseAssignment)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in page")
	}
	raw := extractJSON([]byte(pageHTML[idx+len(playerResponseAssignment):]))
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	return raw, nil
}

// pickCaptionTrack selects a track by language preference, manual
// tracks over auto-generated, falling back to any track
func pickCaptionTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range languages {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range languages {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range tracks {
		if t.Kind != "asr" {
			return t, true
		}
	}
	return tracks[0], true
}

// formatTimestamp renders seconds as m:ss, or h:mm:ss past the hour
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// parseTimedText converts caption XML into transcript segments
func parseTimedText(body []byte) ([]model.TranscriptSegment, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("failed to parse timedtext XML: %w", err)
	}

	segments := make([]model.TranscriptSegment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		segments = append(segments, model.TranscriptSegment{
			Timestamp: formatTimestamp(line.Start),
			Text:      strings.TrimSpace(html.UnescapeString(line.Text)),
		})
	}
	return segments, nil
}
