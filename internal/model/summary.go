package model

import "time"

// SummaryStyle controls the shape of the generated summary text
type SummaryStyle string

const (
	StyleBullet    SummaryStyle = "bullet"
	StyleParagraph SummaryStyle = "paragraph"
)

// SummaryLength controls how long the generated summary should be
type SummaryLength string

const (
	LengthShort  SummaryLength = "short"
	LengthMedium SummaryLength = "medium"
	LengthLong   SummaryLength = "long"
)

// TranscriptSegment is one (timestamp, text) pair in on-page order.
// Produced only by the extractor; immutable once produced.
type TranscriptSegment struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// SummaryOptions are per-request generation preferences supplied by the caller
type SummaryOptions struct {
	Style             SummaryStyle  `json:"style"`
	Length            SummaryLength `json:"length"`
	Language          string        `json:"language"`
	IncludeTags       bool          `json:"includeTags"`
	IncludeTimestamps bool          `json:"includeTimestamps"`
}

// Summary is the final product of one successful summarization.
// Identity for caching purposes is VideoID; a newer summary for the
// same video replaces the older one.
type Summary struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	Content   string    `json:"content"`
	KeyPoints []string  `json:"keyPoints"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"createdAt"`
	Language  string    `json:"language"`
}

// VideoMetadata describes the video a tab is showing
type VideoMetadata struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	ChannelName     string `json:"channelName"`
	DurationSeconds int    `json:"duration"`
}

// UserPreferences are the persisted per-user defaults applied when a
// summarize request leaves option fields unset
type UserPreferences struct {
	Language      string        `json:"language"`
	Style         SummaryStyle  `json:"style"`
	Length        SummaryLength `json:"length"`
	Theme         string        `json:"theme"`
	AutoTranslate bool          `json:"autoTranslate"`
}

// DefaultPreferences returns the preference defaults used when nothing
// has been persisted yet
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Language:      "en",
		Style:         StyleBullet,
		Length:        LengthMedium,
		Theme:         "light",
		AutoTranslate: true,
	}
}
