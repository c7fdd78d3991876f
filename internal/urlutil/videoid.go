package urlutil

import "regexp"

// Video ID patterns for the URL shapes a watch page can be reached through
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/shorts/|youtube\.com/embed/|youtube\.com/live/)([a-zA-Z0-9_-]{11})`),
}

// VideoID extracts the 11-character video identifier from a watch URL.
// Returns "" when the URL does not reference a video.
func VideoID(rawURL string) string {
	for _, pattern := range videoIDPatterns {
		if matches := pattern.FindStringSubmatch(rawURL); len(matches) > 1 {
			return matches[1]
		}
	}
	return ""
}
