package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeWatchURL canonicalizes a video URL so that every way of
// reaching the same video yields the same string: shorts, shares, and
// embeds become a plain watch URL. Share-link tracking parameters (si,
// pp, utm_*) fall away with everything else; only a start-time
// parameter survives.
func NormalizeWatchURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid url")
	}

	videoID := VideoID(trimmed)
	if videoID == "" {
		return "", fmt.Errorf("no video in url %q", trimmed)
	}

	query := url.Values{"v": {videoID}}
	if t := parsed.Query().Get("t"); t != "" {
		query.Set("t", t)
	}

	canonical := url.URL{
		Scheme:   "https",
		Host:     "www.youtube.com",
		Path:     "/watch",
		RawQuery: query.Encode(),
	}
	return canonical.String(), nil
}
