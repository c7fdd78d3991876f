package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/drywaters/recapd/internal/model"
	"golang.org/x/net/html"
)

// ISO 8601 duration pattern (PT#H#M#S)
var durationPattern = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// parseISODuration converts an ISO 8601 duration to seconds
func parseISODuration(duration string) int {
	matches := durationPattern.FindStringSubmatch(duration)
	if len(matches) == 0 {
		return 0
	}

	var hours, minutes, seconds int
	if matches[1] != "" {
		hours, _ = strconv.Atoi(matches[1])
	}
	if matches[2] != "" {
		minutes, _ = strconv.Atoi(matches[2])
	}
	if matches[3] != "" {
		seconds, _ = strconv.Atoi(matches[3])
	}

	return hours*3600 + minutes*60 + seconds
}

// Metadata extracts the video's title, channel, and duration from the
// watch page's meta tags
func (s *Session) Metadata(ctx context.Context) (model.VideoMetadata, error) {
	meta := model.VideoMetadata{VideoID: s.videoID}

	pageHTML, err := s.currentHTML(ctx, false)
	if err != nil {
		return meta, fmt.Errorf("failed to load page: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return meta, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	walkMetadata(doc, &meta)
	return meta, nil
}

// walkMetadata walks the HTML tree filling in title, channel name,
// and duration from og: and itemprop annotations
func walkMetadata(n *html.Node, meta *model.VideoMetadata) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if n.FirstChild != nil && meta.Title == "" {
				meta.Title = strings.TrimSpace(strings.TrimSuffix(n.FirstChild.Data, " - YouTube"))
			}
		case "meta":
			var property, itemprop, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property":
					property = attr.Val
				case "itemprop":
					itemprop = attr.Val
				case "content":
					content = attr.Val
				}
			}

			if property == "og:title" && content != "" {
				meta.Title = content
			}

			switch itemprop {
			case "duration":
				if seconds := parseISODuration(content); seconds > 0 {
					meta.DurationSeconds = seconds
				}
			case "name":
				if meta.Title == "" && content != "" {
					meta.Title = content
				}
			}
		case "link":
			// The channel name hides in <link itemprop="name"> inside
			// the author span
			var itemprop, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "itemprop":
					itemprop = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if itemprop == "name" && content != "" && meta.ChannelName == "" {
				meta.ChannelName = content
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkMetadata(c, meta)
	}
}
