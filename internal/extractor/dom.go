package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/drywaters/recapd/internal/model"
)

// Ordered strategy tables. The page's structure is not a stable
// contract; each step tries its selectors in order and the first
// non-empty match wins. Structure fragility stays in these tables,
// not in branching code.
var (
	readyMarkerSelectors = []string{
		"ytd-watch-flexy",
		"#movie_player",
		"video.html5-main-video",
		"ytd-player",
	}

	panelSelectors = []string{
		"ytd-transcript-renderer",
		"ytd-transcript-segment-list-renderer",
		`ytd-engagement-panel-section-list-renderer[target-id*="transcript"]`,
		"#segments-container",
	}

	segmentSelectors = []string{
		"ytd-transcript-segment-renderer",
		".segment",
		`[class*="transcript-segment"]`,
	}

	timestampSelectors = []string{
		".segment-timestamp",
		"div.segment-start-offset",
		`[class*="timestamp"]`,
	}

	textSelectors = []string{
		"yt-formatted-string.segment-text",
		".segment-text",
		`[class*="cue"]`,
	}
)

const playerResponseMarker = "ytInitialPlayerResponse"

// pageReady reports whether the snapshot shows a loaded player, via
// either a structural marker or the embedded player response
func pageReady(pageHTML string) bool {
	if strings.Contains(pageHTML, playerResponseMarker) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return false
	}
	for _, sel := range readyMarkerSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// findTranscriptPanel locates an already-rendered transcript container
func findTranscriptPanel(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, sel := range panelSelectors {
		if panel := doc.Find(sel).First(); panel.Length() > 0 {
			return panel, true
		}
	}
	return nil, false
}

// collectSegments queries the segment selectors inside the panel:
// direct children first, then one level of nested sub-containers
func collectSegments(panel *goquery.Selection) []model.TranscriptSegment {
	for _, sel := range segmentSelectors {
		if nodes := panel.ChildrenFiltered(sel); nodes.Length() > 0 {
			return extractSegmentFields(nodes)
		}
	}
	for _, sel := range segmentSelectors {
		if nodes := panel.Find(sel); nodes.Length() > 0 {
			return extractSegmentFields(nodes)
		}
	}
	return nil
}

// extractSegmentFields pulls timestamp and text out of each segment
// element through their own selector cascades
func extractSegmentFields(nodes *goquery.Selection) []model.TranscriptSegment {
	var segments []model.TranscriptSegment
	nodes.Each(func(_ int, seg *goquery.Selection) {
		timestamp := firstMatchText(seg, timestampSelectors)
		text := firstMatchText(seg, textSelectors)

		// Last resort: a segment holding exactly one child node is
		// its own text container
		if text == "" && hasSingleChildNode(seg) {
			text = strings.TrimSpace(seg.Text())
			// The fallback swallows the timestamp too; strip it back out
			if timestamp != "" {
				text = strings.TrimSpace(strings.TrimPrefix(text, timestamp))
			}
		}

		segments = append(segments, model.TranscriptSegment{
			Timestamp: timestamp,
			Text:      text,
		})
	})
	return segments
}

func firstMatchText(seg *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if match := seg.Find(sel).First(); match.Length() > 0 {
			if text := strings.TrimSpace(match.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func hasSingleChildNode(seg *goquery.Selection) bool {
	if len(seg.Nodes) == 0 {
		return false
	}
	first := seg.Nodes[0].FirstChild
	return first != nil && first.NextSibling == nil
}
