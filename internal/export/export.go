// Package export renders summaries into downloadable documents.
package export

import (
	"fmt"
	"strings"

	"github.com/drywaters/recapd/internal/model"
)

// Format selects the output document type
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ContentType returns the MIME type for a format
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Filename returns the suggested download filename for a summary
func (f Format) Filename(videoID string) string {
	ext := "txt"
	if f == FormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("summary-%s.%s", videoID, ext)
}

// Render produces the document body for a summary in the given format.
// Unknown formats render as plain text.
func Render(summary *model.Summary, format Format) string {
	if format == FormatMarkdown {
		return renderMarkdown(summary)
	}
	return renderText(summary)
}

func renderText(s *model.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Video: %s\n", s.VideoID)
	fmt.Fprintf(&b, "Generated: %s\n\n", s.CreatedAt.Format("2006-01-02 15:04 MST"))
	b.WriteString(s.Content)
	b.WriteString("\n")

	if len(s.KeyPoints) > 0 {
		b.WriteString("\nKey Points:\n")
		for _, point := range s.KeyPoints {
			fmt.Fprintf(&b, "  - %s\n", point)
		}
	}

	if len(s.Topics) > 0 {
		fmt.Fprintf(&b, "\nTopics: %s\n", strings.Join(s.Topics, ", "))
	}

	return b.String()
}

func renderMarkdown(s *model.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Summary: %s\n\n", s.VideoID)
	fmt.Fprintf(&b, "_Generated %s_\n\n", s.CreatedAt.Format("2006-01-02 15:04 MST"))
	b.WriteString(s.Content)
	b.WriteString("\n")

	if len(s.KeyPoints) > 0 {
		b.WriteString("\n## Key Points\n\n")
		for _, point := range s.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}

	if len(s.Topics) > 0 {
		b.WriteString("\n## Topics\n\n")
		coded := make([]string, len(s.Topics))
		for i, topic := range s.Topics {
			coded[i] = "`" + topic + "`"
		}
		b.WriteString(strings.Join(coded, " "))
		b.WriteString("\n")
	}

	return b.String()
}
