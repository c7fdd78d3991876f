package summarizer

import (
	"strings"

	"github.com/drywaters/recapd/internal/model"
)

const maxDerivedItems = 5

func lengthInstruction(length model.SummaryLength) string {
	switch length {
	case model.LengthShort:
		return "Keep it brief: 2-3 sentences."
	case model.LengthLong:
		return "Be thorough: cover every major section in 3-4 paragraphs."
	default:
		return "Aim for one solid paragraph."
	}
}

func styleInstruction(style model.SummaryStyle) string {
	if style == model.StyleBullet {
		return "Format the summary as bullet points, one point per line."
	}
	return "Write the summary as flowing prose paragraphs."
}

// buildChunkPrompt produces the prompt for summarizing one transcript chunk
func buildChunkPrompt(chunk string, opts model.SummaryOptions) string {
	var sb strings.Builder

	sb.WriteString("Summarize this portion of a video transcript. ")
	sb.WriteString("Focus on the main ideas and concrete facts.\n")
	sb.WriteString(lengthInstruction(opts.Length))
	sb.WriteString("\n")
	sb.WriteString(styleInstruction(opts.Style))
	sb.WriteString("\n")
	if opts.Language != "" && opts.Language != "en" {
		sb.WriteString("Respond in language: ")
		sb.WriteString(opts.Language)
		sb.WriteString("\n")
	}
	sb.WriteString("\nTranscript:\n")
	sb.WriteString(chunk)
	sb.WriteString("\n\nSummary:")

	return sb.String()
}

// buildCombinePrompt produces the prompt for merging per-chunk
// summaries into one cohesive final summary
func buildCombinePrompt(chunkSummaries []string, opts model.SummaryOptions) string {
	var sb strings.Builder

	sb.WriteString("The following are summaries of consecutive parts of one video. ")
	sb.WriteString("Combine them into a single cohesive summary without repeating yourself.\n")
	sb.WriteString(lengthInstruction(opts.Length))
	sb.WriteString("\n")
	sb.WriteString(styleInstruction(opts.Style))
	sb.WriteString("\n")
	if opts.Language != "" && opts.Language != "en" {
		sb.WriteString("Respond in language: ")
		sb.WriteString(opts.Language)
		sb.WriteString("\n")
	}
	sb.WriteString("\nPart summaries:\n")
	sb.WriteString(strings.Join(chunkSummaries, "\n"))
	sb.WriteString("\n\nCombined summary:")

	return sb.String()
}

// buildKeyPointsPrompt asks for 3-5 bullet-style takeaways from the final summary
func buildKeyPointsPrompt(summary string) string {
	var sb strings.Builder

	sb.WriteString("Extract 3 to 5 key takeaways from this video summary. ")
	sb.WriteString("Output one takeaway per line as a plain bullet list, nothing else.\n\n")
	sb.WriteString(summary)
	sb.WriteString("\n\nKey takeaways:")

	return sb.String()
}

// buildTopicsPrompt asks for 3-5 comma-separated topic terms
func buildTopicsPrompt(summary string) string {
	var sb strings.Builder

	sb.WriteString("List 3 to 5 short topic terms that categorize this video summary. ")
	sb.WriteString("Output only the terms, comma-separated, nothing else.\n\n")
	sb.WriteString(summary)
	sb.WriteString("\n\nTopics:")

	return sb.String()
}

// parseKeyPoints splits a bullet-list response into clean lines with
// bullet markers stripped, capped at maxDerivedItems
func parseKeyPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		points = append(points, line)
		if len(points) == maxDerivedItems {
			break
		}
	}
	return points
}

// parseTopics splits a comma-separated response into clean terms,
// capped at maxDerivedItems
func parseTopics(text string) []string {
	var topics []string
	for _, term := range strings.Split(text, ",") {
		term = strings.TrimSpace(term)
		term = strings.Trim(term, ".")
		if term == "" {
			continue
		}
		topics = append(topics, term)
		if len(topics) == maxDerivedItems {
			break
		}
	}
	return topics
}
