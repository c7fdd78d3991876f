package summarizer

import (
	"regexp"
	"strings"
)

// Bracketed timestamp annotations like "[12:34]" added by the extractor
var timestampAnnotation = regexp.MustCompile(`\[[0-9:]+\]`)

// normalizeTranscript prepares a raw transcript for chunking: bracketed
// timestamps are stripped (unless the caller asked to keep them),
// whitespace runs collapse to single spaces, and the result is trimmed.
func normalizeTranscript(transcript string, keepTimestamps bool) string {
	s := transcript
	if !keepTimestamps {
		s = timestampAnnotation.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// chunkWords greedily packs whitespace-delimited words into chunks of
// at most maxChars. A boundary is only forced when adding the next word
// would exceed the limit; a single word longer than the limit still
// forms its own chunk.
func chunkWords(s string, maxChars int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
