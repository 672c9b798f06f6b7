package transcript

import "strings"

// appendSegment merges continuation segments to avoid duplicate transcript growth.
func appendSegment(segments []string, text string) []string {
	text = cleanSegment(text)
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case text == last:
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	case strings.HasPrefix(last, text):
		return segments
	default:
		return append(segments, text)
	}
}

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
