package utils

// Truncate shortens s to at most maxLen runes for log previews, marking the cut
// with "...". Multi-byte characters are never split.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:max(maxLen, 0)]) + "..."
}
