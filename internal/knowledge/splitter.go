package knowledge

import "strings"

// SplitText splits text into chunks of at most size runes with the given
// overlap between consecutive chunks. Breaks prefer paragraph, line and
// word boundaries, falling back to a hard cut when the window contains
// none. Whitespace-only chunks are dropped.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}

		next := end - overlap
		// The window must always advance.
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakPoint finds the best cut position in runes[start:limit], scanning
// backwards for a paragraph break, then a newline, then a space. A break in
// the first half of the window is worse than a hard cut.
func breakPoint(runes []rune, start, limit int) int {
	half := start + (limit-start)/2

	for i := limit - 1; i > half; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := limit - 1; i > half; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := limit - 1; i > half; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}
	return limit
}
