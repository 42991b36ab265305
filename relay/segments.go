package relay

import "unicode/utf8"

// Segments splits text into consecutive chunks of at most size characters.
// Order is preserved and joining the chunks yields text again. Text that
// fits in one chunk is returned as a single segment; empty text yields none.
func Segments(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	runes := []rune(text)
	segments := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}
