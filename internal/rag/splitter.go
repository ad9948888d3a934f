package rag

// SplitText splits text into overlapping windows of at most size runes.
// The window advances by size-overlap runes per step, so any two adjacent
// chunks share overlap runes; the final chunk may be shorter. Requires
// 0 <= overlap < size (enforced by config validation).
func SplitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
