package ingest

// chunkText splits text into fixed-size overlapping windows. Window and
// overlap are measured in runes so multi-byte text never splits mid-character.
// The caller guarantees overlap < window.
func chunkText(text string, window, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= window {
		return []string{text}
	}

	step := window - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + window
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
