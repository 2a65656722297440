package telegram

import "strings"

// chunkMessage splits a summary into pieces that fit Telegram's message size
// limit. Summaries are line-oriented (one display unit per line), so chunks
// break at line boundaries; only a single oversized line is cut mid-line.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > maxLen {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		if cur.Len()+len(line) > maxLen {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
