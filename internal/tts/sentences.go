package tts

import "strings"

// SplitSentences cuts text at sentence boundaries and returns the complete
// sentences plus the unfinished remainder. Sending the synthesizer whole
// sentences keeps prosody natural without waiting for the full response.
func SplitSentences(text string) (sentences []string, rest string) {
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		// Swallow runs of terminators ("?!", "...").
		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
		}
		// A boundary needs following whitespace or end-of-text, so "3.5"
		// stays whole.
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	return sentences, strings.TrimLeft(string(runes[start:]), " \t\n")
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
