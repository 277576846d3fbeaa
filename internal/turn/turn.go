// Package turn supplies the end-of-turn analyzer attached to the
// speech-recognition stage. It scores an interim transcript for whether the
// speaker sounds finished, so the stage can commit early on a clear terminal
// cue instead of waiting out the full endpointing window.
package turn

import (
	"regexp"
	"strings"
	"time"
)

type Hint struct {
	Reason       string
	Confidence   float64
	Hold         time.Duration
	ShouldCommit bool
}

const (
	holdMin           = 40 * time.Millisecond
	holdMax           = 900 * time.Millisecond
	confidenceUnknown = 0.55
	commitSafeFloor   = 0.50
)

var (
	continuationTailRe   = regexp.MustCompile(`(?i)\b(and|but|because|so|then|which|that|if|when|while|as|to|for)\s*$`)
	continuationPhraseRe = regexp.MustCompile(`(?i)\b(i mean|for example|for instance|in order to)\s*$`)
	terminalTailRe       = regexp.MustCompile(`(?i)([.!?]["']?\s*$|\b(done|thanks|thank you|that's all|thats all)\s*$)`)
	openTailRe           = regexp.MustCompile(`[,;:\-]\s*$`)
)

type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze returns a hint for the given interim transcript, or ok=false when
// the text is empty. utteranceAge is how long the current utterance has been
// building.
func (a *Analyzer) Analyze(partial string, confidence float64, utteranceAge time.Duration) (Hint, bool) {
	text := strings.TrimSpace(partial)
	if text == "" {
		return Hint{}, false
	}
	if confidence <= 0 || confidence > 1 {
		confidence = confidenceUnknown
	}

	hint := Hint{
		Reason:     "neutral",
		Confidence: maxFloat(0.58, confidence),
		Hold:       210 * time.Millisecond,
	}

	switch {
	case continuationTailRe.MatchString(text) || continuationPhraseRe.MatchString(text) || openTailRe.MatchString(text):
		hint.Reason = "continuation"
		hint.Confidence = maxFloat(hint.Confidence, 0.85)
		hint.Hold = 520 * time.Millisecond
	case terminalTailRe.MatchString(text):
		hint.Reason = "terminal"
		hint.Confidence = maxFloat(hint.Confidence, 0.82)
		hint.Hold = 90 * time.Millisecond
		hint.ShouldCommit = confidence >= commitSafeFloor
	}

	if utteranceAge > 6*time.Second && hint.Reason != "continuation" {
		hint.Reason = "long_utterance"
		hint.Hold -= 70 * time.Millisecond
	}

	if confidence < 0.45 {
		hint.Hold += 140 * time.Millisecond
		hint.ShouldCommit = false
		hint.Reason = "low_confidence"
	}

	if hint.Hold < holdMin {
		hint.Hold = holdMin
	}
	if hint.Hold > holdMax {
		hint.Hold = holdMax
	}
	return hint, true
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
