package turn

import (
	"testing"
	"time"
)

func TestTerminalCueCommits(t *testing.T) {
	a := NewAnalyzer()
	hint, ok := a.Analyze("that is everything, thanks", 0.9, 2*time.Second)
	if !ok {
		t.Fatalf("Analyze() ok = false")
	}
	if hint.Reason != "terminal" {
		t.Fatalf("Reason = %q, want terminal", hint.Reason)
	}
	if !hint.ShouldCommit {
		t.Fatalf("ShouldCommit = false on a confident terminal cue")
	}
	if hint.Hold > 200*time.Millisecond {
		t.Fatalf("Hold = %v, want short hold on terminal cue", hint.Hold)
	}
}

func TestContinuationCueHolds(t *testing.T) {
	a := NewAnalyzer()
	hint, ok := a.Analyze("I wanted to ask about the weather and", 0.9, time.Second)
	if !ok {
		t.Fatalf("Analyze() ok = false")
	}
	if hint.Reason != "continuation" {
		t.Fatalf("Reason = %q, want continuation", hint.Reason)
	}
	if hint.ShouldCommit {
		t.Fatalf("ShouldCommit = true on a trailing conjunction")
	}
	if hint.Hold < 400*time.Millisecond {
		t.Fatalf("Hold = %v, want a long hold on continuation", hint.Hold)
	}
}

func TestLowConfidenceNeverCommits(t *testing.T) {
	a := NewAnalyzer()
	hint, ok := a.Analyze("okay done.", 0.2, time.Second)
	if !ok {
		t.Fatalf("Analyze() ok = false")
	}
	if hint.ShouldCommit {
		t.Fatalf("ShouldCommit = true at confidence 0.2")
	}
	if hint.Reason != "low_confidence" {
		t.Fatalf("Reason = %q, want low_confidence", hint.Reason)
	}
}

func TestEmptyTextIsNotAHint(t *testing.T) {
	a := NewAnalyzer()
	if _, ok := a.Analyze("   ", 0.8, time.Second); ok {
		t.Fatalf("Analyze() ok = true for blank text")
	}
}
