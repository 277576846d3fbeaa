package vad

import (
	"encoding/binary"
	"testing"
	"time"
)

func pcmFrame(amplitude int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf
}

func TestSpeechStartAndStop(t *testing.T) {
	a := NewAnalyzer(Params{StopDuration: 100 * time.Millisecond, Threshold: 0.01})
	now := time.Unix(0, 0)

	loud := pcmFrame(8000, 320)
	quiet := pcmFrame(50, 320)

	if ev := a.Process(loud, now); ev != EventSpeechStart {
		t.Fatalf("first loud frame event = %v, want EventSpeechStart", ev)
	}
	if ev := a.Process(loud, now.Add(20*time.Millisecond)); ev != EventNone {
		t.Fatalf("sustained speech event = %v, want EventNone", ev)
	}
	if !a.Speaking() {
		t.Fatalf("Speaking() = false during speech")
	}

	// Quiet, but not yet long enough to close the segment.
	if ev := a.Process(quiet, now.Add(60*time.Millisecond)); ev != EventNone {
		t.Fatalf("early quiet frame event = %v, want EventNone", ev)
	}
	if ev := a.Process(quiet, now.Add(130*time.Millisecond)); ev != EventSpeechStop {
		t.Fatalf("late quiet frame event = %v, want EventSpeechStop", ev)
	}
	if a.Speaking() {
		t.Fatalf("Speaking() = true after stop")
	}
}

func TestSilenceNeverStarts(t *testing.T) {
	a := NewAnalyzer(Params{})
	quiet := pcmFrame(10, 320)
	now := time.Unix(0, 0)
	for i := 0; i < 50; i++ {
		if ev := a.Process(quiet, now.Add(time.Duration(i)*20*time.Millisecond)); ev != EventNone {
			t.Fatalf("silence produced event %v at frame %d", ev, i)
		}
	}
}
