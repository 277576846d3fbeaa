// Package vad provides the voice-activity analyzer attached to the inbound
// side of a transport. It is a simple energy gate: speech starts when frame
// RMS crosses the threshold and stops after a configurable run of quiet
// frames.
package vad

import (
	"encoding/binary"
	"math"
	"time"
)

type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSpeechStop
)

type Params struct {
	// StopDuration is how long the signal must stay quiet before speech is
	// considered over. Mirrors the transport's stop_secs knob.
	StopDuration time.Duration

	// Threshold is the RMS level (0..1) separating speech from silence.
	Threshold float64
}

type Analyzer struct {
	params    Params
	speaking  bool
	lastVoice time.Time
}

func NewAnalyzer(params Params) *Analyzer {
	if params.StopDuration <= 0 {
		params.StopDuration = 200 * time.Millisecond
	}
	if params.Threshold <= 0 {
		params.Threshold = 0.015
	}
	return &Analyzer{params: params}
}

// Process inspects one PCM16LE mono frame and reports a boundary event, if
// any. Callers pass a monotonic-enough now so tests can drive time.
func (a *Analyzer) Process(pcm []byte, now time.Time) Event {
	level := rms(pcm)

	if level >= a.params.Threshold {
		a.lastVoice = now
		if !a.speaking {
			a.speaking = true
			return EventSpeechStart
		}
		return EventNone
	}

	if a.speaking && !a.lastVoice.IsZero() && now.Sub(a.lastVoice) >= a.params.StopDuration {
		a.speaking = false
		return EventSpeechStop
	}
	return EventNone
}

// Speaking reports whether the analyzer currently considers the user to be
// talking.
func (a *Analyzer) Speaking() bool {
	return a.speaking
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
