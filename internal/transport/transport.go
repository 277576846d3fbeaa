// Package transport abstracts the realtime room an agent session joins. The
// production implementation speaks WebRTC through LiveKit; tests use the fake.
package transport

import (
	"context"

	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/vad"
)

// EventListener receives participant lifecycle events from the room. The
// agent session implements this; the transport invokes it in the order the
// underlying room delivers events.
type EventListener interface {
	OnFirstParticipantJoined(participantID string)
	OnParticipantDisconnected(participantID string)
}

// Params configures the audio path of a transport.
type Params struct {
	AudioInEnabled  bool
	AudioOutEnabled bool

	// VAD, when set, runs over inbound audio and surfaces speech boundaries
	// as pipeline frames.
	VAD *vad.Analyzer
}

// Transport is one agent's connection to one room.
type Transport interface {
	// Connect joins the room. It must be called before the pipeline runs.
	Connect(ctx context.Context) error

	// Input and Output are the pipeline's first and seventh stages: room
	// audio in, synthesized audio out.
	Input() pipeline.Processor
	Output() pipeline.Processor

	// SendData publishes a payload on the room's data channel.
	SendData(payload []byte) error

	SetListener(l EventListener)

	// Close leaves the room. Idempotent, safe to call when Connect failed.
	Close() error
}
