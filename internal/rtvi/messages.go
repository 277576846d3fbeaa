// Package rtvi emits realtime voice-interaction events to the client over
// the room's data channel: transcripts as they form and markers for the
// agent's speech, typed as JSON envelopes.
package rtvi

// MessageType identifies data-channel payload variants.
type MessageType string

const (
	TypeBotReady       MessageType = "bot_ready"
	TypeUserTranscript MessageType = "user_transcript"
	TypeBotTranscript  MessageType = "bot_transcript"
	TypeBotStartedTurn MessageType = "bot_started_turn"
	TypeBotEndedTurn   MessageType = "bot_ended_turn"
	TypeUserSpeaking   MessageType = "user_speaking"
	TypeErrorEvent     MessageType = "error"
)

type BotReady struct {
	Type MessageType `json:"type"`
}

type UserTranscript struct {
	Type       MessageType `json:"type"`
	Text       string      `json:"text"`
	Final      bool        `json:"final"`
	Confidence float64     `json:"confidence,omitempty"`
	TSMs       int64       `json:"ts_ms,omitempty"`
}

type BotTranscript struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type TurnMarker struct {
	Type MessageType `json:"type"`
}

type UserSpeaking struct {
	Type     MessageType `json:"type"`
	Speaking bool        `json:"speaking"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Detail string      `json:"detail"`
}
