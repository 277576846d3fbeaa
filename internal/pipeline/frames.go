// Package pipeline implements the frame-based processing chain one voice
// conversation flows through: ordered stages connected by channels, a task
// that owns a run, and a runner that drives it to a terminal state.
package pipeline

// Frame is a unit of data or control flowing through the pipeline. Kind
// returns a stable label used for metrics and logging.
type Frame interface {
	Kind() string
}

// EndFrame ends the run gracefully once it reaches the sink.
type EndFrame struct{}

func (EndFrame) Kind() string { return "end" }

// CancelFrame aborts the run; stages forward it without processing.
type CancelFrame struct{}

func (CancelFrame) Kind() string { return "cancel" }

// LLMRunFrame asks the language-model stage to generate a response from the
// current conversation context. Queued externally to make the agent speak
// first.
type LLMRunFrame struct{}

func (LLMRunFrame) Kind() string { return "llm_run" }

// AudioInputFrame carries PCM16LE mono audio captured from the room.
type AudioInputFrame struct {
	PCM        []byte
	SampleRate int
}

func (AudioInputFrame) Kind() string { return "audio_in" }

// AudioOutputFrame carries synthesized PCM16LE mono audio headed for the room.
type AudioOutputFrame struct {
	PCM        []byte
	SampleRate int
}

func (AudioOutputFrame) Kind() string { return "audio_out" }

// UserStartedSpeakingFrame and UserStoppedSpeakingFrame mark voice-activity
// boundaries detected on the inbound audio.
type UserStartedSpeakingFrame struct{}

func (UserStartedSpeakingFrame) Kind() string { return "user_started_speaking" }

type UserStoppedSpeakingFrame struct{}

func (UserStoppedSpeakingFrame) Kind() string { return "user_stopped_speaking" }

// InterimTranscriptFrame is a partial speech-recognition result that may still
// change.
type InterimTranscriptFrame struct {
	Text        string
	Confidence  float64
	TimestampMS int64
}

func (InterimTranscriptFrame) Kind() string { return "interim_transcript" }

// FinalTranscriptFrame is a committed speech-recognition result.
type FinalTranscriptFrame struct {
	Text        string
	Confidence  float64
	TimestampMS int64
}

func (FinalTranscriptFrame) Kind() string { return "final_transcript" }

// ResponseStartFrame and ResponseEndFrame bracket one language-model
// response; the assistant context aggregator commits the buffered text on the
// end marker.
type ResponseStartFrame struct{}

func (ResponseStartFrame) Kind() string { return "response_start" }

type ResponseEndFrame struct{}

func (ResponseEndFrame) Kind() string { return "response_end" }

// TextDeltaFrame is a streamed chunk of language-model output.
type TextDeltaFrame struct {
	Text string
}

func (TextDeltaFrame) Kind() string { return "text_delta" }

func isTerminal(f Frame) bool {
	switch f.(type) {
	case EndFrame, CancelFrame:
		return true
	default:
		return false
	}
}
