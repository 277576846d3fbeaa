package rtvi

import (
	"context"
	"encoding/json"
	"log"

	"github.com/voxgate/voxgate/internal/pipeline"
)

// DataSender publishes one payload on the room data channel.
type DataSender func(payload []byte) error

// Processor is the realtime-event stage near the head of the pipeline. It
// forwards every frame unchanged; its only output is the bot_ready event it
// publishes when the run starts.
type Processor struct {
	send DataSender
}

func NewProcessor(send DataSender) *Processor {
	return &Processor{send: send}
}

func (p *Processor) Name() string { return "rtvi" }

func (p *Processor) Start(ctx context.Context, _ pipeline.EmitFunc) error {
	publish(p.send, BotReady{Type: TypeBotReady})
	<-ctx.Done()
	return nil
}

func (p *Processor) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	emit(f)
	return nil
}

// Observer watches the whole pipeline and mirrors conversation progress to
// the client: user transcripts, bot text, speech boundaries. Registered as a
// task observer so it sees frames from every stage, not just its own slot.
type Observer struct {
	send DataSender
}

func NewObserver(send DataSender) *Observer {
	return &Observer{send: send}
}

func (o *Observer) OnFrame(stage string, f pipeline.Frame) {
	switch t := f.(type) {
	case pipeline.InterimTranscriptFrame:
		if stage != "stt" {
			return
		}
		publish(o.send, UserTranscript{Type: TypeUserTranscript, Text: t.Text, Confidence: t.Confidence, TSMs: t.TimestampMS})
	case pipeline.FinalTranscriptFrame:
		if stage != "stt" {
			return
		}
		publish(o.send, UserTranscript{Type: TypeUserTranscript, Text: t.Text, Final: true, Confidence: t.Confidence, TSMs: t.TimestampMS})
	case pipeline.TextDeltaFrame:
		if stage != "llm" {
			return
		}
		publish(o.send, BotTranscript{Type: TypeBotTranscript, Text: t.Text})
	case pipeline.ResponseStartFrame:
		if stage != "llm" {
			return
		}
		publish(o.send, TurnMarker{Type: TypeBotStartedTurn})
	case pipeline.ResponseEndFrame:
		if stage != "llm" {
			return
		}
		publish(o.send, TurnMarker{Type: TypeBotEndedTurn})
	case pipeline.UserStartedSpeakingFrame:
		publish(o.send, UserSpeaking{Type: TypeUserSpeaking, Speaking: true})
	case pipeline.UserStoppedSpeakingFrame:
		publish(o.send, UserSpeaking{Type: TypeUserSpeaking, Speaking: false})
	}
}

func publish(send DataSender, msg any) {
	if send == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("rtvi: marshal %T: %v", msg, err)
		return
	}
	if err := send(payload); err != nil {
		// Data-channel loss is cosmetic; the conversation itself is audio.
		log.Printf("rtvi: publish %T: %v", msg, err)
	}
}
