package convo

import (
	"context"
	"strings"

	"github.com/voxgate/voxgate/internal/pipeline"
)

// AggregatorPair produces the two pipeline stages that write the
// conversation: the user side commits final transcripts and triggers the
// language model, the assistant side commits what the model said once its
// response ends.
type AggregatorPair struct {
	ctx *Context
}

func NewAggregatorPair(ctx *Context) *AggregatorPair {
	return &AggregatorPair{ctx: ctx}
}

func (p *AggregatorPair) User() pipeline.Processor {
	return &userAggregator{ctx: p.ctx}
}

func (p *AggregatorPair) Assistant() pipeline.Processor {
	return &assistantAggregator{ctx: p.ctx}
}

type userAggregator struct {
	ctx *Context
}

func (a *userAggregator) Name() string { return "context_user" }

func (a *userAggregator) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	if t, ok := f.(pipeline.FinalTranscriptFrame); ok {
		text := strings.TrimSpace(t.Text)
		if text != "" {
			a.ctx.Append(RoleUser, text)
			emit(f)
			emit(pipeline.LLMRunFrame{})
			return nil
		}
	}
	emit(f)
	return nil
}

type assistantAggregator struct {
	ctx    *Context
	buf    strings.Builder
	inTurn bool
}

func (a *assistantAggregator) Name() string { return "context_assistant" }

func (a *assistantAggregator) Process(_ context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	switch t := f.(type) {
	case pipeline.ResponseStartFrame:
		a.inTurn = true
		a.buf.Reset()
	case pipeline.TextDeltaFrame:
		if a.inTurn {
			a.buf.WriteString(t.Text)
		}
	case pipeline.ResponseEndFrame:
		if a.inTurn {
			text := strings.TrimSpace(a.buf.String())
			if text != "" {
				a.ctx.Append(RoleAssistant, text)
			}
			a.buf.Reset()
			a.inTurn = false
		}
	}
	emit(f)
	return nil
}
