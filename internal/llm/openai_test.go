package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/voxgate/voxgate/internal/convo"
	"github.com/voxgate/voxgate/internal/pipeline"
)

type cannedCompleter struct {
	deltas []string
	err    error
	calls  int
	seen   []convo.Message
}

func (c *cannedCompleter) StreamCompletion(_ context.Context, messages []convo.Message, onDelta func(string) error) error {
	c.calls++
	c.seen = messages
	for _, d := range c.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return c.err
}

func collect() (pipeline.EmitFunc, *[]pipeline.Frame) {
	var frames []pipeline.Frame
	return func(f pipeline.Frame) { frames = append(frames, f) }, &frames
}

func TestRunFrameStreamsBracketedResponse(t *testing.T) {
	cc := &cannedCompleter{deltas: []string{"Hello", ", world"}}
	convoCtx := convo.NewContext("sys")
	convoCtx.Append(convo.RoleUser, "hi")
	stage := NewWithCompleter(cc, convoCtx)
	emit, frames := collect()

	if err := stage.Process(context.Background(), pipeline.LLMRunFrame{}, emit); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if cc.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", cc.calls)
	}
	if len(cc.seen) != 2 {
		t.Fatalf("completer saw %d messages, want 2", len(cc.seen))
	}

	want := []string{"response_start", "text_delta", "text_delta", "response_end"}
	if len(*frames) != len(want) {
		t.Fatalf("emitted %d frames, want %d: %+v", len(*frames), len(want), *frames)
	}
	for i, k := range want {
		if (*frames)[i].Kind() != k {
			t.Fatalf("frame %d kind = %q, want %q", i, (*frames)[i].Kind(), k)
		}
	}
}

func TestCompletionErrorStillClosesTurn(t *testing.T) {
	cc := &cannedCompleter{deltas: []string{"partial"}, err: errors.New("rate limited")}
	stage := NewWithCompleter(cc, convo.NewContext("sys"))
	emit, frames := collect()

	if err := stage.Process(context.Background(), pipeline.LLMRunFrame{}, emit); err != nil {
		t.Fatalf("Process() error = %v, want nil (logged, not fatal)", err)
	}
	last := (*frames)[len(*frames)-1]
	if _, ok := last.(pipeline.ResponseEndFrame); !ok {
		t.Fatalf("last frame = %T, want ResponseEndFrame", last)
	}
}

func TestOtherFramesPassThrough(t *testing.T) {
	cc := &cannedCompleter{}
	stage := NewWithCompleter(cc, convo.NewContext("sys"))
	emit, frames := collect()

	if err := stage.Process(context.Background(), pipeline.FinalTranscriptFrame{Text: "x"}, emit); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if cc.calls != 0 {
		t.Fatalf("completer called for a non-run frame")
	}
	if len(*frames) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(*frames))
	}
}
