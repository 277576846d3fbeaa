package convo

import (
	"context"
	"testing"

	"github.com/voxgate/voxgate/internal/pipeline"
)

func collectEmits() (pipeline.EmitFunc, *[]pipeline.Frame) {
	var frames []pipeline.Frame
	return func(f pipeline.Frame) { frames = append(frames, f) }, &frames
}

func TestContextSeedsSystemMessage(t *testing.T) {
	c := NewContext("be nice")
	msgs := c.Snapshot()
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "be nice" {
		t.Fatalf("seed message = %+v", msgs[0])
	}
}

func TestUserAggregatorCommitsAndTriggersRun(t *testing.T) {
	c := NewContext("sys")
	agg := NewAggregatorPair(c).User()
	emit, frames := collectEmits()

	err := agg.Process(context.Background(), pipeline.FinalTranscriptFrame{Text: " hello there "}, emit)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	msgs := c.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "hello there" {
		t.Fatalf("user message = %+v", msgs[1])
	}

	if len(*frames) != 2 {
		t.Fatalf("emitted %d frames, want transcript + llm run", len(*frames))
	}
	if _, ok := (*frames)[1].(pipeline.LLMRunFrame); !ok {
		t.Fatalf("second emit = %T, want LLMRunFrame", (*frames)[1])
	}
}

func TestUserAggregatorIgnoresEmptyTranscript(t *testing.T) {
	c := NewContext("sys")
	agg := NewAggregatorPair(c).User()
	emit, frames := collectEmits()

	if err := agg.Process(context.Background(), pipeline.FinalTranscriptFrame{Text: "   "}, emit); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("context grew on empty transcript")
	}
	if len(*frames) != 1 {
		t.Fatalf("emitted %d frames, want forward only", len(*frames))
	}
}

func TestAssistantAggregatorCommitsOnResponseEnd(t *testing.T) {
	c := NewContext("sys")
	agg := NewAggregatorPair(c).Assistant()
	emit, _ := collectEmits()

	seq := []pipeline.Frame{
		pipeline.ResponseStartFrame{},
		pipeline.TextDeltaFrame{Text: "Hi, "},
		pipeline.TextDeltaFrame{Text: "I am the agent."},
		pipeline.ResponseEndFrame{},
	}
	for _, f := range seq {
		if err := agg.Process(context.Background(), f, emit); err != nil {
			t.Fatalf("Process(%T) error = %v", f, err)
		}
	}

	msgs := c.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "Hi, I am the agent." {
		t.Fatalf("assistant message = %+v", msgs[1])
	}
}

func TestAssistantAggregatorIgnoresTextOutsideTurn(t *testing.T) {
	c := NewContext("sys")
	agg := NewAggregatorPair(c).Assistant()
	emit, _ := collectEmits()

	_ = agg.Process(context.Background(), pipeline.TextDeltaFrame{Text: "stray"}, emit)
	_ = agg.Process(context.Background(), pipeline.ResponseEndFrame{}, emit)

	if c.Len() != 1 {
		t.Fatalf("context grew from stray deltas: %+v", c.Snapshot())
	}
}
