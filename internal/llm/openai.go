// Package llm provides the language-model pipeline stage, backed by OpenAI
// chat completions.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/voxgate/voxgate/internal/convo"
	"github.com/voxgate/voxgate/internal/pipeline"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint; tests point it at a local server.
	BaseURL string
}

// Completer is the slice of the OpenAI surface this stage needs; tests
// substitute a canned implementation.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []convo.Message, onDelta func(string) error) error
}

// OpenAI is a pipeline stage: an LLMRunFrame triggers one streamed completion
// over the current conversation context.
type OpenAI struct {
	ctx       *convo.Context
	completer Completer
}

func NewOpenAI(cfg Config, convoCtx *convo.Context) *OpenAI {
	return &OpenAI{ctx: convoCtx, completer: newClient(cfg)}
}

// NewWithCompleter wires a custom completer; used by tests and local models.
func NewWithCompleter(c Completer, convoCtx *convo.Context) *OpenAI {
	return &OpenAI{ctx: convoCtx, completer: c}
}

func (o *OpenAI) Name() string { return "llm" }

func (o *OpenAI) Process(ctx context.Context, f pipeline.Frame, emit pipeline.EmitFunc) error {
	if _, ok := f.(pipeline.LLMRunFrame); !ok {
		emit(f)
		return nil
	}

	emit(pipeline.ResponseStartFrame{})
	err := o.completer.StreamCompletion(ctx, o.ctx.Snapshot(), func(delta string) error {
		if delta != "" {
			emit(pipeline.TextDeltaFrame{Text: delta})
		}
		return nil
	})
	emit(pipeline.ResponseEndFrame{})
	if err != nil {
		// The turn is lost but the session survives; the user can speak
		// again and trigger a fresh completion.
		log.Printf("llm: completion failed: %v", err)
	}
	return nil
}

type client struct {
	api   openai.Client
	model string
}

func newClient(cfg Config) *client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &client{api: openai.NewClient(opts...), model: model}
}

func (c *client) StreamCompletion(ctx context.Context, messages []convo.Message, onDelta func(string) error) error {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toParams(messages),
	}

	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat completion stream: %w", err)
	}
	return nil
}

func toParams(messages []convo.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case convo.RoleSystem:
			out = append(out, openai.SystemMessage(content))
		case convo.RoleAssistant:
			out = append(out, openai.AssistantMessage(content))
		default:
			out = append(out, openai.UserMessage(content))
		}
	}
	return out
}
