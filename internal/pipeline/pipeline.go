package pipeline

import "context"

// EmitFunc passes a frame to the next stage.
type EmitFunc func(Frame)

// Processor is one pipeline stage. Process handles a single frame and may
// emit zero or more frames downstream. Frames a stage does not understand
// must be forwarded unchanged so control and context frames reach later
// stages.
type Processor interface {
	Name() string
	Process(ctx context.Context, f Frame, emit EmitFunc) error
}

// Starter is implemented by stages that own a long-running producer (a
// transport read loop, a provider websocket). Start blocks until ctx is done
// or the producer fails; emitted frames enter the pipeline at the stage's
// output.
type Starter interface {
	Start(ctx context.Context, emit EmitFunc) error
}

// Stopper is implemented by stages holding external resources. Stop is called
// once after the run ends, best effort.
type Stopper interface {
	Stop() error
}

// Pipeline is an ordered, immutable chain of stages.
type Pipeline struct {
	stages []Processor
}

func New(stages ...Processor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the chain in order.
func (p *Pipeline) Stages() []Processor {
	return p.stages
}
