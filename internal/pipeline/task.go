package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const frameBuffer = 64

// Params configures one pipeline run.
type Params struct {
	EnableMetrics bool
}

// Observer sees every frame as it leaves a stage (or the external queue,
// labeled "source"). Observers must not block.
type Observer interface {
	OnFrame(stage string, f Frame)
}

var (
	ErrQueueFull = errors.New("pipeline queue is full")
	ErrTaskDone  = errors.New("pipeline task already finished")
)

// Task binds a pipeline to a frame queue and a cooperative cancel. Frames
// queued from outside enter ahead of the first stage.
type Task struct {
	pipeline  *Pipeline
	params    Params
	observers []Observer

	source chan Frame
	done   chan struct{}

	cancelOnce sync.Once
	cancelled  atomic.Bool

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

func NewTask(p *Pipeline, params Params, observers ...Observer) *Task {
	return &Task{
		pipeline:  p,
		params:    params,
		observers: observers,
		source:    make(chan Frame, frameBuffer),
		done:      make(chan struct{}),
	}
}

// QueueFrame injects a frame at the head of the pipeline without blocking.
func (t *Task) QueueFrame(f Frame) error {
	select {
	case <-t.done:
		return ErrTaskDone
	default:
	}
	t.notify("source", f)
	select {
	case t.source <- f:
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel requests a cooperative stop: a CancelFrame is offered to the queue
// for stages that want to observe it, then the run context is cancelled so
// the task terminates even if the queue is saturated. Idempotent.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() {
		t.cancelled.Store(true)
		select {
		case t.source <- CancelFrame{}:
		default:
		}
		t.mu.Lock()
		cancel := t.cancelFn
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// Cancelled reports whether Cancel has been requested.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed when Run returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Run executes the pipeline until an End/Cancel frame reaches the sink, the
// context is cancelled, or a stage fails. It blocks the caller; cancellation
// always yields a nil error.
func (t *Task) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.mu.Lock()
	t.cancelFn = cancel
	t.mu.Unlock()
	if t.cancelled.Load() {
		cancel()
	}
	defer close(t.done)

	g, gctx := errgroup.WithContext(runCtx)

	upstream := (<-chan Frame)(t.source)
	for _, stage := range t.pipeline.Stages() {
		stage := stage
		in := upstream
		out := make(chan Frame, frameBuffer)
		emit := func(f Frame) {
			t.notify(stage.Name(), f)
			select {
			case out <- f:
			case <-gctx.Done():
			}
		}

		if s, ok := stage.(Starter); ok {
			g.Go(func() error {
				if err := s.Start(gctx, emit); err != nil && gctx.Err() == nil {
					return fmt.Errorf("%s: %w", stage.Name(), err)
				}
				return nil
			})
		}

		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case f := <-in:
					if isTerminal(f) {
						emit(f)
						return nil
					}
					if err := stage.Process(gctx, f, emit); err != nil {
						return fmt.Errorf("%s: %w", stage.Name(), err)
					}
				}
			}
		})
		upstream = out
	}

	// Sink: a terminal frame surviving the whole chain ends the run.
	sinkIn := upstream
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case f := <-sinkIn:
				if isTerminal(f) {
					cancel()
					return nil
				}
			}
		}
	})

	err := g.Wait()
	t.stopStages()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (t *Task) stopStages() {
	// Stop in reverse order so downstream resources outlive their feeders.
	stages := t.pipeline.Stages()
	for i := len(stages) - 1; i >= 0; i-- {
		s, ok := stages[i].(Stopper)
		if !ok {
			continue
		}
		if err := s.Stop(); err != nil {
			log.Printf("pipeline: stopping %s: %v", stages[i].Name(), err)
		}
	}
}

func (t *Task) notify(stage string, f Frame) {
	for _, o := range t.observers {
		o.OnFrame(stage, f)
	}
}
