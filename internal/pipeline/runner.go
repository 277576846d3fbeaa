package pipeline

import (
	"context"
	"log"
	"time"
)

// Runner drives one task to completion and logs the outcome. It exists so
// session code holds a handle it can reason about rather than a bare
// goroutine.
type Runner struct {
	name string
}

func NewRunner(name string) *Runner {
	if name == "" {
		name = "pipeline"
	}
	return &Runner{name: name}
}

// Run blocks until the task reaches a terminal state. Cancellation is a
// normal outcome and returns nil.
func (r *Runner) Run(ctx context.Context, t *Task) error {
	started := time.Now()
	log.Printf("%s: runner starting", r.name)
	err := t.Run(ctx)
	if err != nil {
		log.Printf("%s: runner finished with error after %s: %v", r.name, time.Since(started).Round(time.Millisecond), err)
		return err
	}
	log.Printf("%s: runner finished after %s", r.name, time.Since(started).Round(time.Millisecond))
	return nil
}
