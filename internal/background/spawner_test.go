package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRunsTask(t *testing.T) {
	s := NewSpawner()
	ran := make(chan struct{})
	s.Go("test", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("task never ran")
	}
	if !s.Shutdown(time.Second) {
		t.Fatalf("Shutdown timed out")
	}
}

func TestShutdownCancelsTaskContexts(t *testing.T) {
	s := NewSpawner()
	var cancelled atomic.Bool
	started := make(chan struct{})
	s.Go("test", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	<-started
	if !s.Shutdown(time.Second) {
		t.Fatalf("Shutdown timed out")
	}
	if !cancelled.Load() {
		t.Fatalf("task context never cancelled")
	}
}

func TestShutdownTimesOutOnStuckTask(t *testing.T) {
	s := NewSpawner()
	release := make(chan struct{})
	s.Go("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	if s.Shutdown(20 * time.Millisecond) {
		t.Fatalf("Shutdown returned true with a running task")
	}
	close(release)
}

func TestPanicIsRecovered(t *testing.T) {
	s := NewSpawner()
	s.Go("panics", func(ctx context.Context) error {
		panic("boom")
	})
	s.Go("errors", func(ctx context.Context) error {
		return errors.New("logged and dropped")
	})

	// Both tasks must count as finished despite the panic and the error.
	if !s.Shutdown(time.Second) {
		t.Fatalf("Shutdown timed out")
	}
}
