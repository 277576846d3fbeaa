// Package background runs fire-and-forget work that outlives the HTTP
// request which started it.
package background

import (
	"context"
	"log"
	"sync"
	"time"
)

// Spawner tracks goroutines spawned from request handlers so shutdown can
// wait for them. Task errors are logged and dropped; the caller already
// returned its response.
type Spawner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSpawner() *Spawner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Spawner{ctx: ctx, cancel: cancel}
}

// Go starts fn on its own goroutine. The context passed to fn is cancelled
// when the spawner shuts down. Panics are recovered so one bad session
// cannot take down the server.
func (s *Spawner) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("background: %s panicked: %v", name, r)
			}
		}()
		if err := fn(s.ctx); err != nil {
			log.Printf("background: %s: %v", name, err)
		}
	}()
}

// Shutdown cancels all task contexts and waits up to timeout for them to
// finish. Returns false if some tasks were still running at the deadline.
func (s *Spawner) Shutdown(timeout time.Duration) bool {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
