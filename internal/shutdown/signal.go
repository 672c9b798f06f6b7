// Package shutdown holds the session-wide exit latch and the watcher that trips it.
package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is a monotonic exit latch shared by every session component.
// Once requested it stays requested; there is no reset.
type Signal struct {
	requested atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// NewSignal returns an unset latch.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// RequestExit sets the latch. Safe to call repeatedly from any goroutine.
func (s *Signal) RequestExit() {
	s.once.Do(func() {
		s.requested.Store(true)
		close(s.done)
	})
}

// IsExitRequested reports whether the latch has been set.
func (s *Signal) IsExitRequested() bool {
	return s.requested.Load()
}

// Done is closed when exit is requested.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Context derives a context that is cancelled when exit is requested or parent ends.
func (s *Signal) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Bind requests exit when ctx ends, mirroring process interrupts into the latch.
func (s *Signal) Bind(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.RequestExit()
		case <-s.done:
		}
	}()
}
