package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrLoopRunning     = errors.New("host: loop already running")
	ErrInvalidInterval = errors.New("host: invalid turn interval")
)

// Hook runs once per cooperative turn, on the loop goroutine.
type Hook func()

// Loop is the host's cooperative execution slot. One goroutine runs turns
// on a fixed interval; everything that mutates the document runs inside a
// turn hook. Hooks must not block.
type Loop struct {
	interval time.Duration

	mu      sync.Mutex
	hooks   []Hook
	running atomic.Bool
	turns   atomic.Uint64
}

// NewLoop creates a loop with the given turn interval.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{interval: interval}
}

// OnTurn registers a hook invoked once per turn, in registration order.
func (l *Loop) OnTurn(hook Hook) {
	if hook == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Turns reports how many turns have completed.
func (l *Loop) Turns() uint64 {
	return l.turns.Load()
}

// RunOnce executes a single turn synchronously. Tests drive the loop with
// this instead of waiting on the ticker.
func (l *Loop) RunOnce() {
	l.mu.Lock()
	hooks := make([]Hook, len(l.hooks))
	copy(hooks, l.hooks)
	l.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	l.turns.Add(1)
}

// Run drives turns until the context is canceled. Only one Run may be
// active per loop.
func (l *Loop) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return ErrInvalidInterval
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	log.Debug().Dur("interval", l.interval).Msg("host loop started")
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Uint64("turns", l.turns.Load()).Msg("host loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce()
		}
	}
}
