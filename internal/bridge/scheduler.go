package bridge

import (
	"sync"
	"time"

	"github.com/formlab/modelbridge/internal/observability"
	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/formlab/modelbridge/internal/registry"
)

// DefaultTickBatch bounds handler invocations per host turn so the bridge
// cannot starve the host's own work.
const DefaultTickBatch = 8

// PendingCall is one decoded command waiting for a host turn. Created by a
// transport goroutine, completed exactly once by the scheduler. If the
// owning connection is gone by completion time, the response is simply
// never read.
type PendingCall struct {
	Env        protocol.CommandEnv
	EnqueuedAt time.Time

	done chan protocol.ResponseEnv
}

// Done returns the completion slot. It yields exactly one response.
func (c *PendingCall) Done() <-chan protocol.ResponseEnv {
	return c.done
}

// Scheduler is the FIFO hand-off between transport goroutines and the host
// turn. Enqueue is safe from any goroutine; Tick must only run on the host
// turn.
type Scheduler struct {
	registry *registry.Registry

	mu    sync.Mutex
	queue []*PendingCall
}

// NewScheduler creates a scheduler dispatching into the given registry.
func NewScheduler(reg *registry.Registry) *Scheduler {
	return &Scheduler{registry: reg}
}

// Enqueue appends a call to the queue and returns its handle.
func (s *Scheduler) Enqueue(env protocol.CommandEnv) *PendingCall {
	call := &PendingCall{
		Env:        env,
		EnqueuedAt: time.Now(),
		done:       make(chan protocol.ResponseEnv, 1),
	}
	s.mu.Lock()
	s.queue = append(s.queue, call)
	// Gauge set under the lock so concurrent enqueues cannot publish
	// depths out of order.
	observability.SetQueueDepth(len(s.queue))
	s.mu.Unlock()

	return call
}

// Depth reports the number of queued calls.
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Tick drains up to batch calls in FIFO order, invoking each handler
// synchronously on the caller's goroutine. It returns the number of calls
// dispatched and never blocks when the queue is empty.
func (s *Scheduler) Tick(batch int) int {
	if batch <= 0 {
		batch = DefaultTickBatch
	}

	dispatched := 0
	for dispatched < batch {
		call := s.pop()
		if call == nil {
			break
		}
		start := time.Now()
		resp := s.registry.Dispatch(call.Env)
		observability.RecordCommand(call.Env.Name, resp.Status, time.Since(start))
		call.done <- resp
		dispatched++
	}
	return dispatched
}

func (s *Scheduler) pop() *PendingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		observability.SetQueueDepth(0)
		return nil
	}
	call := s.queue[0]
	s.queue = s.queue[1:]
	observability.SetQueueDepth(len(s.queue))
	return call
}
