package bridge

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/formlab/modelbridge/internal/registry"
	"github.com/formlab/modelbridge/internal/testutil/testlog"
)

func orderRegistry(t *testing.T, got *[]string) *registry.Registry {
	t.Helper()
	r := registry.NewRegistry()
	r.MustRegister(registry.Entry{
		Name:        "record",
		Description: "records its tag in arrival order",
		Accepts: []registry.ParamSpec{
			{Name: "tag", Kind: registry.KindString, Required: true},
		},
		Handler: func(params map[string]any) (any, error) {
			tag := params["tag"].(string)
			*got = append(*got, tag)
			return tag, nil
		},
	})
	return r
}

func TestSchedulerFIFOAcrossGoroutines(t *testing.T) {
	testlog.Start(t)
	var order []string
	sched := NewScheduler(orderRegistry(t, &order))

	// Three producers enqueue in a controlled sequence; completion order
	// must match arrival order regardless of which goroutine produced
	// which call.
	tags := []string{"c1", "c2", "c3"}
	calls := make([]*PendingCall, len(tags))
	var wg sync.WaitGroup
	start := make([]chan struct{}, len(tags))
	enqueued := make(chan struct{})
	for i := range tags {
		start[i] = make(chan struct{})
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start[i]
			calls[i] = sched.Enqueue(protocol.CommandEnv{
				Name:   "record",
				Params: map[string]any{"tag": tags[i]},
			})
			enqueued <- struct{}{}
		}(i)
	}
	for i := range tags {
		close(start[i])
		<-enqueued
	}
	wg.Wait()

	if depth := sched.Depth(); depth != 3 {
		t.Fatalf("expected 3 queued calls, got %d", depth)
	}
	if n := sched.Tick(10); n != 3 {
		t.Fatalf("expected 3 dispatched, got %d", n)
	}
	for i, call := range calls {
		resp := <-call.Done()
		if resp.Result != tags[i] {
			t.Fatalf("call %d got %v", i, resp.Result)
		}
	}
	if fmt.Sprint(order) != fmt.Sprint(tags) {
		t.Fatalf("execution order %v, want %v", order, tags)
	}
}

func TestTickEmptyQueueDoesNotBlock(t *testing.T) {
	testlog.Start(t)
	sched := NewScheduler(registry.NewRegistry())

	done := make(chan int, 1)
	go func() {
		done <- sched.Tick(DefaultTickBatch)
	}()
	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("empty tick dispatched %d", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("tick blocked on empty queue")
	}
}

func TestTickHonorsBatchBound(t *testing.T) {
	testlog.Start(t)
	var order []string
	sched := NewScheduler(orderRegistry(t, &order))

	for i := 0; i < 5; i++ {
		sched.Enqueue(protocol.CommandEnv{
			Name:   "record",
			Params: map[string]any{"tag": fmt.Sprintf("t%d", i)},
		})
	}

	if n := sched.Tick(2); n != 2 {
		t.Fatalf("first tick dispatched %d, want 2", n)
	}
	if depth := sched.Depth(); depth != 3 {
		t.Fatalf("queue depth %d after bounded tick, want 3", depth)
	}
	if n := sched.Tick(10); n != 3 {
		t.Fatalf("second tick dispatched %d, want 3", n)
	}
	if fmt.Sprint(order) != "[t0 t1 t2 t3 t4]" {
		t.Fatalf("order broken across ticks: %v", order)
	}
}

func TestAbandonedCallStillCompletes(t *testing.T) {
	testlog.Start(t)
	var order []string
	sched := NewScheduler(orderRegistry(t, &order))

	// The first caller walks away without reading Done. The buffered
	// completion slot means the tick never blocks and later calls run.
	sched.Enqueue(protocol.CommandEnv{Name: "record", Params: map[string]any{"tag": "abandoned"}})
	kept := sched.Enqueue(protocol.CommandEnv{Name: "record", Params: map[string]any{"tag": "kept"}})

	if n := sched.Tick(10); n != 2 {
		t.Fatalf("dispatched %d, want 2", n)
	}
	resp := <-kept.Done()
	if resp.Result != "kept" {
		t.Fatalf("kept call got %v", resp.Result)
	}
	if len(order) != 2 || order[0] != "abandoned" {
		t.Fatalf("abandoned call did not execute: %v", order)
	}
	if depth := sched.Depth(); depth != 0 {
		t.Fatalf("queue depth %d after drain, want 0", depth)
	}
}
