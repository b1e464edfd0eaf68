// Package parallel executes one unit of work per batch identifier across a
// bounded number of goroutines.
//
// A [Group] accepts a mapping from batch identifiers to key slices and runs a
// [Task] once for each identifier, reporting exactly one [Outcome] per
// identifier regardless of how the task exits. Groups bound both the number
// of tasks in flight and the total wall-clock time of a single collection.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gammazero/deque"
)

// ErrTaskGoexit is the outcome error for a task that called [runtime.Goexit]
// instead of returning.
var ErrTaskGoexit = errors.New("parallel: task called runtime.Goexit")

// Task is the unit-of-work function a [Group] runs once per batch identifier.
// It receives the identifier along with every key requested under it, and
// returns the values it resolved keyed by their request keys. A task must be
// safe to call concurrently with tasks for other batch identifiers.
type Task[K comparable, V any] func(ctx context.Context, batch string, keys []K) (map[K]V, error)

// Outcome reports the result of the task run for a single batch identifier.
// Values and Err follow the usual convention: Err non-nil means the whole
// batch failed and Values is nil.
type Outcome[K comparable, V any] struct {
	Batch  string
	Values map[K]V
	Err    error
}

// PanicError is the outcome error for a task that panicked rather than
// returning. The group confines the panic to the task's goroutine so that a
// misbehaving task cannot crash the caller.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("parallel: task panicked: %v", e.Value)
}

// Group runs tasks for distinct batch identifiers in parallel, with at most a
// fixed number in flight at once and a timeout bounding each collection.
//
// A Group holds no state between calls; a single Group may serve any number
// of [Group.Collect] calls, including concurrent ones.
type Group[K comparable, V any] struct {
	workers int
	timeout time.Duration
}

// NewGroup creates a [Group] that runs up to workers tasks concurrently,
// or one task per batch identifier if workers <= 0. If timeout > 0, each
// [Group.Collect] call is bounded by that duration in total.
func NewGroup[K comparable, V any](workers int, timeout time.Duration) *Group[K, V] {
	return &Group[K, V]{workers: workers, timeout: timeout}
}

// Collect runs the task once per entry in batches and returns one [Outcome]
// per batch identifier, in unspecified order.
//
// Tasks receive a context derived from ctx and bounded by the group's
// timeout. When that context ends before every task has finished, Collect
// returns early: finished tasks report their own results, and every other
// batch identifier reports the context's error. Task goroutines still in
// flight at that point are abandoned; they observe the expired context and
// their eventual results are discarded.
func (g *Group[K, V]) Collect(ctx context.Context, batches map[string][]K, task Task[K, V]) []Outcome[K, V] {
	if len(batches) == 0 {
		return nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	pending := new(deque.Deque[string])
	for batch := range batches {
		pending.PushBack(batch)
	}

	grants := len(batches)
	if g.workers > 0 {
		grants = min(g.workers, grants)
	}

	// Workers share the queue of unclaimed batch identifiers through a
	// 1-buffered channel: holding the deque confers the exclusive right to pop
	// work from it. The results buffer holds every possible outcome, so workers
	// never block sending even after a timeout abandons the collection.
	results := make(chan Outcome[K, V], len(batches))
	state := make(chan *deque.Deque[string], 1)
	state <- pending
	for i := 0; i < grants; i++ {
		go g.work(ctx, state, batches, task, results)
	}

	outcomes := make([]Outcome[K, V], 0, len(batches))
	reported := make(map[string]bool, len(batches))
	for range batches {
		select {
		case out := <-results:
			outcomes = append(outcomes, out)
			reported[out.Batch] = true
		case <-ctx.Done():
			for batch := range batches {
				if !reported[batch] {
					outcomes = append(outcomes, Outcome[K, V]{Batch: batch, Err: ctx.Err()})
				}
			}
			return outcomes
		}
	}
	return outcomes
}

// work pops batch identifiers and runs their tasks until the queue is empty
// or the context ends. A task that calls runtime.Goexit kills its worker
// goroutine after the deferred replacement below spawns a successor, so the
// rest of the queue still drains.
func (g *Group[K, V]) work(ctx context.Context, state chan *deque.Deque[string], batches map[string][]K, task Task[K, V], results chan<- Outcome[K, V]) {
	finished := false
	defer func() {
		if !finished {
			go g.work(ctx, state, batches, task, results)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			finished = true
			return
		default:
		}

		pending := <-state
		if pending.Len() == 0 {
			state <- pending
			finished = true
			return
		}
		batch := pending.PopFront()
		state <- pending

		runTask(ctx, batch, batches[batch], task, results)
	}
}

// runTask invokes the task and delivers its outcome, capturing a panic as a
// [PanicError] and a runtime.Goexit as [ErrTaskGoexit]. Delivery happens in
// the deferred function so that even an abnormal exit reports its batch.
func runTask[K comparable, V any](ctx context.Context, batch string, keys []K, task Task[K, V], results chan<- Outcome[K, V]) {
	out := Outcome[K, V]{Batch: batch}
	returned := false
	defer func() {
		if !returned {
			// Since Go 1.21 a recovered panic value is never nil, even for
			// panic(nil), so nil here means the task called runtime.Goexit.
			if v := recover(); v != nil {
				out.Values, out.Err = nil, &PanicError{Value: v}
			} else {
				out.Values, out.Err = nil, ErrTaskGoexit
			}
		}
		results <- out
	}()
	out.Values, out.Err = task(ctx, batch, keys)
	returned = true
}
