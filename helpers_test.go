package batchload

import (
	"context"
	"slices"

	"golang.org/x/exp/maps"

	"go.mellwood.dev/batchload/parallel"
)

// serialRunner executes one batch at a time in sorted identifier order,
// giving engine tests deterministic outcomes and a call count to assert on.
type serialRunner[K comparable, V any] struct {
	collects int
	tasks    int
}

func (r *serialRunner[K, V]) Collect(ctx context.Context, batches map[string][]K, task parallel.Task[K, V]) []parallel.Outcome[K, V] {
	r.collects++
	outcomes := make([]parallel.Outcome[K, V], 0, len(batches))
	sorted := maps.Keys(batches)
	slices.Sort(sorted)
	for _, batch := range sorted {
		r.tasks++
		values, err := task(ctx, batch, batches[batch])
		outcomes = append(outcomes, parallel.Outcome[K, V]{Batch: batch, Values: values, Err: err})
	}
	return outcomes
}

func newSerialLoader[K comparable, V any](fn Func[K, V]) (*Loader[K, V], *serialRunner[K, V]) {
	runner := &serialRunner[K, V]{}
	return New(fn, Config[K, V]{Runner: runner}), runner
}

// echoKeys resolves every requested key to itself.
func echoKeys(_ context.Context, _ string, keys []int) (map[int]int, error) {
	values := make(map[int]int, len(keys))
	for _, key := range keys {
		values[key] = key
	}
	return values, nil
}
