package batchload

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"go.mellwood.dev/batchload/parallel"
)

// Run drains every pending (batch identifier, key set) pair accumulated so
// far, dispatches one fetch per batch identifier through the runner, and
// merges the outcomes into the cache. It blocks until the runner returns.
//
// A batch whose fetch fails caches that failure under every key requested
// for it; Run itself never fails. Calling Run with nothing pending is a
// no-op. After Run returns, every previously pending batch identifier is
// known to the cache, possibly with some of its keys still unresolved.
func (l *Loader[K, V]) Run(ctx context.Context) {
	if len(l.pending) == 0 {
		return
	}
	start := time.Now()

	batches := make(map[string][]K, len(l.pending))
	for batch, keys := range l.pending {
		batches[batch] = keys.ToSlice()
	}
	l.pending = make(map[string]mapset.Set[K])

	runsTotal.Inc()
	batchesDispatched.Add(float64(len(batches)))
	l.log.Debug().
		Strs("batches", lo.Keys(batches)).
		Int("keys", lo.SumBy(lo.Values(batches), func(keys []K) int { return len(keys) })).
		Msg("Dispatching pending batches")

	for _, out := range l.runner.Collect(ctx, batches, parallel.Task[K, V](l.fn)) {
		l.merge(out, batches[out.Batch])
	}

	runDuration.Observe(time.Since(start).Seconds())
}

// merge folds one batch outcome into the cache: a union at the batch level
// and an overwrite at the key level. Failures broadcast to every key that was
// requested in the failed fetch.
func (l *Loader[K, V]) merge(out parallel.Outcome[K, V], requested []K) {
	entries := l.entries(out.Batch)

	if out.Err != nil {
		batchesFailed.Inc()
		l.log.Warn().
			Str("batch", out.Batch).
			Int("keys", len(requested)).
			Err(out.Err).
			Msg("Batch load failed")
		failure := Result[V]{err: &LoadError{Batch: out.Batch, Err: out.Err}}
		for _, key := range requested {
			entries[key] = failure
		}
		return
	}

	for key, value := range out.Values {
		entries[key] = Result[V]{value: value}
	}
	l.log.Debug().
		Str("batch", out.Batch).
		Int("requested", len(requested)).
		Int("resolved", len(out.Values)).
		Msg("Batch load merged")
}
