package batchload

import (
	"context"
	"runtime"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"go.mellwood.dev/batchload/parallel"
)

// Func is the caller-supplied bulk fetch for a single batch identifier. It
// returns the values it resolved keyed by their request keys; keys it omits
// simply remain unresolved, which is not an error. A Func must be safe to
// call concurrently with calls for other batch identifiers, and must not
// retain the keys slice.
type Func[K comparable, V any] func(ctx context.Context, batch string, keys []K) (map[K]V, error)

// Runner executes one task per batch identifier and reports exactly one
// outcome per identifier, in unspecified order. [parallel.Group] is the
// production implementation; tests may substitute a deterministic one.
type Runner[K comparable, V any] interface {
	Collect(ctx context.Context, batches map[string][]K, task parallel.Task[K, V]) []parallel.Outcome[K, V]
}

// Config carries the construction options for a [Loader]. The zero value is
// valid: every field falls back to its documented default.
type Config[K comparable, V any] struct {
	// MaxConcurrency caps the number of batch fetches in flight during a
	// single Run. Defaults to twice runtime.GOMAXPROCS(0), resolved once at
	// construction.
	MaxConcurrency int

	// Timeout bounds the total wall-clock duration of a single Run.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// Logger receives debug events for dedup and dispatch decisions and warn
	// events for failed batches. The zero Logger discards everything.
	Logger zerolog.Logger

	// Runner overrides the facility that executes batch fetches. When nil,
	// the Loader uses a [parallel.Group] configured from MaxConcurrency and
	// Timeout; a non-nil Runner makes those two fields irrelevant.
	Runner Runner[K, V]
}

// Loader is the lookup engine. It tracks which (batch identifier, key) pairs
// are awaited, caches resolved results, and dispatches pending requests in
// bulk on [Loader.Run].
//
// A Loader is not safe for concurrent use. It is designed for a single owner
// that alternates between accumulating requests and running them; callers
// that share one across goroutines must synchronize externally.
type Loader[K comparable, V any] struct {
	fn     Func[K, V]
	runner Runner[K, V]
	log    zerolog.Logger

	pending map[string]mapset.Set[K]
	cache   map[string]map[K]Result[V]
}

// New creates a [Loader] that resolves keys through fn, applying the
// defaults documented on [Config] for any zero-valued field.
func New[K comparable, V any](fn Func[K, V], cfg Config[K, V]) *Loader[K, V] {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2 * runtime.GOMAXPROCS(0)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	runner := cfg.Runner
	if runner == nil {
		runner = parallel.NewGroup[K, V](cfg.MaxConcurrency, cfg.Timeout)
	}
	return &Loader[K, V]{
		fn:      fn,
		runner:  runner,
		log:     cfg.Logger,
		pending: make(map[string]mapset.Set[K]),
		cache:   make(map[string]map[K]Result[V]),
	}
}

// Load marks key as awaited under batch unless the cache already holds a
// result for it, including an error result. Load is idempotent: repeating it
// before a Run changes nothing after the first call.
func (l *Loader[K, V]) Load(batch string, key K) {
	if entries, ok := l.cache[batch]; ok {
		if _, ok := entries[key]; ok {
			cacheHits.Inc()
			return
		}
	}
	cacheMisses.Inc()
	l.pendingSet(batch).Add(key)
}

// LoadMany marks every key in keys as awaited under batch, skipping keys the
// cache already resolved. When the batch identifier is entirely unknown to
// the cache there is nothing to probe, and all keys pend directly.
func (l *Loader[K, V]) LoadMany(batch string, keys []K) {
	if len(keys) == 0 {
		return
	}
	entries, ok := l.cache[batch]
	if !ok {
		cacheMisses.Add(float64(len(keys)))
		l.pendingSet(batch).Append(keys...)
		return
	}
	toLoad := lo.Filter(keys, func(key K, _ int) bool {
		_, cached := entries[key]
		return !cached
	})
	cacheHits.Add(float64(len(keys) - len(toLoad)))
	if len(toLoad) == 0 {
		return
	}
	cacheMisses.Add(float64(len(toLoad)))
	l.pendingSet(batch).Append(toLoad...)
}

// Put writes a result for key directly into the cache, bypassing the pending
// queue and the fetch function entirely. It overwrites any existing result
// for the key. A nil result is a no-op.
//
// Put seeds the cache from sources outside the fetch path, such as a write
// that already knows the value it stored.
func (l *Loader[K, V]) Put(batch string, key K, res *Result[V]) {
	if res == nil {
		return
	}
	l.entries(batch)[key] = *res
}

// HasPending reports whether any batch identifier has keys awaiting a Run.
func (l *Loader[K, V]) HasPending() bool {
	return len(l.pending) > 0
}

// Stats conveys counts of the pending and cached state of a [Loader].
type Stats struct {
	// PendingBatches and PendingKeys count work awaiting the next Run.
	PendingBatches int
	PendingKeys    int
	// CachedBatches and CachedKeys count resolved results, including
	// error results.
	CachedBatches int
	CachedKeys    int
}

// Stats returns the [Stats] for the loader as of the time of the call.
func (l *Loader[K, V]) Stats() Stats {
	var s Stats
	s.PendingBatches = len(l.pending)
	for _, keys := range l.pending {
		s.PendingKeys += keys.Cardinality()
	}
	s.CachedBatches = len(l.cache)
	for _, entries := range l.cache {
		s.CachedKeys += len(entries)
	}
	return s
}

// pendingSet returns the pending key set for batch, creating it on demand.
// Callers must add at least one key, so that pending never holds empty sets.
func (l *Loader[K, V]) pendingSet(batch string) mapset.Set[K] {
	if keys, ok := l.pending[batch]; ok {
		return keys
	}
	keys := mapset.NewThreadUnsafeSet[K]()
	l.pending[batch] = keys
	return keys
}

// entries returns the cache map for batch, creating it on demand. A batch
// with an entries map counts as known to the cache even while the map is
// empty.
func (l *Loader[K, V]) entries(batch string) map[K]Result[V] {
	if entries, ok := l.cache[batch]; ok {
		return entries
	}
	entries := make(map[K]Result[V])
	l.cache[batch] = entries
	return entries
}
