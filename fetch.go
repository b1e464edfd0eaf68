package batchload

// Fetch reads the cached result for key under batch. It returns the resolved
// value, the cached load failure, a [NotFoundError] when the batch is known
// but the key has no result, or an [UnknownBatchError] when the batch
// identifier has never produced a cache entry at all. The three failure
// shapes stay distinguishable through errors.As.
func (l *Loader[K, V]) Fetch(batch string, key K) (V, error) {
	var zero V
	entries, ok := l.cache[batch]
	if !ok {
		return zero, &UnknownBatchError{Batch: batch}
	}
	res, ok := entries[key]
	if !ok {
		return zero, &NotFoundError[K]{Batch: batch, Key: key}
	}
	return res.Get()
}

// FetchMany reads the cached results for keys under batch, in the order the
// keys are given, returning the first failure it encounters without reading
// further. Cached errors and missing results short-circuit identically;
// callers that need per-key detail should [Loader.Fetch] each key instead.
func (l *Loader[K, V]) FetchMany(batch string, keys []K) ([]V, error) {
	values := make([]V, len(keys))
	for i, key := range keys {
		value, err := l.Fetch(batch, key)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}
