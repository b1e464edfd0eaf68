package batchload

import "fmt"

// UnknownBatchError reports a read against a batch identifier the cache has
// never seen: no key under it has been resolved, seeded, or failed.
type UnknownBatchError struct {
	Batch string
}

func (e *UnknownBatchError) Error() string {
	return fmt.Sprintf("batchload: unknown batch %q", e.Batch)
}

// NotFoundError reports a read for a key with no resolved result in a batch
// the cache does know about. This covers both keys that were never requested
// and keys the fetch function chose not to resolve.
type NotFoundError[K comparable] struct {
	Batch string
	Key   K
}

func (e *NotFoundError[K]) Error() string {
	return fmt.Sprintf("batchload: key %v not loaded in batch %q", e.Key, e.Batch)
}

// LoadError is the cached error for every key of a batch whose fetch failed
// as a whole, whether the fetch function returned an error, panicked, or ran
// out of time. Unwrap exposes the underlying cause, so errors.Is and
// errors.As still match the fetch function's own error values.
type LoadError struct {
	Batch string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("batchload: load batch %q: %v", e.Batch, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
