package batchload

// Result holds the cached outcome for a single key: either a resolved value
// or the error that prevented its resolution. Results are written once per
// merge and never mutated in place; a later write for the same key replaces
// the whole Result.
type Result[V any] struct {
	value V
	err   error
}

// Ok returns a Result carrying a resolved value.
func Ok[V any](value V) *Result[V] {
	return &Result[V]{value: value}
}

// Err returns a Result carrying a failure.
func Err[V any](err error) *Result[V] {
	return &Result[V]{err: err}
}

// Get returns the value and error captured by the result.
func (r Result[V]) Get() (V, error) {
	return r.value, r.err
}
