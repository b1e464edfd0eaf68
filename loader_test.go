package batchload

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBeforeAnyResolution(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)

	_, err := l.Fetch("users", 1)
	var unknown *UnknownBatchError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "users", unknown.Batch)

	l.Load("users", 1)
	l.Run(context.Background())

	_, err = l.Fetch("users", 2)
	var notFound *NotFoundError[int]
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "users", notFound.Batch)
	assert.Equal(t, 2, notFound.Key)
}

func TestLoadIsIdempotent(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)

	l.Load("users", 1)
	l.Load("users", 1)
	assert.Equal(t, 1, l.pending["users"].Cardinality())

	l.LoadMany("users", []int{1, 2, 2, 3})
	l.LoadMany("users", []int{2, 3})
	assert.Equal(t, 3, l.pending["users"].Cardinality())
}

func TestLoadSkipsCachedResults(t *testing.T) {
	l, runner := newSerialLoader(echoKeys)

	l.LoadMany("users", []int{1, 2, 3})
	l.Run(context.Background())
	require.Equal(t, 1, runner.tasks)

	l.Load("users", 2)
	l.LoadMany("users", []int{1, 3})
	assert.False(t, l.HasPending(), "cached keys must not pend again")

	l.Run(context.Background())
	assert.Equal(t, 1, runner.tasks, "nothing pending, nothing dispatched")
}

func TestLoadSkipsCachedErrors(t *testing.T) {
	errDown := errors.New("db down")
	l, _ := newSerialLoader(func(context.Context, string, []int) (map[int]int, error) {
		return nil, errDown
	})

	l.Load("users", 1)
	l.Run(context.Background())

	l.Load("users", 1)
	assert.False(t, l.HasPending(), "error results count as cached")
}

func TestRunResolvesSubsetOfKeys(t *testing.T) {
	l, _ := newSerialLoader(func(_ context.Context, _ string, keys []int) (map[int]int, error) {
		values := make(map[int]int)
		for _, key := range keys {
			if key != 3 {
				values[key] = key * 10
			}
		}
		return values, nil
	})

	l.LoadMany("users", []int{1, 2, 3})
	l.Run(context.Background())

	v, err := l.Fetch("users", 1)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = l.Fetch("users", 2)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	var notFound *NotFoundError[int]
	_, err = l.Fetch("users", 3)
	assert.ErrorAs(t, err, &notFound, "unresolved keys read as not found, not as failures")
}

func TestRunBroadcastsBatchFailure(t *testing.T) {
	errDown := errors.New("db down")
	l, _ := newSerialLoader(func(context.Context, string, []int) (map[int]int, error) {
		return nil, errDown
	})

	l.LoadMany("users", []int{1, 2, 3})
	l.Run(context.Background())

	for _, key := range []int{1, 2, 3} {
		_, err := l.Fetch("users", key)
		require.ErrorIs(t, err, errDown)

		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, "users", loadErr.Batch)
	}
}

func TestFetchManyShortCircuits(t *testing.T) {
	errBad := errors.New("bad key")
	l, _ := newSerialLoader(echoKeys)

	l.LoadMany("users", []int{1, 3})
	l.Run(context.Background())
	l.Put("users", 2, Err[int](errBad))

	values, err := l.FetchMany("users", []int{1, 2, 3})
	assert.ErrorIs(t, err, errBad)
	assert.Nil(t, values, "partial results are not reported")
}

func TestFetchManyEmptyKeys(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)
	values, err := l.FetchMany("users", nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestPutBypassesRun(t *testing.T) {
	l, runner := newSerialLoader(echoKeys)

	l.Put("users", 42, Ok(7))
	v, err := l.Fetch("users", 42)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 0, runner.collects)

	// A nil result must not conjure up a batch.
	l.Put("ghosts", 1, nil)
	_, err = l.Fetch("ghosts", 1)
	var unknown *UnknownBatchError
	assert.ErrorAs(t, err, &unknown)
}

func TestPutOverwrites(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)

	l.Put("users", 1, Err[int](errors.New("stale")))
	l.Put("users", 1, Ok(99))

	v, err := l.Fetch("users", 1)
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestMergeOverwritesStaleEntries(t *testing.T) {
	l, _ := newSerialLoader(func(_ context.Context, _ string, keys []int) (map[int]int, error) {
		// Resolve a superset of the request, like a fetch that returns whole
		// rows for a table scan.
		return map[int]int{1: 10, 2: 20}, nil
	})

	l.Put("users", 1, Err[int](errors.New("stale failure")))
	l.Load("users", 2)
	l.Run(context.Background())

	v, err := l.Fetch("users", 1)
	require.NoError(t, err, "a fresh fetch replaces a stale error")
	assert.Equal(t, 10, v)
}

func TestRoundTrip(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)

	l.Load("squares", 21)
	l.Run(context.Background())

	v, err := l.Fetch("squares", 21)
	require.NoError(t, err)
	assert.Equal(t, 21, v)
}

func TestRunWithNothingPending(t *testing.T) {
	l, runner := newSerialLoader(echoKeys)
	l.Run(context.Background())
	assert.Equal(t, 0, runner.collects)
}

func TestHasPending(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)
	assert.False(t, l.HasPending())

	l.Load("users", 1)
	assert.True(t, l.HasPending())

	l.Run(context.Background())
	assert.False(t, l.HasPending())

	l.LoadMany("users", nil)
	assert.False(t, l.HasPending(), "empty key slices must not pend")
}

func TestStats(t *testing.T) {
	l, _ := newSerialLoader(echoKeys)

	l.LoadMany("users", []int{1, 2})
	l.Load("posts", 3)
	assert.Equal(t, Stats{PendingBatches: 2, PendingKeys: 3}, l.Stats())

	l.Run(context.Background())
	assert.Equal(t, Stats{CachedBatches: 2, CachedKeys: 3}, l.Stats())
}
