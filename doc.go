/*
Package batchload coalesces individual key lookups into batched fetches.

A [Loader] accumulates point and bulk lookup requests grouped under
caller-supplied batch identifiers, deduplicating them against results it has
already cached. [Loader.Run] drains everything accumulated so far and invokes
the caller's fetch function once per batch identifier, in parallel up to a
concurrency limit, caching per-key values and per-batch errors alike.
[Loader.Fetch] and [Loader.FetchMany] then read resolved results back out.

This turns the classic N+1 lookup pattern into a handful of bulk fetches:
request every key you might need, run once, then read. Cached results live
for the lifetime of the Loader, which is intended to be created per logical
unit of work (for example, one request-handling cycle) and discarded with it.

A Loader is owned by a single goroutine; it performs no internal locking.
All parallelism lives behind the [Runner] collaborator, implemented for
production use by [go.mellwood.dev/batchload/parallel].
*/
package batchload
