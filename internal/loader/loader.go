// Package loader implements request-scoped batching loaders.
//
// Load never touches storage. It registers a (id, field fingerprint) key and
// returns a Future; the first Dispatch (or the first Future awaited) sends every
// key registered since the previous batch to the BatchFunc in one call. The
// executor dispatches once per depth, so every relation resolved at the same
// depth shares one query.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hanpama/graphpress/internal/errs"
	"github.com/hanpama/graphpress/internal/eventbus"
	"github.com/hanpama/graphpress/internal/events"
	"github.com/hanpama/graphpress/internal/selection"
)

// Key identifies one cached result. Two loads of the same id with different
// projections are different keys.
type Key struct {
	ID     int64
	Fields string
}

// Request is one key of a batch along with the fields it needs.
type Request struct {
	Key    Key
	Fields selection.FieldSet
}

// BatchFunc resolves a batch in one storage round trip. It must return one
// result per request, in request order; nil marks a missing row.
type BatchFunc[T any] func(ctx context.Context, reqs []Request) ([]*T, error)

// Loader batches and caches loads of T for a single request.
type Loader[T any] struct {
	name  string
	batch BatchFunc[T]

	mu      sync.Mutex
	cache   map[Key]*Future[T]
	pending []*Future[T]
	batches int
}

// New creates a Loader. name labels emitted events.
func New[T any](name string, batch BatchFunc[T]) *Loader[T] {
	return &Loader[T]{name: name, batch: batch, cache: make(map[Key]*Future[T])}
}

// Future is a pending or resolved load.
type Future[T any] struct {
	loader *Loader[T]
	req    Request
	done   chan struct{}
	val    *T
	err    error
}

// Load registers id with the given projection and returns its Future. Loading
// an identical (id, fields) pair again returns the same Future.
func (l *Loader[T]) Load(id int64, fields selection.FieldSet) *Future[T] {
	key := Key{ID: id, Fields: fields.Fingerprint()}
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.cache[key]; ok {
		return f
	}
	f := &Future[T]{loader: l, req: Request{Key: key, Fields: fields}, done: make(chan struct{})}
	l.cache[key] = f
	l.pending = append(l.pending, f)
	return f
}

// Prime stores a known value for (id, fields) unless the key is already cached.
func (l *Loader[T]) Prime(id int64, fields selection.FieldSet, val *T) {
	key := Key{ID: id, Fields: fields.Fingerprint()}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[key]; ok {
		return
	}
	f := &Future[T]{loader: l, req: Request{Key: key, Fields: fields}, done: make(chan struct{}), val: val}
	close(f.done)
	l.cache[key] = f
}

// Pending reports how many keys wait for the next batch.
func (l *Loader[T]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Batches reports how many batches were dispatched.
func (l *Loader[T]) Batches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batches
}

// Dispatch sends all pending keys as one batch. It is a no-op when nothing is
// pending. If the batch fails every future in it rejects with the same error
// and its keys leave the cache.
func (l *Loader[T]) Dispatch(ctx context.Context) {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	if len(batch) > 0 {
		l.batches++
	}
	l.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	reqs := make([]Request, len(batch))
	ids := make(map[int64]struct{}, len(batch))
	for i, f := range batch {
		reqs[i] = f.req
		ids[f.req.Key.ID] = struct{}{}
	}

	start := time.Now()
	results, err := l.batch(ctx, reqs)
	if err == nil && len(results) != len(reqs) {
		err = fmt.Errorf("%s loader: batch returned %d results for %d keys", l.name, len(results), len(reqs))
	}
	if err != nil {
		err = errs.Wrap(errs.BatchFetchFailure, err, fmt.Sprintf("batch load %s", l.name))
	}
	eventbus.Publish(ctx, events.LoaderBatch{Loader: l.name, Keys: len(reqs), IDs: len(ids), Duration: time.Since(start), Err: err})

	l.mu.Lock()
	for i, f := range batch {
		if err != nil {
			f.err = err
			if l.cache[f.req.Key] == f {
				delete(l.cache, f.req.Key)
			}
		} else {
			f.val = results[i]
		}
		close(f.done)
	}
	l.mu.Unlock()
}

// Get waits for the future, dispatching its loader first if the key is still
// pending. A missing row yields (nil, nil).
func (f *Future[T]) Get(ctx context.Context) (*T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	f.loader.Dispatch(ctx)
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await is Get for callers that do not know T. A missing row yields a nil
// interface rather than a typed nil.
func (f *Future[T]) Await(ctx context.Context) (any, error) {
	v, err := f.Get(ctx)
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

// Awaitable is implemented by every Future.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}
