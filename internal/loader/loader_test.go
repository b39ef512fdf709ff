package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphpress/internal/errs"
	"github.com/hanpama/graphpress/internal/selection"
)

type author struct {
	ID     int64
	Fields string
}

// recordingBatch answers every request it sees and remembers each call.
type recordingBatch struct {
	calls   [][]Request
	missing map[int64]bool
	fail    error
}

func (r *recordingBatch) fn(_ context.Context, reqs []Request) ([]*author, error) {
	r.calls = append(r.calls, reqs)
	if r.fail != nil {
		return nil, r.fail
	}
	out := make([]*author, len(reqs))
	for i, req := range reqs {
		if r.missing[req.Key.ID] {
			continue
		}
		out[i] = &author{ID: req.Key.ID, Fields: req.Key.Fields}
	}
	return out, nil
}

func TestLoad_SameTickIsOneBatch_OrderPreserved(t *testing.T) {
	ctx := context.Background()
	rb := &recordingBatch{}
	l := New("authors", rb.fn)
	name := selection.FieldSet{"name"}

	futures := []*Future[author]{l.Load(3, name), l.Load(1, name), l.Load(2, name)}
	require.Empty(t, rb.calls, "Load must not touch storage")

	l.Dispatch(ctx)
	require.Len(t, rb.calls, 1)
	assert.Equal(t, 1, l.Batches())

	var got []int64
	for _, f := range futures {
		v, err := f.Get(ctx)
		require.NoError(t, err)
		got = append(got, v.ID)
	}
	assert.Equal(t, []int64{3, 1, 2}, got)
	assert.Len(t, rb.calls, 1)
}

func TestLoad_IdenticalKeyIsShared(t *testing.T) {
	rb := &recordingBatch{}
	l := New("authors", rb.fn)

	a := l.Load(7, selection.FieldSet{"name", "email"})
	b := l.Load(7, selection.FieldSet{"email", "name"})
	assert.Same(t, a, b)
	assert.Equal(t, 1, l.Pending())

	_, err := a.Get(context.Background())
	require.NoError(t, err)
	c := l.Load(7, selection.FieldSet{"name", "email"})
	assert.Same(t, a, c)
	assert.Len(t, rb.calls, 1)
}

func TestLoad_DifferentFieldsAreDifferentKeys(t *testing.T) {
	ctx := context.Background()
	rb := &recordingBatch{}
	l := New("authors", rb.fn)

	narrow := l.Load(7, selection.FieldSet{"name"})
	wide := l.Load(7, selection.FieldSet{"name", "email"})
	assert.NotSame(t, narrow, wide)

	n, err := narrow.Get(ctx)
	require.NoError(t, err)
	w, err := wide.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "name", n.Fields)
	assert.Equal(t, "email,name", w.Fields)
	require.Len(t, rb.calls, 1)
	assert.Len(t, rb.calls[0], 2)
}

func TestLoad_AfterDispatchStartsNewBatch(t *testing.T) {
	ctx := context.Background()
	rb := &recordingBatch{}
	l := New("authors", rb.fn)

	_, err := l.Load(1, nil).Get(ctx)
	require.NoError(t, err)
	_, err = l.Load(2, nil).Get(ctx)
	require.NoError(t, err)

	assert.Len(t, rb.calls, 2)
	assert.Equal(t, 2, l.Batches())
}

func TestLoad_MissingRowIsNil(t *testing.T) {
	ctx := context.Background()
	rb := &recordingBatch{missing: map[int64]bool{2: true}}
	l := New("authors", rb.fn)

	present := l.Load(1, nil)
	absent := l.Load(2, nil)

	v, err := absent.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, v)

	got, err := absent.Await(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	p, err := present.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
}

func TestDispatch_FailureRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	rb := &recordingBatch{fail: boom}
	l := New("authors", rb.fn)

	a := l.Load(1, nil)
	b := l.Load(2, nil)
	l.Dispatch(ctx)

	_, errA := a.Get(ctx)
	_, errB := b.Get(ctx)
	require.Error(t, errA)
	assert.Equal(t, errA, errB)
	assert.ErrorIs(t, errA, boom)
	assert.True(t, errs.Is(errA, errs.BatchFetchFailure))
	assert.Len(t, rb.calls, 1, "no retry")

	rb.fail = nil
	again := l.Load(1, nil)
	assert.NotSame(t, a, again, "failed keys leave the cache")
	v, err := again.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ID)
}

func TestDispatch_ShortResultIsFailure(t *testing.T) {
	l := New("authors", func(context.Context, []Request) ([]*author, error) {
		return []*author{{ID: 1}}, nil
	})
	a := l.Load(1, nil)
	b := l.Load(2, nil)
	_, err := a.Get(context.Background())
	assert.True(t, errs.Is(err, errs.BatchFetchFailure))
	_, err = b.Get(context.Background())
	assert.True(t, errs.Is(err, errs.BatchFetchFailure))
}

func TestPrime(t *testing.T) {
	rb := &recordingBatch{}
	l := New("authors", rb.fn)
	l.Prime(5, selection.FieldSet{"name"}, &author{ID: 5, Fields: "primed"})

	v, err := l.Load(5, selection.FieldSet{"name"}).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "primed", v.Fields)
	assert.Empty(t, rb.calls)
}

func TestDispatch_NothingPendingIsNoop(t *testing.T) {
	rb := &recordingBatch{}
	l := New("authors", rb.fn)
	l.Dispatch(context.Background())
	assert.Empty(t, rb.calls)
	assert.Equal(t, 0, l.Batches())
}
