package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hanpama/graphpress/internal/errs"
	"github.com/hanpama/graphpress/internal/eventbus"
	"github.com/hanpama/graphpress/internal/events"
	"github.com/hanpama/graphpress/internal/executor"
	"github.com/hanpama/graphpress/internal/loader"
	"github.com/hanpama/graphpress/internal/resolver"
)

const mutationType = "Mutation"

// getter is implemented by every row type and Token.
type getter interface {
	Get(field string) (any, bool)
}

// Runtime serves one request. Sync fields are column reads off the parent
// row; async fields go through the resolver table.
type Runtime struct {
	rc        *resolver.Context
	resolvers *Resolvers
}

var _ executor.Runtime = (*Runtime)(nil)

// Runtime binds the resolvers to one request's context.
func (r *Resolvers) Runtime(rc *resolver.Context) *Runtime {
	return &Runtime{rc: rc, resolvers: r}
}

func (rt *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	g, ok := source.(getter)
	if !ok {
		return nil, fmt.Errorf("%s.%s: unexpected source %T", objectType, field, source)
	}
	v, ok := g.Get(field)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a stored field", objectType, field)
	}
	return v, nil
}

// BatchResolveAsync runs every resolver of the depth first, so loads register
// with the loaders before anything waits. It then dispatches each loader once
// and awaits the futures. Mutation fields settle one at a time in order.
func (rt *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	pending := make([]loader.Awaitable, len(tasks))
	for i, t := range tasks {
		v, err := rt.call(ctx, t)
		if t.ObjectType == mutationType {
			v, err = rt.settle(ctx, v, err)
		}
		if a, ok := v.(loader.Awaitable); ok && err == nil {
			pending[i] = a
			continue
		}
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}

	rt.rc.Loaders.Dispatch(ctx)
	for i, a := range pending {
		if a == nil {
			continue
		}
		v, err := a.Await(ctx)
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}

	for i, res := range results {
		if res.Error != nil {
			results[i].Error = classify(res.Error)
			eventbus.Publish(ctx, events.ResolverError{
				ObjectType: tasks[i].ObjectType,
				Field:      tasks[i].Field,
				Code:       errs.KindOf(res.Error).String(),
			})
		}
	}
	return results
}

// classify marks errors that carry no kind as Internal so every field error
// reports a code.
func classify(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return &errs.Error{Kind: errs.Internal, Err: err}
}

func (rt *Runtime) call(ctx context.Context, t executor.AsyncResolveTask) (any, error) {
	f, ok := rt.resolvers.Func(t.ObjectType, t.Field)
	if !ok {
		return nil, fmt.Errorf("no resolver for %s.%s", t.ObjectType, t.Field)
	}
	path := make([]any, len(t.Path))
	for i, e := range t.Path {
		path[i] = e
	}
	return f(ctx, resolver.Params{
		Source:  t.Source,
		Args:    t.Args,
		Context: rt.rc,
		Info:    &resolver.Info{ObjectType: t.ObjectType, Field: t.Field, Path: path, Selection: t.Selection},
	})
}

// settle resolves a future immediately.
func (rt *Runtime) settle(ctx context.Context, v any, err error) (any, error) {
	if a, ok := v.(loader.Awaitable); ok && err == nil {
		rt.rc.Loaders.Dispatch(ctx)
		return a.Await(ctx)
	}
	return v, err
}

func (rt *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return "", fmt.Errorf("%s has no possible types", abstractType)
}

func (rt *Runtime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return value, nil
}

func (rt *Runtime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return value, nil
}

// SerializeLeafValue renders ids as strings and timestamps as RFC 3339.
func (rt *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch v := value.(type) {
	case int64:
		if typeName == "ID" {
			return strconv.FormatInt(v, 10), nil
		}
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	return value, nil
}
