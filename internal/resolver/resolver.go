// Package resolver defines the resolver signature shared by every field, the
// per-request Context handed to it, and the middleware chain that wraps
// business resolvers with authorization, logging and tracing.
package resolver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hanpama/graphpress/internal/auth"
	"github.com/hanpama/graphpress/internal/errs"
	"github.com/hanpama/graphpress/internal/loader"
	"github.com/hanpama/graphpress/internal/selection"
	"github.com/hanpama/graphpress/internal/store"
)

// Context is built once per request before the first resolver runs and is
// passed to every resolver of that request.
type Context struct {
	Store   *store.Store
	Loaders *loader.Loaders
	Fields  selection.Extractor
	Logger  *logrus.Entry

	// AuthUser is set when the request carried a valid token.
	AuthUser *auth.User
	// Authorization is the raw bearer token, valid or not.
	Authorization string
}

// User returns the authenticated user or an Unauthorized error.
func (c *Context) User() (*auth.User, error) {
	if c == nil || c.AuthUser == nil {
		return nil, errs.Unauthorizedf("Unauthorized! Invalid or expired token!")
	}
	return c.AuthUser, nil
}

// Info describes the field being resolved.
type Info struct {
	ObjectType string
	Field      string
	Path       []any
	// Selection is the field itself with every field selected beneath it.
	Selection *selection.Node
}

// Params carries what a resolver receives besides ctx.
type Params struct {
	Source  any
	Args    map[string]any
	Context *Context
	Info    *Info
}

// Func resolves one field.
type Func func(ctx context.Context, p Params) (any, error)

// Middleware wraps a resolver with behavior that runs around it.
type Middleware interface {
	Intercept(next Func) Func
}

// MiddlewareFunc adapts a plain function to Middleware.
type MiddlewareFunc func(next Func) Func

func (f MiddlewareFunc) Intercept(next Func) Func { return f(next) }

// Builder is an ordered list of middleware.
type Builder []Middleware

// Chain returns a Builder applying mws outermost first.
func Chain(mws ...Middleware) Builder {
	return append(Builder(nil), mws...)
}

// Append returns a new Builder with mws added innermost.
func (b Builder) Append(mws ...Middleware) Builder {
	out := make(Builder, 0, len(b)+len(mws))
	out = append(out, b...)
	return append(out, mws...)
}

// Then folds the middleware around terminal.
func (b Builder) Then(terminal Func) Func {
	f := terminal
	for i := len(b) - 1; i >= 0; i-- {
		f = b[i].Intercept(f)
	}
	return f
}
