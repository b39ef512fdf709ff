package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hanpama/graphpress/internal/errs"
)

// RequireAuth rejects the call with Unauthorized unless the request carried
// a token. The wrapped resolver is not invoked on rejection.
func RequireAuth() Middleware {
	return MiddlewareFunc(func(next Func) Func {
		return func(ctx context.Context, p Params) (any, error) {
			if p.Context == nil || (p.Context.AuthUser == nil && p.Context.Authorization == "") {
				return nil, errs.Unauthorizedf("Unauthorized! Token not provided!")
			}
			return next(ctx, p)
		}
	})
}

// Logging writes a debug entry per call and an error entry per failure.
func Logging() Middleware {
	return MiddlewareFunc(func(next Func) Func {
		return func(ctx context.Context, p Params) (any, error) {
			start := time.Now()
			val, err := next(ctx, p)
			entry := entryFor(p).WithField("duration", time.Since(start))
			if err != nil {
				entry.WithError(err).WithField("code", errs.KindOf(err).String()).Error("resolver failed")
			} else {
				entry.Debug("resolved")
			}
			return val, err
		}
	})
}

func entryFor(p Params) *logrus.Entry {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if p.Context != nil && p.Context.Logger != nil {
		entry = p.Context.Logger
	}
	if p.Info != nil {
		entry = entry.WithFields(logrus.Fields{"type": p.Info.ObjectType, "field": p.Info.Field})
	}
	return entry
}

// Tracing starts one span per call.
func Tracing(tracer trace.Tracer) Middleware {
	return MiddlewareFunc(func(next Func) Func {
		return func(ctx context.Context, p Params) (any, error) {
			name := "graphql.resolve"
			var attrs []attribute.KeyValue
			if p.Info != nil {
				name = fmt.Sprintf("graphql.resolve %s.%s", p.Info.ObjectType, p.Info.Field)
				attrs = append(attrs,
					attribute.String("graphql.type", p.Info.ObjectType),
					attribute.String("graphql.field", p.Info.Field),
				)
			}
			ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
			defer span.End()

			val, err := next(ctx, p)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, errs.KindOf(err).String())
			}
			return val, err
		}
	})
}
