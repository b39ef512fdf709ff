package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/graphpress/internal/auth"
	"github.com/hanpama/graphpress/internal/errs"
)

func tag(trace *[]string, name string) Middleware {
	return MiddlewareFunc(func(next Func) Func {
		return func(ctx context.Context, p Params) (any, error) {
			*trace = append(*trace, name+">")
			v, err := next(ctx, p)
			*trace = append(*trace, "<"+name)
			return v, err
		}
	})
}

func TestChain_OutermostFirst(t *testing.T) {
	var trace []string
	f := Chain(tag(&trace, "a"), tag(&trace, "b")).Append(tag(&trace, "c")).Then(func(context.Context, Params) (any, error) {
		trace = append(trace, "terminal")
		return "ok", nil
	})

	v, err := f(context.Background(), Params{})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, []string{"a>", "b>", "c>", "terminal", "<c", "<b", "<a"}, trace)
}

func TestChain_Empty(t *testing.T) {
	v, err := Chain().Then(func(context.Context, Params) (any, error) { return 1, nil })(context.Background(), Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name    string
		rc      *Context
		wantErr bool
	}{
		{name: "no context", rc: nil, wantErr: true},
		{name: "anonymous", rc: &Context{}, wantErr: true},
		{name: "authenticated", rc: &Context{AuthUser: &auth.User{ID: 1}}},
		{name: "raw token only", rc: &Context{Authorization: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			f := Chain(RequireAuth()).Then(func(context.Context, Params) (any, error) {
				called = true
				return true, nil
			})
			_, err := f(context.Background(), Params{Context: tt.rc})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.Unauthorized))
				assert.False(t, called)
				return
			}
			require.NoError(t, err)
			assert.True(t, called)
		})
	}
}

func TestContext_User(t *testing.T) {
	_, err := (&Context{Authorization: "abc"}).User()
	assert.True(t, errs.Is(err, errs.Unauthorized))

	u, err := (&Context{AuthUser: &auth.User{ID: 7}}).User()
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
}

func TestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	rc := &Context{Logger: logger.WithField("request_id", "r1")}
	info := &Info{ObjectType: "Query", Field: "post"}

	ok := Chain(Logging()).Then(func(context.Context, Params) (any, error) { return 1, nil })
	_, _ = ok(context.Background(), Params{Context: rc, Info: info})
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, "post", hook.LastEntry().Data["field"])
	assert.Equal(t, "r1", hook.LastEntry().Data["request_id"])

	failing := Chain(Logging()).Then(func(context.Context, Params) (any, error) {
		return nil, errs.NotFoundf("Post with id 1 not found!")
	})
	_, err := failing(context.Background(), Params{Context: rc, Info: info})
	require.Error(t, err)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "NOT_FOUND", hook.LastEntry().Data["code"])
}

func TestTracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := tp.Tracer("test")

	f := Chain(Tracing(tracer)).Then(func(ctx context.Context, p Params) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := f(context.Background(), Params{Info: &Info{ObjectType: "Mutation", Field: "createPost"}})
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "graphql.resolve Mutation.createPost", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "INTERNAL", spans[0].Status().Description)
}
