package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/hanpama/graphpress/internal/eventbus"
	"github.com/hanpama/graphpress/internal/events"
	"github.com/hanpama/graphpress/internal/executor"
	"github.com/hanpama/graphpress/internal/introspection"
	"github.com/hanpama/graphpress/internal/language"
	"github.com/hanpama/graphpress/internal/reqid"
	"github.com/hanpama/graphpress/internal/schema"
)

// RuntimeFunc builds the runtime serving one HTTP request. Everything a
// runtime caches lives for that request only.
type RuntimeFunc func(ctx context.Context, r *http.Request) executor.Runtime

// Handler serves GraphQL over HTTP: GET and POST, single or batched
// operations, and GraphiQL for browsers.
type Handler struct {
	schema  *schema.Schema
	intro   *introspection.Introspector
	runtime RuntimeFunc
	docs    *lru.Cache[string, *language.QueryDocument]
	opt     Options
	log     *logrus.Logger
}

type Options struct {
	// Timeout bounds requests whose context has no deadline. 0 disables it.
	Timeout time.Duration

	// Pretty indents JSON responses.
	Pretty bool

	// MaxBodyBytes rejects larger POST bodies with 413. 0 means unlimited.
	MaxBodyBytes int64

	// GraphiQL serves the IDE to GET requests that accept HTML.
	GraphiQL bool

	// Introspection serves __schema and __type.
	Introspection bool

	// QueryCacheSize bounds the parsed document cache. 0 disables it.
	QueryCacheSize int

	// Validation, when set, validates every document against it before
	// execution.
	Validation *language.Schema

	Logger *logrus.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option       { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                       { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option          { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option          { return func(o *Options) { o.GraphiQL = enable } }
func WithIntrospection(enable bool) Option     { return func(o *Options) { o.Introspection = enable } }
func WithQueryCacheSize(n int) Option          { return func(o *Options) { o.QueryCacheSize = n } }
func WithValidation(s *language.Schema) Option { return func(o *Options) { o.Validation = s } }
func WithLogger(l *logrus.Logger) Option       { return func(o *Options) { o.Logger = l } }

// New creates a GraphQL HTTP handler executing against sch with a runtime
// built per request by runtime.
func New(runtime RuntimeFunc, sch *schema.Schema, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true, Introspection: true, QueryCacheSize: 256}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{schema: sch, runtime: runtime, opt: op, log: op.Logger}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if op.Introspection {
		intro, err := introspection.New(sch)
		if err != nil {
			return nil, err
		}
		h.intro = intro
		h.schema = intro.Schema()
	}
	if op.QueryCacheSize > 0 {
		docs, err := lru.New[string, *language.QueryDocument](op.QueryCacheSize)
		if err != nil {
			return nil, err
		}
		h.docs = docs
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx, r.Header.Get(reqid.Header))
	r = r.WithContext(ctx)
	w.Header().Set(reqid.Header, rid)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		elapsed := time.Since(start)
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, RequestID: rid, Status: status, Duration: elapsed})
		h.log.WithFields(logrus.Fields{
			"request_id":  rid,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		}).Info("request")
	}()

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	reqs, batch, rerr := readRequests(w, r, h.opt.MaxBodyBytes)
	if rerr != nil {
		status = rerr.status
		writeJSON(w, status, documentErrors(language.ErrorList{{Message: rerr.message}}), h.opt.Pretty)
		return
	}

	// Operations of a batch share one runtime and its loader cache.
	rt := h.runtime(ctx, r)
	if h.intro != nil {
		rt = h.intro.Wrap(rt)
	}
	exec := executor.NewExecutor(rt, h.schema)

	out := make([]response, len(reqs))
	for i, req := range reqs {
		var opStatus int
		out[i], opStatus = h.executeOne(ctx, exec, req, r.Method == http.MethodGet)
		if opStatus != http.StatusOK {
			status = opStatus
		}
	}
	if status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", http.MethodPost)
	}
	if batch {
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}
	writeJSON(w, status, out[0], h.opt.Pretty)
}

// executeOne runs one operation. Over GET only queries are run; anything
// else is answered with 405.
func (h *Handler) executeOne(ctx context.Context, exec *executor.Executor, req GraphQLRequest, get bool) (response, int) {
	doc, errs := h.document(req.Query)
	if len(errs) > 0 {
		return documentErrors(errs), http.StatusOK
	}

	var opName, opType string
	if op := doc.Operations.ForName(req.OperationName); op != nil {
		opName, opType = op.Name, string(op.Operation)
		if get && op.Operation != language.Query {
			msg := fmt.Sprintf("%s operations are not allowed over GET", op.Operation)
			return documentErrors(language.ErrorList{{Message: msg}}), http.StatusMethodNotAllowed
		}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: opName, OperationType: opType})
	result := exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	fieldErrs := make([]error, len(result.Errors))
	for i := range result.Errors {
		fieldErrs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		OperationName: opName,
		OperationType: opType,
		Errors:        fieldErrs,
		Duration:      time.Since(start),
	})
	return executionResponse(result), http.StatusOK
}

// document parses and, when configured, validates query. Documents that pass
// are cached by their source text.
func (h *Handler) document(query string) (*language.QueryDocument, language.ErrorList) {
	if h.docs != nil {
		if doc, ok := h.docs.Get(query); ok {
			return doc, nil
		}
	}
	var doc *language.QueryDocument
	if h.opt.Validation != nil {
		var errs language.ErrorList
		doc, errs = language.LoadQuery(h.opt.Validation, query)
		if len(errs) > 0 {
			return nil, errs
		}
	} else {
		var err error
		doc, err = language.ParseQuery(query)
		if err != nil {
			var ge *language.Error
			if errors.As(err, &ge) {
				return nil, language.ErrorList{ge}
			}
			return nil, language.ErrorList{{Message: err.Error()}}
		}
	}
	if h.docs != nil {
		h.docs.Add(query, doc)
	}
	return doc, nil
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
