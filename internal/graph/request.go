package graph

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hanpama/graphpress/internal/auth"
	"github.com/hanpama/graphpress/internal/executor"
	"github.com/hanpama/graphpress/internal/loader"
	"github.com/hanpama/graphpress/internal/reqid"
	"github.com/hanpama/graphpress/internal/resolver"
	"github.com/hanpama/graphpress/internal/selection"
	"github.com/hanpama/graphpress/internal/store"
)

// Service builds a fresh resolver context and runtime for every request.
type Service struct {
	Store     *store.Store
	Signer    *auth.Signer
	Resolvers *Resolvers
	Logger    *logrus.Logger
}

// NewService wires resolvers over s.
func NewService(s *store.Store, signer *auth.Signer, logger *logrus.Logger, opts ...Option) *Service {
	return &Service{Store: s, Signer: signer, Resolvers: NewResolvers(signer, opts...), Logger: logger}
}

// Context builds the request's resolver context: new loaders, the caller's
// identity from the Authorization header and a logger entry tagged with the
// request id.
func (s *Service) Context(ctx context.Context, r *http.Request) *resolver.Context {
	entry := logrus.NewEntry(s.Logger)
	if rid, ok := reqid.FromContext(ctx); ok {
		entry = entry.WithField("request_id", rid)
	}
	id := s.Signer.Identify(r)
	if id.Err != nil {
		entry.WithError(id.Err).Debug("ignoring bearer token")
	}
	return &resolver.Context{
		Store:         s.Store,
		Loaders:       loader.NewLoaders(s.Store, s.Store.DB()),
		Fields:        selection.Extractor{},
		Logger:        entry,
		AuthUser:      id.User,
		Authorization: id.Token,
	}
}

// Runtime is the server's per-request runtime factory.
func (s *Service) Runtime(ctx context.Context, r *http.Request) executor.Runtime {
	return s.Resolvers.Runtime(s.Context(ctx, r))
}
