package loader

import (
	"context"

	"github.com/hanpama/graphpress/internal/selection"
	"github.com/hanpama/graphpress/internal/store"
)

// Loaders bundles the per-request loaders for every entity reachable through
// a relation. Build a fresh set for each request; never share one.
type Loaders struct {
	Users    *Loader[store.User]
	Posts    *Loader[store.Post]
	Comments *Loader[store.Comment]
}

// NewLoaders builds loaders that read through q.
func NewLoaders(s *store.Store, q store.Querier) *Loaders {
	return &Loaders{
		Users:    New("users", ByID(s.Users, q, func(u *store.User) int64 { return u.ID })),
		Posts:    New("posts", ByID(s.Posts, q, func(p *store.Post) int64 { return p.ID })),
		Comments: New("comments", ByID(s.Comments, q, func(c *store.Comment) int64 { return c.ID })),
	}
}

// Dispatch flushes every loader's pending keys, one batch per loader.
func (ls *Loaders) Dispatch(ctx context.Context) {
	ls.Users.Dispatch(ctx)
	ls.Posts.Dispatch(ctx)
	ls.Comments.Dispatch(ctx)
}

// ByID returns a BatchFunc issuing a single IN query over the distinct ids of
// a batch, projecting the union of the requested fields plus id. Results are
// mapped back onto the requests; ids without a row map to nil.
func ByID[T any](tbl *store.Table[T], q store.Querier, idOf func(*T) int64) BatchFunc[T] {
	return func(ctx context.Context, reqs []Request) ([]*T, error) {
		fields := selection.FieldSet{"id"}
		ids := make([]int64, 0, len(reqs))
		seen := make(map[int64]struct{}, len(reqs))
		for _, r := range reqs {
			fields = fields.Union(r.Fields)
			if _, ok := seen[r.Key.ID]; ok {
				continue
			}
			seen[r.Key.ID] = struct{}{}
			ids = append(ids, r.Key.ID)
		}

		rows, err := tbl.FindByIDs(ctx, q, ids, fields)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]*T, len(rows))
		for _, row := range rows {
			byID[idOf(row)] = row
		}
		out := make([]*T, len(reqs))
		for i, r := range reqs {
			out[i] = byID[r.Key.ID]
		}
		return out, nil
	}
}
