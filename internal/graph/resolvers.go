// Package graph wires the blog schema to storage: field resolvers, the
// per-request runtime the executor drives, and the request context they share.
//
// Reads project only the requested columns and resolve relations through the
// request's loaders. Mutations run in one transaction that spans the ownership
// check and the write.
package graph

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hanpama/graphpress/internal/auth"
	"github.com/hanpama/graphpress/internal/errs"
	"github.com/hanpama/graphpress/internal/resolver"
	"github.com/hanpama/graphpress/internal/selection"
	"github.com/hanpama/graphpress/internal/store"
)

// Token is the result of createToken.
type Token struct {
	Token string
}

func (t *Token) Get(field string) (any, bool) {
	if field == "token" {
		return t.Token, true
	}
	return nil, false
}

// Resolvers holds the resolver of every async field, keyed "Type.field".
type Resolvers struct {
	signer *auth.Signer
	funcs  map[string]resolver.Func
}

// Option configures Resolvers.
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer used for resolver spans.
func WithTracer(t trace.Tracer) Option { return func(o *options) { o.tracer = t } }

// NewResolvers builds the resolver table. signer issues createToken results.
func NewResolvers(signer *auth.Signer, opts ...Option) *Resolvers {
	o := options{tracer: otel.Tracer("github.com/hanpama/graphpress/internal/graph")}
	for _, f := range opts {
		f(&o)
	}

	r := &Resolvers{signer: signer}
	public := resolver.Chain(resolver.Logging(), resolver.Tracing(o.tracer))
	private := public.Append(resolver.RequireAuth())

	r.funcs = map[string]resolver.Func{
		"Query.users":          public.Then(r.users),
		"Query.user":           public.Then(r.user),
		"Query.currentUser":    private.Then(r.currentUser),
		"Query.posts":          public.Then(r.posts),
		"Query.post":           public.Then(r.post),
		"Query.commentsByPost": public.Then(r.commentsByPost),

		"User.posts":    public.Then(r.userPosts),
		"Post.author":   public.Then(r.postAuthor),
		"Post.comments": public.Then(r.postComments),
		"Comment.user":  public.Then(r.commentUser),
		"Comment.post":  public.Then(r.commentPost),

		"Mutation.createToken":        public.Then(r.createToken),
		"Mutation.createUser":         public.Then(r.createUser),
		"Mutation.updateUser":         private.Then(r.updateUser),
		"Mutation.updateUserPassword": private.Then(r.updateUserPassword),
		"Mutation.deleteUser":         private.Then(r.deleteUser),
		"Mutation.createPost":         private.Then(r.createPost),
		"Mutation.updatePost":         private.Then(r.updatePost),
		"Mutation.deletePost":         private.Then(r.deletePost),
		"Mutation.createComment":      private.Then(r.createComment),
		"Mutation.updateComment":      private.Then(r.updateComment),
		"Mutation.deleteComment":      private.Then(r.deleteComment),
	}
	return r
}

// Func returns the resolver for typeName.field.
func (r *Resolvers) Func(typeName, field string) (resolver.Func, bool) {
	f, ok := r.funcs[typeName+"."+field]
	return f, ok
}

// --- projections ---

func userFields(p resolver.Params) selection.FieldSet {
	node := p.Info.Selection
	opts := selection.Options{Exclude: []string{"posts"}}
	if node.Has("posts") {
		opts.Keep = []string{"id"}
	}
	return p.Context.Fields.Fields(node, opts)
}

func postFields(p resolver.Params) selection.FieldSet {
	return p.Context.Fields.Fields(p.Info.Selection, selection.Options{Keep: []string{"id"}, Exclude: []string{"comments"}})
}

func commentFields(p resolver.Params) selection.FieldSet {
	return p.Context.Fields.Fields(p.Info.Selection, selection.Options{})
}

// --- queries ---

func (r *Resolvers) users(ctx context.Context, p resolver.Params) (any, error) {
	s := p.Context.Store
	return findPage(ctx, p, s.Users, nil, userFields(p))
}

func (r *Resolvers) user(ctx context.Context, p resolver.Params) (any, error) {
	id, err := parseID(p.Args["id"])
	if err != nil {
		return nil, err
	}
	return findUser(ctx, p, id)
}

func (r *Resolvers) currentUser(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	return findUser(ctx, p, u.ID)
}

func findUser(ctx context.Context, p resolver.Params, id int64) (any, error) {
	s := p.Context.Store
	u, err := s.Users.FindByID(ctx, s.DB(), id, userFields(p))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.NotFoundf("User with id %d not found!", id)
	}
	return u, nil
}

func (r *Resolvers) posts(ctx context.Context, p resolver.Params) (any, error) {
	s := p.Context.Store
	return findPage(ctx, p, s.Posts, nil, postFields(p))
}

func (r *Resolvers) post(ctx context.Context, p resolver.Params) (any, error) {
	id, err := parseID(p.Args["id"])
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	post, err := s.Posts.FindByID(ctx, s.DB(), id, postFields(p))
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, errs.NotFoundf("Post with id %d not found!", id)
	}
	return post, nil
}

func (r *Resolvers) commentsByPost(ctx context.Context, p resolver.Params) (any, error) {
	postID, err := parseID(p.Args["postId"])
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	return findPage(ctx, p, s.Comments, map[string]any{"post": postID}, commentFields(p))
}

// --- relations ---

func (r *Resolvers) userPosts(ctx context.Context, p resolver.Params) (any, error) {
	u := p.Source.(*store.User)
	s := p.Context.Store
	return findPage(ctx, p, s.Posts, map[string]any{"author": u.ID}, postFields(p))
}

func (r *Resolvers) postAuthor(ctx context.Context, p resolver.Params) (any, error) {
	post := p.Source.(*store.Post)
	return p.Context.Loaders.Users.Load(post.Author, userFields(p)), nil
}

func (r *Resolvers) postComments(ctx context.Context, p resolver.Params) (any, error) {
	post := p.Source.(*store.Post)
	s := p.Context.Store
	return findPage(ctx, p, s.Comments, map[string]any{"post": post.ID}, commentFields(p))
}

func (r *Resolvers) commentUser(ctx context.Context, p resolver.Params) (any, error) {
	c := p.Source.(*store.Comment)
	return p.Context.Loaders.Users.Load(c.User, userFields(p)), nil
}

func (r *Resolvers) commentPost(ctx context.Context, p resolver.Params) (any, error) {
	c := p.Source.(*store.Comment)
	return p.Context.Loaders.Posts.Load(c.Post, postFields(p)), nil
}

// --- mutations ---

func (r *Resolvers) createToken(ctx context.Context, p resolver.Params) (any, error) {
	email, _ := p.Args["email"].(string)
	password, _ := p.Args["password"].(string)
	s := p.Context.Store
	rows, err := s.Users.FindAll(ctx, s.DB(), store.Query{Where: map[string]any{"email": email}, Limit: store.Limit(1)}, []string{"id", "password"})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || !auth.CheckPassword(password, rows[0].Password) {
		return nil, errs.Unauthorizedf("Unauthorized, wrong email or password!")
	}
	token, err := r.signer.Sign(auth.User{ID: rows[0].ID, Email: email})
	if err != nil {
		return nil, err
	}
	return &Token{Token: token}, nil
}

func (r *Resolvers) createUser(ctx context.Context, p resolver.Params) (any, error) {
	var in UserCreateInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	var created *store.User
	err = s.Transaction(ctx, func(tx store.Querier) error {
		var err error
		created, err = s.Users.Create(ctx, tx, map[string]any{"name": in.Name, "email": in.Email, "password": hash})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Resolvers) updateUser(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	var in UserUpdateInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	values := in.values()
	if len(values) == 0 {
		return nil, errs.Validationf("invalid input: nothing to update")
	}
	s := p.Context.Store
	var updated *store.User
	err = s.Transaction(ctx, func(tx store.Querier) error {
		if _, err := owned(ctx, tx, s.Users, u.ID, "id", u.ID, "User", "edit"); err != nil {
			return err
		}
		var err error
		updated, err = s.Users.Update(ctx, tx, u.ID, values)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Resolvers) updateUserPassword(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	var in UserUpdatePasswordInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	err = s.Transaction(ctx, func(tx store.Querier) error {
		if _, err := owned(ctx, tx, s.Users, u.ID, "id", u.ID, "User", "edit"); err != nil {
			return err
		}
		_, err := s.Users.Update(ctx, tx, u.ID, map[string]any{"password": hash})
		return err
	})
	if err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolvers) deleteUser(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	return destroyOwned(ctx, s, s.Users, u.ID, "id", u.ID, "User")
}

func (r *Resolvers) createPost(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	var in PostInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	values := in.values()
	values["author"] = u.ID
	s := p.Context.Store
	var created *store.Post
	err = s.Transaction(ctx, func(tx store.Querier) error {
		var err error
		created, err = s.Posts.Create(ctx, tx, values)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Resolvers) updatePost(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	id, err := parseID(p.Args["id"])
	if err != nil {
		return nil, err
	}
	var in PostInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	s := p.Context.Store
	var updated *store.Post
	err = s.Transaction(ctx, func(tx store.Querier) error {
		if _, err := owned(ctx, tx, s.Posts, id, "author", u.ID, "Post", "edit"); err != nil {
			return err
		}
		var err error
		updated, err = s.Posts.Update(ctx, tx, id, in.values())
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Resolvers) deletePost(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	id, err := parseID(p.Args["id"])
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	return destroyOwned(ctx, s, s.Posts, id, "author", u.ID, "Post")
}

func (r *Resolvers) createComment(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	var in CommentInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	postID, err := parseID(in.Post)
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	var created *store.Comment
	err = s.Transaction(ctx, func(tx store.Querier) error {
		var err error
		created, err = s.Comments.Create(ctx, tx, map[string]any{"comment": in.Comment, "post": postID, "user": u.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Resolvers) updateComment(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	id, err := parseID(p.Args["id"])
	if err != nil {
		return nil, err
	}
	var in CommentInput
	if err := decodeInput(p.Args["input"], &in); err != nil {
		return nil, err
	}
	postID, err := parseID(in.Post)
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	var updated *store.Comment
	err = s.Transaction(ctx, func(tx store.Querier) error {
		if _, err := owned(ctx, tx, s.Comments, id, "user", u.ID, "Comment", "edit"); err != nil {
			return err
		}
		var err error
		updated, err = s.Comments.Update(ctx, tx, id, map[string]any{"comment": in.Comment, "post": postID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Resolvers) deleteComment(ctx context.Context, p resolver.Params) (any, error) {
	u, err := p.Context.User()
	if err != nil {
		return nil, err
	}
	id, err := parseID(p.Args["id"])
	if err != nil {
		return nil, err
	}
	s := p.Context.Store
	return destroyOwned(ctx, s, s.Comments, id, "user", u.ID, "Comment")
}

// owned reads the id and owner column of the row inside tx. A missing row is
// NotFound and a row owned by someone other than userID is Forbidden.
func owned[T any](ctx context.Context, tx store.Querier, tbl *store.Table[T], id int64, ownerField string, userID int64, entity, verb string) (*T, error) {
	fields := selection.FieldSet{"id"}.Union(selection.FieldSet{ownerField})
	row, err := tbl.FindByID(ctx, tx, id, fields)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errs.NotFoundf("%s with id %d not found!", entity, id)
	}
	if owner, _ := tbl.Value(row, ownerField); owner != any(userID) {
		return nil, errs.Forbiddenf("Unauthorized! You can only %s your own %ss!", verb, strings.ToLower(entity))
	}
	return row, nil
}

func destroyOwned[T any](ctx context.Context, s *store.Store, tbl *store.Table[T], id int64, ownerField string, userID int64, entity string) (any, error) {
	var deleted bool
	err := s.Transaction(ctx, func(tx store.Querier) error {
		if _, err := owned(ctx, tx, tbl, id, ownerField, userID, entity, "delete"); err != nil {
			return err
		}
		var err error
		deleted, err = tbl.Destroy(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// --- args ---

func parseID(v any) (int64, error) {
	s, _ := v.(string)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errs.Validationf("invalid id %q", s)
	}
	return id, nil
}

func intArg(args map[string]any, name string, def int) int {
	if v, ok := args[name].(int); ok {
		return v
	}
	return def
}

// page reads the first and offset arguments of a list field.
func page(args map[string]any, where map[string]any) (store.Query, error) {
	first, offset := intArg(args, "first", 10), intArg(args, "offset", 0)
	if first < 0 {
		return store.Query{}, errs.Validationf("first must not be negative, got %d", first)
	}
	if offset < 0 {
		return store.Query{}, errs.Validationf("offset must not be negative, got %d", offset)
	}
	return store.Query{Where: where, Limit: store.Limit(first), Offset: offset}, nil
}

func findPage[T any](ctx context.Context, p resolver.Params, t *store.Table[T], where map[string]any, fields []string) (any, error) {
	q, err := page(p.Args, where)
	if err != nil {
		return nil, err
	}
	return list(t.FindAll(ctx, p.Context.Store.DB(), q, fields))
}

// list turns a nil result slice into an empty one so non-null list fields
// complete as [].
func list[T any](rows []*T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*T{}
	}
	return rows, nil
}
