package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hanpama/graphpress/internal/auth"
	"github.com/hanpama/graphpress/internal/executor"
	"github.com/hanpama/graphpress/internal/language"
	"github.com/hanpama/graphpress/internal/loader"
	"github.com/hanpama/graphpress/internal/resolver"
	"github.com/hanpama/graphpress/internal/schema"
	"github.com/hanpama/graphpress/internal/selection"
	"github.com/hanpama/graphpress/internal/store"
)

var stamp = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

const postReturning = ` RETURNING "id", "title", "content", "photo", "author", "created_at", "updated_at"`

type harness struct {
	t      *testing.T
	mock   sqlmock.Sqlmock
	store  *store.Store
	signer *auth.Signer
	res    *Resolvers
	schema *schema.Schema
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sch, err := Schema()
	require.NoError(t, err)
	signer := auth.NewSigner("test-secret", time.Hour)
	return &harness{t: t, mock: mock, store: store.New(db), signer: signer, res: NewResolvers(signer), schema: sch}
}

// run executes query as user; a nil user is an anonymous request.
func (h *harness) run(user *auth.User, query string, vars map[string]any) *executor.ExecutionResult {
	h.t.Helper()
	logger, _ := test.NewNullLogger()
	rc := &resolver.Context{
		Store:    h.store,
		Loaders:  loader.NewLoaders(h.store, h.store.DB()),
		Fields:   selection.Extractor{},
		Logger:   logger.WithField("request_id", "test"),
		AuthUser: user,
	}
	if user != nil {
		rc.Authorization = "token"
	}
	doc, err := language.ParseQuery(query)
	require.NoError(h.t, err)
	return executor.NewExecutor(h.res.Runtime(rc), h.schema).ExecuteRequest(context.Background(), doc, "", vars, nil)
}

func (h *harness) done() {
	h.t.Helper()
	require.NoError(h.t, h.mock.ExpectationsWereMet())
}

func codeOf(t *testing.T, res *executor.ExecutionResult) string {
	t.Helper()
	require.NotEmpty(t, res.Errors)
	code, _ := res.Errors[0].Extensions["code"].(string)
	return code
}

func postRows(author int64, ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "content", "photo", "author", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, "New", "body", "p.png", author, stamp, stamp)
	}
	return rows
}

func TestUser_SelectsOnlyRequestedColumns(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "name" FROM "users" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ada"))

	res := h.run(nil, `{ user(id: "1") { name } }`, nil)

	require.Empty(t, res.Errors)
	if diff := cmp.Diff(map[string]any{"user": map[string]any{"name": "Ada"}}, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	h.done()
}

func TestUser_NotFound(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "name" FROM "users" WHERE "id" = $1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	res := h.run(nil, `{ user(id: "9") { name } }`, nil)

	assert.Equal(t, "NOT_FOUND", codeOf(t, res))
	assert.Equal(t, "User with id 9 not found!", res.Errors[0].Message)
	assert.Equal(t, map[string]any{"user": nil}, res.Data)
	h.done()
}

func TestUser_PostsKeepsID(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "name", "id" FROM "users" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).AddRow("Ada", int64(1)))
	h.mock.ExpectQuery(`SELECT "title", "id" FROM "posts" WHERE "author" = $1 ORDER BY "id" LIMIT $2`).
		WithArgs(int64(1), 2).
		WillReturnRows(sqlmock.NewRows([]string{"title", "id"}).AddRow("Engines", int64(10)))

	res := h.run(nil, `{ user(id: "1") { name posts(first: 2) { title } } }`, nil)

	require.Empty(t, res.Errors)
	want := map[string]any{"user": map[string]any{
		"name":  "Ada",
		"posts": []any{map[string]any{"title": "Engines"}},
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	h.done()
}

func TestUsers_ZeroFirst(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "name" FROM "users" ORDER BY "id" LIMIT $1`).
		WithArgs(0).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	res := h.run(nil, `{ users(first: 0) { name } }`, nil)

	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"users": []any{}}, res.Data)
	h.done()
}

func TestListFields_NegativePaging(t *testing.T) {
	queries := []string{
		`{ users(first: -5) { name } }`,
		`{ posts(offset: -1) { title } }`,
		`{ commentsByPost(postId: "1", first: -1) { comment } }`,
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			h := newHarness(t)

			res := h.run(nil, q, nil)

			assert.Equal(t, "VALIDATION_FAILURE", codeOf(t, res))
			assert.Contains(t, res.Errors[0].Message, "must not be negative")
			h.done()
		})
	}
}

func TestPosts_SharedAuthorLoadedOnce(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "title", "author", "id" FROM "posts" ORDER BY "id" LIMIT $1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"title", "author", "id"}).
			AddRow("Engines", int64(1), int64(10)).
			AddRow("Notes", int64(1), int64(11)))
	h.mock.ExpectQuery(`SELECT "id", "name" FROM "users" WHERE "id" IN ($1)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ada"))

	res := h.run(nil, `{ posts { title author { name } } }`, nil)

	require.Empty(t, res.Errors)
	want := map[string]any{"posts": []any{
		map[string]any{"title": "Engines", "author": map[string]any{"name": "Ada"}},
		map[string]any{"title": "Notes", "author": map[string]any{"name": "Ada"}},
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	h.done()
}

func TestLoaders_SameIDDifferentFields(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "author", "id" FROM "posts" ORDER BY "id" LIMIT $1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"author", "id"}).AddRow(int64(1), int64(10)))
	h.mock.ExpectQuery(`SELECT "user" FROM "comments" WHERE "post" = $1 ORDER BY "id" LIMIT $2`).
		WithArgs(int64(10), 10).
		WillReturnRows(sqlmock.NewRows([]string{"user"}).AddRow(int64(1)))
	h.mock.ExpectQuery(`SELECT "id", "name", "email" FROM "users" WHERE "id" IN ($1)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(1), "Ada", "ada@example.com"))

	res := h.run(nil, `{
		posts { author { name } }
		commentsByPost(postId: "10") { user { email } }
	}`, nil)

	require.Empty(t, res.Errors)
	want := map[string]any{
		"posts":          []any{map[string]any{"author": map[string]any{"name": "Ada"}}},
		"commentsByPost": []any{map[string]any{"user": map[string]any{"email": "ada@example.com"}}},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	h.done()
}

func TestLoaders_BatchFailure(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "title", "author", "id" FROM "posts" ORDER BY "id" LIMIT $1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"title", "author", "id"}).
			AddRow("Engines", int64(1), int64(10)).
			AddRow("Compilers", int64(2), int64(11)))
	h.mock.ExpectQuery(`SELECT "id", "name" FROM "users" WHERE "id" IN ($1, $2)`).
		WithArgs(int64(1), int64(2)).
		WillReturnError(errors.New("connection reset"))

	res := h.run(nil, `{ posts { title author { name } } }`, nil)

	assert.Equal(t, "BATCH_FETCH_FAILURE", codeOf(t, res))
	assert.Equal(t, executor.Path{"posts", 0, "author"}, res.Errors[0].Path)
	assert.Equal(t, map[string]any{"posts": nil}, res.Data)
	h.done()
}

func TestCurrentUser(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`SELECT "email" FROM "users" WHERE "id" = $1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ada@example.com"))

	res := h.run(&auth.User{ID: 3}, `{ currentUser { email } }`, nil)
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"currentUser": map[string]any{"email": "ada@example.com"}}, res.Data)

	anon := h.run(nil, `{ currentUser { email } }`, nil)
	assert.Equal(t, "UNAUTHORIZED", codeOf(t, anon))
	h.done()
}

func TestProtectedMutation_WithoutIdentity(t *testing.T) {
	h := newHarness(t)

	res := h.run(nil, `mutation { createPost(input: {title: "t", content: "c", photo: "p"}) { id } }`, nil)

	assert.Equal(t, "UNAUTHORIZED", codeOf(t, res))
	assert.Equal(t, "Unauthorized! Token not provided!", res.Errors[0].Message)
	assert.Equal(t, map[string]any{"createPost": nil}, res.Data)
	h.done()
}

func TestCreatePost(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`INSERT INTO "posts" ("author", "content", "photo", "title") VALUES ($1, $2, $3, $4)`+postReturning).
		WithArgs(int64(1), "c", "p", "t").
		WillReturnRows(postRows(1, 9))
	h.mock.ExpectCommit()

	res := h.run(&auth.User{ID: 1}, `mutation ($in: PostInput!) { createPost(input: $in) { id createdAt } }`,
		map[string]any{"in": map[string]any{"title": "t", "content": "c", "photo": "p"}})

	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"createPost": map[string]any{"id": "9", "createdAt": "2024-01-02T03:04:05Z"}}, res.Data)
	h.done()
}

func TestUpdatePost(t *testing.T) {
	const (
		selectOwner = `SELECT "id", "author" FROM "posts" WHERE "id" = $1`
		update      = `UPDATE "posts" SET "content" = $1, "photo" = $2, "title" = $3, "updated_at" = NOW() WHERE "id" = $4` + postReturning
		query       = `mutation { updatePost(id: "5", input: {title: "New", content: "body", photo: "p.png"}) { id title } }`
	)
	ownerRow := func(author int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "author"}).AddRow(int64(5), author)
	}

	t.Run("owner", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(selectOwner).WithArgs(int64(5)).WillReturnRows(ownerRow(1))
		h.mock.ExpectQuery(update).WithArgs("body", "p.png", "New", int64(5)).WillReturnRows(postRows(1, 5))
		h.mock.ExpectCommit()

		res := h.run(&auth.User{ID: 1}, query, nil)

		require.Empty(t, res.Errors)
		assert.Equal(t, map[string]any{"updatePost": map[string]any{"id": "5", "title": "New"}}, res.Data)
		h.done()
	})

	t.Run("not owner", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(selectOwner).WithArgs(int64(5)).WillReturnRows(ownerRow(2))
		h.mock.ExpectRollback()

		res := h.run(&auth.User{ID: 1}, query, nil)

		assert.Equal(t, "FORBIDDEN", codeOf(t, res))
		assert.Equal(t, "Unauthorized! You can only edit your own posts!", res.Errors[0].Message)
		h.done()
	})

	t.Run("missing", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(selectOwner).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows([]string{"id", "author"}))
		h.mock.ExpectRollback()

		res := h.run(&auth.User{ID: 1}, query, nil)

		assert.Equal(t, "NOT_FOUND", codeOf(t, res))
		h.done()
	})

	t.Run("write fails", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(selectOwner).WithArgs(int64(5)).WillReturnRows(ownerRow(1))
		h.mock.ExpectQuery(update).WithArgs("body", "p.png", "New", int64(5)).WillReturnError(errors.New("disk full"))
		h.mock.ExpectRollback()

		res := h.run(&auth.User{ID: 1}, query, nil)

		assert.Equal(t, "INTERNAL", codeOf(t, res))
		assert.Equal(t, map[string]any{"updatePost": nil}, res.Data)
		h.done()
	})
}

func TestDeleteComment(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`SELECT "id", "user" FROM "comments" WHERE "id" = $1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user"}).AddRow(int64(3), int64(1)))
	h.mock.ExpectExec(`DELETE FROM "comments" WHERE "id" = $1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	res := h.run(&auth.User{ID: 1}, `mutation { deleteComment(id: "3") }`, nil)

	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"deleteComment": true}, res.Data)
	h.done()
}

func TestMutations_RunSerially(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`INSERT INTO "posts" ("author", "content", "photo", "title") VALUES ($1, $2, $3, $4)`+postReturning).
		WithArgs(int64(1), "c", "p", "t").
		WillReturnRows(postRows(1, 9))
	h.mock.ExpectCommit()
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`SELECT "id", "author" FROM "posts" WHERE "id" = $1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "author"}).AddRow(int64(9), int64(1)))
	h.mock.ExpectExec(`DELETE FROM "posts" WHERE "id" = $1`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	res := h.run(&auth.User{ID: 1}, `mutation {
		created: createPost(input: {title: "t", content: "c", photo: "p"}) { id }
		deleted: deletePost(id: "9")
	}`, nil)

	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"created": map[string]any{"id": "9"}, "deleted": true}, res.Data)
	h.done()
}

func TestCreateToken(t *testing.T) {
	hash, err := auth.HashPassword("secret-pw", bcrypt.MinCost)
	require.NoError(t, err)
	const lookup = `SELECT "id", "password" FROM "users" WHERE "email" = $1 ORDER BY "id" LIMIT $2`

	t.Run("valid", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(lookup).WithArgs("ada@example.com", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(int64(4), hash))

		res := h.run(nil, `mutation { createToken(email: "ada@example.com", password: "secret-pw") { token } }`, nil)

		require.Empty(t, res.Errors)
		token := res.Data.(map[string]any)["createToken"].(map[string]any)["token"].(string)
		u, err := h.signer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, int64(4), u.ID)
		h.done()
	})

	t.Run("wrong password", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(lookup).WithArgs("ada@example.com", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(int64(4), hash))

		res := h.run(nil, `mutation { createToken(email: "ada@example.com", password: "nope") { token } }`, nil)

		assert.Equal(t, "UNAUTHORIZED", codeOf(t, res))
		h.done()
	})

	t.Run("unknown email", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(lookup).WithArgs("who@example.com", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "password"}))

		res := h.run(nil, `mutation { createToken(email: "who@example.com", password: "x") { token } }`, nil)

		assert.Equal(t, "UNAUTHORIZED", codeOf(t, res))
		assert.Equal(t, "Unauthorized, wrong email or password!", res.Errors[0].Message)
		h.done()
	})
}

func TestCreateUser_InvalidInput(t *testing.T) {
	h := newHarness(t)

	res := h.run(nil, `mutation { createUser(input: {name: "Ada", email: "not-an-email", password: "pw"}) { id } }`, nil)

	assert.Equal(t, "VALIDATION_FAILURE", codeOf(t, res))
	assert.Contains(t, res.Errors[0].Message, "email failed email")
	h.done()
}

func TestSchema_MarksResolverFieldsAsync(t *testing.T) {
	sch, err := Schema()
	require.NoError(t, err)
	for typeName, fields := range asyncFields {
		for _, name := range fields {
			f := sch.Types[typeName].Field(name)
			require.NotNil(t, f, "%s.%s", typeName, name)
			assert.True(t, f.Async, "%s.%s", typeName, name)
			_, ok := NewResolvers(auth.NewSigner("x", 0)).Func(typeName, name)
			assert.True(t, ok, "resolver for %s.%s", typeName, name)
		}
	}
	assert.False(t, sch.Types["Post"].Field("title").Async)
}

func TestSerializeLeafValue(t *testing.T) {
	rt := &Runtime{}
	photo := "me.png"
	tests := []struct {
		typeName string
		in       any
		want     any
	}{
		{"ID", int64(42), "42"},
		{"String", stamp, "2024-01-02T03:04:05Z"},
		{"String", &photo, "me.png"},
		{"String", (*string)(nil), nil},
		{"Boolean", true, true},
	}
	for _, tt := range tests {
		got, err := rt.SerializeLeafValue(context.Background(), tt.typeName, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
