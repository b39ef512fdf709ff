package executor

import (
	"testing"

	language "github.com/hanpama/graphpress/internal/language"
	schema "github.com/hanpama/graphpress/internal/schema"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func newObjectType(name string, fields ...*schema.Field) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, "")
	for _, f := range fields {
		t.AddField(f)
	}
	return t
}

func named(name string) *schema.TypeRef { return schema.NamedType(name) }

func nonNull(t *schema.TypeRef) *schema.TypeRef { return schema.NonNullType(t) }

func listOf(t *schema.TypeRef) *schema.TypeRef { return schema.ListType(t) }

// blogSchema is a small users/posts graph. Root fields and relations are
// async; scalar fields are read off map sources.
//
//	interface Node { id: ID! }
//	type User implements Node { id: ID! name: String! email: String posts(first: Int = 10): [Post!] }
//	type Post { id: ID! title: String! author: User! }
//	type Query { users: [User!]! user(id: ID!): User node(id: ID!): Node }
//	type Mutation { createPost(input: PostInput!): Post deletePost(id: ID!): Boolean }
func blogSchema() *schema.Schema {
	s := schema.NewSchema("").SetQueryType("Query").SetMutationType("Mutation")
	for _, scalar := range []string{"ID", "String", "Int", "Boolean"} {
		s.AddType(schema.NewType(scalar, schema.TypeKindScalar, ""))
	}
	node := schema.NewType("Node", schema.TypeKindInterface, "").
		AddField(schema.NewField("id", "", nonNull(named("ID")))).
		AddPossibleType("User")
	user := newObjectType("User",
		schema.NewField("id", "", nonNull(named("ID"))),
		schema.NewField("name", "", nonNull(named("String"))),
		schema.NewField("email", "", named("String")),
		schema.NewField("posts", "", listOf(nonNull(named("Post")))).SetAsync(true).
			AddArgument(schema.NewInputValue("first", "", named("Int")).SetDefault(int64(10))),
	).AddInterface("Node")
	post := newObjectType("Post",
		schema.NewField("id", "", nonNull(named("ID"))),
		schema.NewField("title", "", nonNull(named("String"))),
		schema.NewField("author", "", nonNull(named("User"))).SetAsync(true),
	)
	input := schema.NewType("PostInput", schema.TypeKindInputObject, "").
		AddInputField(schema.NewInputValue("title", "", nonNull(named("String")))).
		AddInputField(schema.NewInputValue("state", "", named("PostState")).SetDefault("DRAFT"))
	state := schema.NewType("PostState", schema.TypeKindEnum, "").
		AddEnumValue(schema.NewEnumValue("DRAFT", "")).
		AddEnumValue(schema.NewEnumValue("PUBLISHED", ""))
	query := newObjectType("Query",
		schema.NewField("users", "", nonNull(listOf(nonNull(named("User"))))).SetAsync(true),
		schema.NewField("user", "", named("User")).SetAsync(true).
			AddArgument(schema.NewInputValue("id", "", nonNull(named("ID")))),
		schema.NewField("node", "", named("Node")).SetAsync(true).
			AddArgument(schema.NewInputValue("id", "", nonNull(named("ID")))),
	)
	mutation := newObjectType("Mutation",
		schema.NewField("createPost", "", named("Post")).SetAsync(true).
			AddArgument(schema.NewInputValue("input", "", nonNull(named("PostInput")))),
		schema.NewField("deletePost", "", named("Boolean")).SetAsync(true).
			AddArgument(schema.NewInputValue("id", "", nonNull(named("ID")))),
	)
	for _, t := range []*schema.Type{node, user, post, input, state, query, mutation} {
		s.AddType(t)
	}
	return s
}

type batchedCall struct {
	Field   string
	BatchID int
}

// asyncCalls reduces recorded calls to the async ones and their batch.
func asyncCalls(calls []Call) []batchedCall {
	var out []batchedCall
	for _, c := range calls {
		if c.Kind == CallKindAsync {
			out = append(out, batchedCall{Field: c.ObjectType + "." + c.Field, BatchID: c.BatchID})
		}
	}
	return out
}
