package graph

import (
	_ "embed"
	"fmt"

	"github.com/hanpama/graphpress/internal/schema"
)

//go:embed schema.graphql
var sdl string

// SDL returns the schema source.
func SDL() string { return sdl }

// asyncFields lists the fields that need a resolver. Everything else is a
// column read off the parent row.
var asyncFields = map[string][]string{
	"Query":    {"users", "user", "currentUser", "posts", "post", "commentsByPost"},
	"Mutation": {"createToken", "createUser", "updateUser", "updateUserPassword", "deleteUser", "createPost", "updatePost", "deletePost", "createComment", "updateComment", "deleteComment"},
	"User":     {"posts"},
	"Post":     {"author", "comments"},
	"Comment":  {"user", "post"},
}

// Schema builds the executable schema.
func Schema() (*schema.Schema, error) {
	sch, err := schema.BuildFromSDL("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	for typeName, fields := range asyncFields {
		if err := sch.MarkAsync(typeName, fields...); err != nil {
			return nil, err
		}
	}
	return sch, nil
}
