package introspection

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hanpama/graphpress/internal/schema"
)

// extend returns a shallow copy of original carrying the prelude's
// introspection types and a Query type with __schema and __type appended.
func extend(original *schema.Schema) (*schema.Schema, error) {
	types, err := schema.IntrospectionTypes()
	if err != nil {
		return nil, fmt.Errorf("load introspection types: %w", err)
	}

	extended := *original
	extended.Types = maps.Clone(original.Types)
	for _, t := range types {
		extended.Types[t.Name] = t
	}

	if q := original.GetQueryType(); q != nil {
		root := *q
		root.Fields = append(slices.Clip(q.Fields), schemaRootField, typeRootField)
		extended.Types[q.Name] = &root
	}
	return &extended, nil
}

var (
	schemaRootField = schema.NewField("__schema",
		"Access the current type schema of this server.",
		schema.NonNullType(schema.NamedType("__Schema")))

	typeRootField = schema.NewField("__type",
		"Request the type information of a single type.",
		schema.NamedType("__Type")).
		AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType("String"))))
)
