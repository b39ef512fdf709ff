package executor

import (
	"context"

	"github.com/hanpama/graphpress/internal/selection"
)

// Runtime is what the Executor resolves fields through.
//
// Execution is breadth-first. At each depth the Executor resolves sync fields
// with ResolveSync, then hands every async field of that depth to one
// BatchResolveAsync call, and only then moves on to the next depth. A runtime
// backed by request-scoped loaders should register all loads of a batch
// before awaiting any of them, so a depth costs one round trip per loader.
//
// Errors become located GraphQL errors; a nil value on a non-null field nulls
// the enclosing root field. Tasks beneath a nulled root field are never
// handed to the runtime. Sources and args must not be mutated.
type Runtime interface {
	// ResolveSync returns the raw value of a field not marked async. The
	// Executor completes nested selections itself; (nil, nil) is a null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one depth of async fields. It returns exactly
	// one result per task, in task order, and a failure in one result does
	// not affect the others.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the object type of a value of an interface or union.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue turns a scalar or enum value into its JSON form.
	// Enums serialize to their names.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
	// Path is the response path of the field.
	Path Path
	// Selection is the field with everything selected beneath it, fragments
	// and @skip/@include already applied.
	Selection *selection.Node
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}
