package executor

import (
	language "github.com/hanpama/graphpress/internal/language"
	schema "github.com/hanpama/graphpress/internal/schema"
	"github.com/hanpama/graphpress/internal/selection"
)

// buildSelection turns the AST nodes of one response key into a selection
// tree. Children are collected against the field's named type, so fragments
// that do not apply to it are dropped.
func buildSelection(state *executionState, fieldType *schema.TypeRef, fields []*language.Field) *selection.Node {
	node := &selection.Node{Name: fields[0].Name}
	// The parser fills Alias with the field name when none was written.
	if alias := fields[0].Alias; alias != "" && alias != node.Name {
		node.Alias = alias
	}
	if fieldType == nil {
		return node
	}
	named := state.schema.Types[schema.GetNamedType(fieldType)]
	if named == nil {
		return node
	}
	switch named.Kind {
	case schema.TypeKindObject, schema.TypeKindInterface, schema.TypeKindUnion:
	default:
		return node
	}

	for _, cf := range collectFields(state, named, mergeSelectionSets(fields)).orderedFields() {
		var childType *schema.TypeRef
		if def := getFieldDefinition(named, cf.Fields[0].Name); def != nil {
			childType = def.Type
		}
		node.Children = append(node.Children, buildSelection(state, childType, cf.Fields))
	}
	return node
}
