package executor

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	language "github.com/hanpama/graphpress/internal/language"
	schema "github.com/hanpama/graphpress/internal/schema"
)

// Path locates a value in the response: field response names and list
// indexes from the root.
type Path []PathElement

// PathElement is a string response name or an int list index.
type PathElement any

// String renders the path as "user.posts[0].author".
func (p Path) String() string {
	var b strings.Builder
	for _, elem := range p {
		switch v := elem.(type) {
		case string:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// executionState holds one operation's execution.
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	errors         []GraphQLError

	// queue holds the async fields found at the current depth.
	queue []asyncTask
	// nullified holds root response names already set to null by a non-null
	// failure; tasks beneath them are dropped.
	nullified map[string]bool
}

// asyncTask is an async field waiting for the next BatchResolveAsync call.
type asyncTask struct {
	Task      AsyncResolveTask
	FieldType *schema.TypeRef
	Fields    []*language.Field
}

// asyncPending holds the place of an async field in its parent's result map
// until the batch for its depth completes.
type asyncPending struct{}

// Executor runs operations against a schema, resolving fields through a
// Runtime one depth at a time.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// ExecuteRequest executes the named operation of document. The root
// selection set runs first; every depth after that is one BatchResolveAsync
// call followed by completion of its results.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := document.Operations.ForName(operationName)
	if operation == nil {
		return requestError("operation not found")
	}

	coerced, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return requestError(err.Error())
	}

	rootType, err := e.rootType(operation.Operation)
	if err != nil {
		return requestError(err.Error())
	}

	state := &executionState{
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: coerced,
		context:        ctx,
		errors:         []GraphQLError{},
		nullified:      make(map[string]bool),
	}

	data := executeSelectionSet(state, rootType, operation.SelectionSet, initialValue, Path{})
	for len(state.queue) > 0 {
		state.runDepth(data)
	}
	return &ExecutionResult{Data: data, Errors: state.errors}
}

func (e *Executor) rootType(op language.Operation) (*schema.Type, error) {
	var t *schema.Type
	switch op {
	case language.Query:
		t = e.schema.GetQueryType()
	case language.Mutation:
		t = e.schema.GetMutationType()
	case language.Subscription:
		t = e.schema.GetSubscriptionType()
	default:
		return nil, fmt.Errorf("unsupported operation type: %s", op)
	}
	if t == nil {
		return nil, fmt.Errorf("root type not found for %s operation", op)
	}
	return t, nil
}

func requestError(message string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: message}}}
}

// executeSelectionSet completes the fields of one object. Async fields are
// queued and left as placeholders. A nullish non-null field nulls the whole
// object, except at the root where only that field becomes null.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	result := make(map[string]any)
	for _, cf := range collectFields(state, objectType, selectionSet).orderedFields() {
		fieldPath := appendPath(path, cf.ResponseName)
		value := executeFieldGroup(state, objectType, objectValue, cf.Fields, fieldPath)

		if cf.Fields[0].Name == "__typename" {
			result[cf.ResponseName] = value
			continue
		}
		fieldDef := getFieldDefinition(objectType, cf.Fields[0].Name)
		if fieldDef == nil {
			continue
		}
		if isNullish(value) {
			if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
				return nil
			}
			value = nil
		}
		result[cf.ResponseName] = value
	}
	return result
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	name := fields[0].Name
	if name == "__typename" {
		return objectType.Name
	}

	fieldDef := getFieldDefinition(objectType, name)
	if fieldDef == nil {
		state.failf(path, "Cannot query field '%s' on type '%s'", name, objectType.Name)
		return nil
	}

	args := coerceArgumentValues(fieldDef, fields[0].Arguments, state.variableValues, state, path)

	if !fieldDef.Async {
		value, err := state.runtime.ResolveSync(state.context, objectType.Name, name, objectValue, args)
		if err != nil {
			state.fail(path, err)
			return nil
		}
		return completeValue(state, fieldDef.Type, fields, value, path)
	}

	state.queue = append(state.queue, asyncTask{
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      name,
			Source:     objectValue,
			Args:       args,
			Path:       path,
			Selection:  buildSelection(state, fieldDef.Type, fields),
		},
		FieldType: fieldDef.Type,
		Fields:    fields,
	})
	return asyncPending{}
}

// runDepth hands the queued tasks to the runtime in one call and completes
// the results into data. Completion may queue the next depth.
func (state *executionState) runDepth(data map[string]any) {
	live := slices.DeleteFunc(state.queue, func(at asyncTask) bool { return state.isNullified(at.Task.Path) })
	state.queue = nil

	tasks := make([]AsyncResolveTask, len(live))
	for i, at := range live {
		tasks[i] = at.Task
	}
	results := state.runtime.BatchResolveAsync(state.context, tasks)
	for i, at := range live {
		state.completeAsync(at, results[i], data)
	}
}

// completeAsync writes one async result into data. A failed non-null field
// nulls its root field and drops everything still queued beneath it.
func (state *executionState) completeAsync(at asyncTask, res AsyncResolveResult, data map[string]any) {
	path := at.Task.Path
	if state.isNullified(path) {
		return
	}

	var value any
	if res.Error != nil {
		state.fail(path, res.Error)
	} else {
		value = completeValue(state, at.FieldType, at.Fields, res.Value, path)
	}

	if isNullish(value) {
		if schema.IsNonNull(at.FieldType) {
			// Nulls the root field, not the nearest nullable ancestor. The
			// two agree only while every async field below the root and
			// every list around one is non-null.
			root := path[0].(string)
			state.nullified[root] = true
			writeAt(data, Path{root}, nil)
			return
		}
		value = nil
	}
	writeAt(data, path, value)
}

func (state *executionState) isNullified(p Path) bool {
	if len(p) == 0 || len(state.nullified) == 0 {
		return false
	}
	root, _ := p[0].(string)
	return state.nullified[root]
}

func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAt(path) {
				state.failf(path, "Cannot return null for non-nullable field %s", path)
			}
			return nil
		}
		return completeValue(state, schema.Unwrap(fieldType), fields, result, path)
	}
	if isNullish(result) {
		return nil
	}
	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}

	name := schema.GetNamedType(fieldType)
	named := state.schema.Types[name]
	if named == nil {
		state.failf(path, "Unknown type: %s", name)
		return nil
	}

	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := state.runtime.SerializeLeafValue(state.context, name, result)
		if err != nil {
			state.fail(path, err)
			return nil
		}
		return v
	case schema.TypeKindObject:
		return executeSelectionSet(state, named, mergeSelectionSets(fields), result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, name, fields, result, path)
	}
	state.failf(path, "Cannot complete value of unexpected type: %s", named.Kind)
	return nil
}

// completeListValue accepts []any or any other slice type. A null item of a
// non-null item type nulls the list.
func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	items, ok := result.([]any)
	if !ok {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice {
			state.failf(path, "Expected list value, got %T", result)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	itemType := schema.Unwrap(listType)
	out := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, itemType, fields, item, appendPath(path, i))
		if isNullish(v) && schema.IsNonNull(itemType) {
			return nil
		}
		out[i] = v
	}
	return out
}

func completeAbstractValue(state *executionState, abstractTypeName string, fields []*language.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.context, abstractTypeName, result)
	if err != nil {
		state.failf(path, "%s", err)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.failf(path, "Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractTypeName, typeName)
		return nil
	}
	return executeSelectionSet(state, objectType, mergeSelectionSets(fields), result, path)
}

func appendPath(path Path, elem PathElement) Path {
	return append(slices.Clip(path), elem)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}

// fail records err at path, carrying its extensions.
func (state *executionState) fail(path Path, err error) {
	state.errors = append(state.errors, newFieldError(err, path))
}

func (state *executionState) failf(path Path, format string, args ...any) {
	state.errors = append(state.errors, GraphQLError{Message: fmt.Sprintf(format, args...), Path: path})
}

func (state *executionState) addError(message string, path Path) {
	state.failf(path, "%s", message)
}

func (state *executionState) hasErrorAt(path Path) bool {
	return slices.ContainsFunc(state.errors, func(e GraphQLError) bool { return slices.Equal(e.Path, path) })
}

// writeAt stores value at path inside data. Writes beneath an object or list
// that was since nulled are dropped.
func writeAt(data map[string]any, path Path, value any) {
	var cur any = data
	for i, elem := range path {
		last := i == len(path)-1
		switch e := elem.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			if last {
				m[e] = value
				return
			}
			cur = m[e]
		case int:
			s, ok := cur.([]any)
			if !ok || e >= len(s) {
				return
			}
			if last {
				s[e] = value
				return
			}
			cur = s[e]
		}
	}
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
