package introspection

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/hanpama/graphpress/internal/executor"
	"github.com/hanpama/graphpress/internal/schema"
)

// Introspector answers __schema and __type from a schema extended once with
// the introspection types.
type Introspector struct {
	schema *schema.Schema
	query  string
}

// New extends sch with the introspection types and root fields. sch itself is
// not modified.
func New(sch *schema.Schema) (*Introspector, error) {
	extended, err := extend(sch)
	if err != nil {
		return nil, err
	}
	return &Introspector{schema: extended, query: sch.QueryType}, nil
}

// Schema is the extended schema to execute against.
func (i *Introspector) Schema() *schema.Schema { return i.schema }

// Wrap returns a Runtime that serves introspection fields and delegates the
// rest to base.
func (i *Introspector) Wrap(base executor.Runtime) executor.Runtime {
	return &runtime{Runtime: base, in: i}
}

type runtime struct {
	executor.Runtime
	in *Introspector
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if objectType == r.in.query {
		switch field {
		case "__schema":
			return r.in.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t, ok := r.in.schema.Types[name]; ok {
				return t, nil
			}
			return nil, nil
		}
	}

	var (
		v  any
		ok bool
	)
	switch src := source.(type) {
	case *schema.Schema:
		v, ok = schemaField(src, field)
	case *schema.Type:
		v, ok = r.typeField(src, field, args)
	case *schema.TypeRef:
		v, ok = r.typeRefField(src, field, args)
	case *schema.Field:
		v, ok = fieldField(src, field, args)
	case *schema.InputValue:
		v, ok = inputValueField(src, field)
	case *schema.EnumValue:
		v, ok = enumValueField(src, field)
	case *schema.Directive:
		v, ok = directiveField(src, field, args)
	}
	if ok {
		return v, nil
	}
	return r.Runtime.ResolveSync(ctx, objectType, field, source, args)
}

// SerializeLeafValue dereferences the optional strings introspection
// resolvers return before handing off to the wrapped runtime.
func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if s, ok := value.(*string); ok {
		if s == nil {
			return nil, nil
		}
		value = *s
	}
	return r.Runtime.SerializeLeafValue(ctx, typ, value)
}

func schemaField(sch *schema.Schema, field string) (any, bool) {
	switch field {
	case "description":
		return sch.Description, true
	case "types":
		return byName(slices.Collect(maps.Values(sch.Types)), typeName), true
	case "queryType":
		return sch.GetQueryType(), true
	case "mutationType":
		return sch.GetMutationType(), true
	case "subscriptionType":
		return sch.GetSubscriptionType(), true
	case "directives":
		return byName(slices.Collect(maps.Values(sch.Directives)), func(d *schema.Directive) string { return d.Name }), true
	}
	return nil, false
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(t.Kind), true
	case "name":
		return t.Name, true
	case "description":
		return t.Description, true
	case "specifiedByURL":
		return t.SpecifiedByURL, true
	case "isOneOf":
		return t.OneOf, true
	case "ofType":
		// Wrappers are TypeRefs; a named type has nothing inside it.
		return nil, true
	case "fields":
		if !hasFields(t) {
			return nil, true
		}
		fields := slices.DeleteFunc(slices.Clone(t.Fields), func(f *schema.Field) bool {
			return strings.HasPrefix(f.Name, "__")
		})
		return visible(fields, args, func(f *schema.Field) (string, bool) { return f.Name, f.IsDeprecated }), true
	case "interfaces":
		if !hasFields(t) {
			return nil, true
		}
		return r.lookup(t.Interfaces), true
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, true
		}
		return r.lookup(t.PossibleTypes), true
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, true
		}
		return visible(t.EnumValues, args, func(v *schema.EnumValue) (string, bool) { return v.Name, v.IsDeprecated }), true
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, true
		}
		return visible(t.InputFields, args, inputValue), true
	}
	return nil, false
}

func (r *runtime) typeRefField(tr *schema.TypeRef, field string, args map[string]any) (any, bool) {
	wrapper := tr.Kind == schema.TypeRefKindNonNull || tr.Kind == schema.TypeRefKindList
	switch field {
	case "kind":
		if wrapper {
			return string(tr.Kind), true
		}
		if def := r.in.schema.Types[tr.Named]; def != nil {
			return string(def.Kind), true
		}
		return nil, true
	case "name":
		if wrapper {
			return nil, true
		}
		return tr.Named, true
	case "ofType":
		if wrapper {
			return tr.OfType, true
		}
		return nil, true
	}
	if def := r.in.schema.Types[tr.GetNamedType()]; def != nil {
		return r.typeField(def, field, args)
	}
	return nil, true
}

func fieldField(f *schema.Field, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		return f.Description, true
	case "args":
		return visible(f.Arguments, args, inputValue), true
	case "type":
		return f.Type, true
	case "isDeprecated":
		return f.IsDeprecated, true
	case "deprecationReason":
		return reason(f.IsDeprecated, f.DeprecationReason), true
	}
	return nil, false
}

func inputValueField(v *schema.InputValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return v.Description, true
	case "type":
		return v.Type, true
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil, true
		}
		lit := schema.RenderValue(v.DefaultValue)
		return &lit, true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return reason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func enumValueField(v *schema.EnumValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.Name, true
	case "description":
		return v.Description, true
	case "isDeprecated":
		return v.IsDeprecated, true
	case "deprecationReason":
		return reason(v.IsDeprecated, v.DeprecationReason), true
	}
	return nil, false
}

func directiveField(d *schema.Directive, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return d.Description, true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		return slices.Sorted(slices.Values(d.Locations)), true
	case "args":
		return visible(d.Arguments, args, inputValue), true
	}
	return nil, false
}

func (r *runtime) lookup(names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := r.in.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return byName(out, typeName)
}

func hasFields(t *schema.Type) bool {
	return t.Kind == schema.TypeKindObject || t.Kind == schema.TypeKindInterface
}

func typeName(t *schema.Type) string { return t.Name }

func inputValue(v *schema.InputValue) (string, bool) { return v.Name, v.IsDeprecated }

// visible returns items sorted by name, leaving out deprecated ones unless
// includeDeprecated is true.
func visible[T any](items []T, args map[string]any, meta func(T) (name string, deprecated bool)) []T {
	all, _ := args["includeDeprecated"].(bool)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if _, deprecated := meta(it); deprecated && !all {
			continue
		}
		out = append(out, it)
	}
	return byName(out, func(it T) string { name, _ := meta(it); return name })
}

func byName[T any](items []T, name func(T) string) []T {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(name(a), name(b)) })
	return items
}

func reason(deprecated bool, why string) *string {
	if !deprecated {
		return nil
	}
	return &why
}
