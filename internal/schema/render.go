package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints the schema as SDL, leaving out prelude definitions. Types and
// directives are sorted by name.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	r := &renderer{}

	for _, name := range sortedKeys(s.Types, func(t *Type) bool { return t.BuiltIn }) {
		r.typ(s.Types[name])
	}
	for _, name := range sortedKeys(s.Directives, func(d *Directive) bool { return d.BuiltIn }) {
		r.directive(s.Directives[name])
	}
	return strings.TrimRight(r.String(), "\n") + "\n"
}

// RenderValue renders v as a GraphQL literal.
func RenderValue(v any) string { return renderValue(v) }

func sortedKeys[V any](m map[string]V, skip func(V) bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if !skip(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

type renderer struct {
	strings.Builder
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(&r.Builder, format, args...)
}

func (r *renderer) description(indent, desc string) {
	if desc == "" {
		return
	}
	body := strings.ReplaceAll(strings.ReplaceAll(desc, `"""`, `\"""`), "\n", "\n"+indent)
	r.printf("%s\"\"\"\n%s%s\n%s\"\"\"\n", indent, indent, body, indent)
}

func (r *renderer) deprecated(is bool, reason string) {
	switch {
	case !is:
	case reason == "" || reason == defaultDeprecationReason:
		r.WriteString(" @deprecated")
	default:
		r.printf(" @deprecated(reason: %s)", strconv.Quote(reason))
	}
}

func (r *renderer) typ(t *Type) {
	r.description("", t.Description)
	switch t.Kind {
	case TypeKindScalar:
		r.printf("scalar %s", t.Name)
		if t.SpecifiedByURL != nil {
			r.printf(" @specifiedBy(url: %s)", strconv.Quote(*t.SpecifiedByURL))
		}
		r.WriteString("\n\n")
	case TypeKindUnion:
		r.printf("union %s = %s\n\n", t.Name, strings.Join(t.PossibleTypes, " | "))
	case TypeKindEnum:
		r.printf("enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			r.description("  ", v.Description)
			r.printf("  %s", v.Name)
			r.deprecated(v.IsDeprecated, v.DeprecationReason)
			r.WriteString("\n")
		}
		r.WriteString("}\n\n")
	case TypeKindInputObject:
		r.printf("input %s", t.Name)
		if t.OneOf {
			r.WriteString(" @oneOf")
		}
		r.WriteString(" {\n")
		for _, f := range t.InputFields {
			r.description("  ", f.Description)
			r.printf("  %s", inputValue(f))
			r.deprecated(f.IsDeprecated, f.DeprecationReason)
			r.WriteString("\n")
		}
		r.WriteString("}\n\n")
	case TypeKindObject, TypeKindInterface:
		keyword := "type"
		if t.Kind == TypeKindInterface {
			keyword = "interface"
		}
		r.printf("%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			r.printf(" implements %s", strings.Join(t.Interfaces, " & "))
		}
		r.WriteString(" {\n")
		for _, f := range t.Fields {
			r.description("  ", f.Description)
			r.printf("  %s%s: %s", f.Name, arguments(f.Arguments), renderTypeRef(f.Type))
			r.deprecated(f.IsDeprecated, f.DeprecationReason)
			r.WriteString("\n")
		}
		r.WriteString("}\n\n")
	}
}

func (r *renderer) directive(d *Directive) {
	r.description("", d.Description)
	r.printf("directive @%s%s", d.Name, arguments(d.Arguments))
	if d.IsRepeatable {
		r.WriteString(" repeatable")
	}
	r.printf(" on %s\n\n", strings.Join(d.Locations, " | "))
}

func arguments(args []*InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = inputValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func inputValue(v *InputValue) string {
	s := v.Name + ": " + renderTypeRef(v.Type)
	if v.DefaultValue != nil {
		s += " = " + renderValue(v.DefaultValue)
	}
	return s
}

func renderTypeRef(t *TypeRef) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + renderTypeRef(t.OfType) + "]"
	case TypeRefKindNonNull:
		return renderTypeRef(t.OfType) + "!"
	}
	return ""
}

// renderValue prints a coerced Go value as a GraphQL literal.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(v, func(any) bool { return false })
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + renderValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(value)
}
