package executor

import (
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/graphpress/internal/language"
	schema "github.com/hanpama/graphpress/internal/schema"
)

// coerceVariableValues checks the provided variables against the
// operation's definitions, filling defaults. Keys may carry a leading "$".
func coerceVariableValues(
	schema *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any)
	for _, def := range operation.VariableDefinitions {
		name, t := def.Variable, def.Type
		val, ok := variableValues[name]
		if !ok {
			val, ok = variableValues["$"+name]
		}
		if !ok {
			switch {
			case def.DefaultValue != nil:
				val, _ = def.DefaultValue.Value(nil)
			case t.NonNull:
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t)
			default:
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t)
		}
		cv, err := coerceValue(schema, val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues resolves a field's arguments against the coerced
// variables. Problems are recorded at path and the argument is left out.
func coerceArgumentValues(
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	variableValues map[string]any,
	state *executionState,
	path Path,
) map[string]any {
	coerced := make(map[string]any)
	for _, def := range fieldDef.Arguments {
		if arg := arguments.ForName(def.Name); arg != nil {
			raw, err := arg.Value.Value(variableValues)
			if err == nil {
				raw, err = coerceValue(state.schema, raw, def.Type)
			}
			if err != nil {
				state.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", def.Name, err), path)
				continue
			}
			coerced[def.Name] = raw
			continue
		}
		switch {
		case def.DefaultValue != nil:
			dv, err := coerceValue(state.schema, def.DefaultValue, def.Type)
			if err != nil {
				state.addError(fmt.Sprintf("argument '%s' has an invalid default: %v", def.Name, err), path)
				continue
			}
			coerced[def.Name] = dv
		case schema.IsNonNull(def.Type):
			state.addError(fmt.Sprintf("argument '%s' of required type was not provided", def.Name), path)
		}
	}
	return coerced
}

// coerceValue coerces an input value to targetType. Input objects and enums
// are checked against sch; custom scalars pass through unchanged.
func coerceValue(sch *schema.Schema, value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(sch, value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		return coerceListValue(sch, value, targetType)
	}

	namedType := schema.GetNamedType(targetType)
	if coerce, ok := scalarCoercers[namedType]; ok {
		return coerce(value)
	}
	if sch == nil {
		return value, nil
	}
	t := sch.Types[namedType]
	if t == nil {
		return value, nil
	}
	switch t.Kind {
	case schema.TypeKindInputObject:
		return coerceInputObject(sch, t, value)
	case schema.TypeKindEnum:
		return coerceEnum(t, value)
	}
	return value, nil
}

func coerceListValue(sch *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	innerType := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		out := make([]any, len(slice))
		for i, item := range slice {
			c, err := coerceValue(sch, item, innerType)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	// Single value becomes a list of one
	c, err := coerceValue(sch, value, innerType)
	if err != nil {
		return nil, err
	}
	return []any{c}, nil
}

func coerceInputObject(sch *schema.Schema, t *schema.Type, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected input object %s, got %T", t.Name, value)
	}
	known := make(map[string]struct{}, len(t.InputFields))
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		known[f.Name] = struct{}{}
		v, present := m[f.Name]
		if !present {
			if f.DefaultValue != nil {
				dv, err := coerceValue(sch, f.DefaultValue, f.Type)
				if err != nil {
					return nil, fmt.Errorf("field '%s' of input %s: %v", f.Name, t.Name, err)
				}
				out[f.Name] = dv
			} else if schema.IsNonNull(f.Type) {
				return nil, fmt.Errorf("required field '%s' of input %s was not provided", f.Name, t.Name)
			}
			continue
		}
		c, err := coerceValue(sch, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s' of input %s: %v", f.Name, t.Name, err)
		}
		out[f.Name] = c
	}
	for name := range m {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("field '%s' is not defined by input %s", name, t.Name)
		}
	}
	return out, nil
}

func coerceEnum(t *schema.Type, value any) (any, error) {
	name, ok := value.(string)
	if ok {
		for _, v := range t.EnumValues {
			if v.Name == name {
				return name, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot coerce %v to enum %s", value, t.Name)
}

var scalarCoercers = map[string]func(any) (any, error){
	"Int":     coerceToInt,
	"Float":   coerceToFloat,
	"String":  coerceToString,
	"Boolean": coerceToBoolean,
	"ID":      coerceToID,
}

// coerceToInt accepts whole numbers in the 32-bit range of GraphQL Int.
func coerceToInt(value any) (any, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int32:
		return int(v), nil
	case int64:
		f = float64(v)
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %v", value)
	}
	return int(f), nil
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return fmt.Sprintf("%v", value), nil
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}
