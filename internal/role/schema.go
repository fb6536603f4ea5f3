package role

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/hbctl/hbctl/internal/apperrors"
)

// Kind is the type of a schema parameter.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "str"
	}
}

// Param declares one typed parameter. A nil Default means the parameter is required.
type Param struct {
	Name    string
	Kind    Kind
	Default any
}

// Required declares a parameter with no default.
func Required(name string, kind Kind) Param {
	return Param{Name: name, Kind: kind}
}

// Optional declares a parameter with a default value.
func Optional(name string, kind Kind, def any) Param {
	return Param{Name: name, Kind: kind, Default: def}
}

// Schema is an ordered parameter list.
type Schema []Param

// Values holds parameters after validation, already converted to their kind.
type Values map[string]any

// Int returns an int parameter, zero when absent.
func (v Values) Int(name string) int {
	i, _ := v[name].(int)
	return i
}

// String returns a string parameter, empty when absent.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Bool returns a bool parameter.
func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Float returns a float parameter.
func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

// Validate converts raw against the schema. Every problem is reported, not
// just the first; the result is a single validation error. Keys not in the
// schema are rejected so typos do not silently fall back to defaults.
func (s Schema) Validate(scope string, raw map[string]any) (Values, error) {
	var result *multierror.Error
	out := make(Values, len(s))
	known := make(map[string]bool, len(s))

	for _, p := range s {
		known[p.Name] = true
		val, ok := raw[p.Name]
		if !ok || val == nil {
			if p.Default == nil {
				result = multierror.Append(result, fmt.Errorf("%s.%s: required %s parameter is missing", scope, p.Name, p.Kind))
				continue
			}
			out[p.Name] = p.Default
			continue
		}
		converted, err := convert(p.Kind, val)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s.%s: %w", scope, p.Name, err))
			continue
		}
		out[p.Name] = converted
	}

	var unknown []string
	for name := range raw {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		result = multierror.Append(result, fmt.Errorf("%s.%s: unknown parameter", scope, name))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, apperrors.Validation(scope, err.Error())
	}
	return out, nil
}

func convert(kind Kind, val any) (any, error) {
	switch kind {
	case KindString:
		switch v := val.(type) {
		case string:
			return v, nil
		case int, float64, bool:
			return fmt.Sprint(v), nil
		}
	case KindInt:
		switch v := val.(type) {
		case int:
			return v, nil
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i, nil
			}
		}
	case KindFloat:
		switch v := val.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, nil
			}
		}
	case KindBool:
		switch v := val.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("expected %s, got %T %v", kind, val, val)
}
