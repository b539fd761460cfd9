// Package structfield maps plain key-value mappings onto typed option and
// hyperparameter structs.
//
// A struct field's key is the first token of its `json` tag, or the field
// name when no tag is present. Values are coerced field-wise: numeric kinds
// are converted (floats must be integral to land in integer fields), and
// slices and string-keyed maps are coerced element-wise. This mirrors what
// JSON decoding produces: numbers arrive as float64, lists as []any.
package structfield

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Field is one settable key of a struct type.
type Field struct {
	Name  string
	Type  reflect.Type
	index int
}

// Of lists the settable keys of struct type t, in declaration order.
//
// Unexported fields and fields tagged `json:"-"` are skipped.
func Of(t reflect.Type) ([]Field, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a struct type", t)
	}

	fields := []Field{}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := keyOf(sf)
		if name == "-" {
			continue
		}
		fields = append(fields, Field{Name: name, Type: sf.Type, index: i})
	}
	return fields, nil
}

func keyOf(sf reflect.StructField) string {
	tag, ok := sf.Tag.Lookup("json")
	if !ok {
		return sf.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return sf.Name
	}
	return name
}

// Problem reports one key of a mapping which could not be applied.
type Problem struct {
	Key   string
	Cause error
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: %s", p.Key, p.Cause)
}

// Populate builds a value of struct type t from base with values laid over it.
//
// base may be nil (start from the zero value) or a value of type t.
// Keys of values are matched against t's fields; unknown keys and
// uncoercible values are reported as Problems, sorted by key.
func Populate(t reflect.Type, base any, values map[string]any) (any, []Problem) {
	out := reflect.New(t).Elem()
	if base != nil {
		bv := reflect.ValueOf(base)
		if bv.Type() == t {
			out.Set(bv)
		}
	}

	fields, err := Of(t)
	if err != nil {
		return nil, []Problem{{Key: "", Cause: err}}
	}
	byKey := map[string]Field{}
	for _, f := range fields {
		byKey[f.Name] = f
	}

	problems := []Problem{}
	for key, value := range values {
		f, ok := byKey[key]
		if !ok {
			problems = append(problems, Problem{Key: key, Cause: fmt.Errorf("unknown key")})
			continue
		}
		cv, err := Coerce(value, f.Type)
		if err != nil {
			problems = append(problems, Problem{Key: key, Cause: err})
			continue
		}
		out.Field(f.index).Set(cv)
	}

	sort.Slice(problems, func(i, j int) bool { return problems[i].Key < problems[j].Key })
	if len(problems) != 0 {
		return nil, problems
	}
	return out.Interface(), nil
}

// Coerce converts value into something assignable to type t.
func Coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if isFloat(v) {
			f := v.Float()
			if f != math.Trunc(f) {
				return reflect.Value{}, fmt.Errorf("%v is not an integer", value)
			}
			return reflect.ValueOf(value).Convert(t), nil
		}
		if isInt(v) {
			return v.Convert(t), nil
		}

	case reflect.Float32, reflect.Float64:
		if isFloat(v) || isInt(v) {
			return v.Convert(t), nil
		}

	case reflect.Ptr:
		elem, err := Coerce(value, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil

	case reflect.Slice:
		if v.Kind() != reflect.Slice {
			break
		}
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			ev, err := Coerce(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Map:
		if v.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
			break
		}
		out := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if iter.Key().Kind() != reflect.String {
				break
			}
			ev, err := Coerce(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			out.SetMapIndex(iter.Key().Convert(t.Key()), ev)
		}
		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", value, t)
}

func isFloat(v reflect.Value) bool {
	k := v.Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
