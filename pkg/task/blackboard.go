package task

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Field returns a predicate over the blackboard that reports whether the
// named field is truthy: non-zero, non-empty and non-nil. It works on struct
// blackboards (by exported field name, case-insensitively) and on map
// blackboards (by key). A missing field is a programming error and fails the
// surrounding node.
//
// Field is the common condition for If, While and company:
//
//	task.If("have results", task.Field[Board]("Results"), summarize)
func Field[B any](name string) func(B) bool {
	return func(b B) bool {
		v, err := getField(b, name)
		if err != nil {
			panic(err)
		}
		return truthy(v)
	}
}

// getField reads a field from a struct, struct pointer or string-keyed map.
func getField(b any, name string) (any, error) {
	rv := reflect.ValueOf(b)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("field %q: nil blackboard", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("field %q: map blackboard needs string keys", name)
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, fmt.Errorf("field %q: not present on blackboard", name)
		}
		return mv.Interface(), nil
	case reflect.Struct:
		fv := structField(rv, name)
		if !fv.IsValid() {
			return nil, fmt.Errorf("field %q: not present on blackboard", name)
		}
		return fv.Interface(), nil
	default:
		return nil, fmt.Errorf("field %q: blackboard kind %s has no fields", name, rv.Kind())
	}
}

// setField writes a field on a pointer-to-struct or string-keyed map
// blackboard, coercing the value to the field's type when the direct
// assignment does not fit.
func setField(b any, name string, value any) error {
	rv := reflect.ValueOf(b)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return fmt.Errorf("field %q: nil blackboard", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("field %q: map blackboard needs string keys", name)
		}
		key := reflect.ValueOf(name).Convert(rv.Type().Key())
		coerced, err := coerce(value, rv.Type().Elem())
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		rv.SetMapIndex(key, coerced)
		return nil
	case reflect.Struct:
		fv := structField(rv, name)
		if !fv.IsValid() {
			return fmt.Errorf("field %q: not present on blackboard", name)
		}
		if !fv.CanSet() {
			return fmt.Errorf("field %q: not settable (pass a pointer blackboard)", name)
		}
		coerced, err := coerce(value, fv.Type())
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		fv.Set(coerced)
		return nil
	default:
		return fmt.Errorf("field %q: blackboard kind %s has no fields", name, rv.Kind())
	}
}

func structField(rv reflect.Value, name string) reflect.Value {
	if fv := rv.FieldByName(name); fv.IsValid() {
		return fv
	}
	return rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
}

// coerce adapts value to target, falling back to mapstructure for the
// decoded-JSON cases (map[string]any into a struct field, json numbers into
// sized ints).
func coerce(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	vv := reflect.ValueOf(value)
	if vv.Type().AssignableTo(target) {
		return vv, nil
	}
	if vv.Type().ConvertibleTo(target) && compatibleKinds(vv.Kind(), target.Kind()) {
		return vv.Convert(target), nil
	}
	out := reflect.New(target)
	if err := mapstructure.Decode(value, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot assign %T to %s: %w", value, target, err)
	}
	return out.Elem(), nil
}

// compatibleKinds gates reflect.Convert to numeric widening so we never do
// surprising conversions like int -> string.
func compatibleKinds(from, to reflect.Kind) bool {
	return isNumeric(from) && isNumeric(to)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// truthy reports whether v counts as "set": non-nil, non-zero and, for
// collections, non-empty.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	default:
		return !rv.IsZero()
	}
}

// stringify renders a value for trace display: compact JSON for structured
// values, friendly forms for times and durations.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case time.Duration:
		return fmt.Sprintf("%gs", t.Seconds())
	case error:
		return t.Error()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// sanitizePayload makes a result payload trace-safe: values that cannot be
// marshaled to JSON are replaced with their string rendering so a trace
// always serializes.
func sanitizePayload(v any) any {
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

// asInt extracts an integer from the numeric types JSON decoding and user
// code commonly produce.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return int(t), true
	case uint64:
		return int(t), true
	case float32:
		if float32(int(t)) == t {
			return int(t), true
		}
	case float64:
		if float64(int(t)) == t {
			return int(t), true
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// normalizeNumbers rewrites json.Number values (from decoding with
// UseNumber) into int64 when integral and float64 otherwise, recursively
// through maps and slices. Cached payloads and parsed JSON pass through this
// so numbers compare naturally.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	}
	return v
}
