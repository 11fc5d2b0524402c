package lmarshal

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"golang.org/x/exp/constraints"
)

// Fields holds one object's named field values. It is what a binding's ToPlain returns
// and the accumulator its Finalize receives.
type Fields map[string]any

// Has reports whether the field is present.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// String returns a string field.
func (f Fields) String(key string) (string, error) {
	switch v := f[key].(type) {
	case string:
		return v, nil
	default:
		return "", fieldTypeError(key, "string", v)
	}
}

// Bool returns a boolean field.
func (f Fields) Bool(key string) (bool, error) {
	switch v := f[key].(type) {
	case bool:
		return v, nil
	default:
		return false, fieldTypeError(key, "bool", v)
	}
}

// Decode assigns a field to the value dst points to, converting numbers and sequences
// the way reflective bindings do. A missing field leaves dst untouched.
func (f Fields) Decode(key string, dst any) error {
	src, ok := f[key]
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: Decode needs a non-nil pointer, got %T", ErrUnsupportedType, dst)
	}
	if err := assign(rv.Elem(), src); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

// Int returns an integer field, accepting any numeric representation a decoder may
// produce as long as it is integral and fits T.
func Int[T constraints.Integer](f Fields, key string) (T, error) {
	v, err := toInteger[T](f[key])
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}

// Float returns a floating point field.
func Float[T constraints.Float](f Fields, key string) (T, error) {
	v, err := toFloat[T](f[key])
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}

// As returns a field asserted to T; nil yields the zero T.
func As[T any](f Fields, key string) (T, error) {
	var zero T
	v := f[key]
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fieldTypeError(key, reflect.TypeFor[T]().String(), v)
	}
	return t, nil
}

func fieldTypeError(key, want string, got any) error {
	return fmt.Errorf("%w: field %q: want %s, got %T", ErrMalformedTree, key, want, got)
}

func toInteger[T constraints.Integer](v any) (T, error) {
	var zero T
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fitInteger[T](i)
		}
		f, err := n.Float64()
		if err != nil {
			return zero, fmt.Errorf("%w: %q is not a number", ErrMalformedTree, n)
		}
		return toInteger[T](f)
	case float32:
		return toInteger[T](float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return zero, fmt.Errorf("%w: %v is not integral", ErrMalformedTree, n)
		}
		if n < math.MinInt64 || n >= math.MaxUint64 {
			return zero, fmt.Errorf("%w: %v overflows %T", ErrMalformedTree, n, zero)
		}
		if n < 0 {
			return fitInteger[T](int64(n))
		}
		return fitUnsigned[T](uint64(n))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fitInteger[T](rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fitUnsigned[T](rv.Uint())
	}
	return zero, fmt.Errorf("%w: want integer, got %T", ErrMalformedTree, v)
}

func fitInteger[T constraints.Integer](i int64) (T, error) {
	t := T(i)
	if int64(t) != i || (i < 0) != (t < 0) {
		return 0, fmt.Errorf("%w: %d overflows %T", ErrMalformedTree, i, t)
	}
	return t, nil
}

func fitUnsigned[T constraints.Integer](u uint64) (T, error) {
	t := T(u)
	if t < 0 || uint64(t) != u {
		return 0, fmt.Errorf("%w: %d overflows %T", ErrMalformedTree, u, t)
	}
	return t, nil
}

func toFloat[T constraints.Float](v any) (T, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrMalformedTree, n)
		}
		return T(f), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return T(rv.Float()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return T(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return T(rv.Uint()), nil
	}
	return 0, fmt.Errorf("%w: want number, got %T", ErrMalformedTree, v)
}
