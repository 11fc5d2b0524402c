package lmarshal

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

type structField struct {
	name  string
	index int
}

// structFieldCache caches the exported field layout per struct type.
var structFieldCache = xsync.NewMap[reflect.Type, []structField]()

// structFields returns the marshaled fields of struct type t. A field is named by its
// `lmarshal` tag, or its Go name when untagged; the tag "-" skips it.
func structFields(t reflect.Type) ([]structField, error) {
	if fields, ok := structFieldCache.Load(t); ok {
		return fields, nil
	}

	fields := make([]structField, 0, t.NumField())
	seen := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("lmarshal"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s fields %s and %s are both named %q",
				ErrInvalidBinding, t, prev, f.Name, name)
		}
		seen[name] = f.Name
		fields = append(fields, structField{name: name, index: i})
	}

	fields, _ = structFieldCache.LoadOrStore(t, fields)
	return fields, nil
}

// RegisterStruct binds T, a struct or a pointer to a struct, to code using its exported
// fields. Pointer bindings are identity-bearing; struct bindings are values.
func RegisterStruct[T any](r *Registry, code string) error {
	return registerStructType(r, reflect.TypeFor[T](), code)
}

// RegisterTypes binds the type of each example value by its struct name.
func RegisterTypes(r *Registry, examples ...any) error {
	for _, ex := range examples {
		t := reflect.TypeOf(ex)
		if t == nil {
			return fmt.Errorf("%w: nil example", ErrInvalidBinding)
		}
		st := t
		if st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if err := registerStructType(r, t, st.Name()); err != nil {
			return err
		}
	}
	return nil
}

func registerStructType(r *Registry, t reflect.Type, code string) error {
	b, err := structBinding(t, code)
	if err != nil {
		return err
	}
	return r.Register(b)
}

func structBinding(t reflect.Type, code string) (Binding, error) {
	st, ptr := t, false
	if t.Kind() == reflect.Pointer {
		st, ptr = t.Elem(), true
	}
	if st.Kind() != reflect.Struct {
		return Binding{}, fmt.Errorf("%w: %s is not a struct or a pointer to one", ErrInvalidBinding, t)
	}
	if code == "" {
		code = st.Name()
	}
	fields, err := structFields(st)
	if err != nil {
		return Binding{}, err
	}
	byName := make(map[string]int, len(fields))
	for _, f := range fields {
		byName[f.name] = f.index
	}

	toPlain := func(obj any) (Fields, error) {
		rv := reflect.ValueOf(obj)
		if ptr {
			rv = rv.Elem()
		}
		out := make(Fields, len(fields))
		for _, f := range fields {
			out[f.name] = rv.Field(f.index).Interface()
		}
		return out, nil
	}

	populate := func(conv *converter, rv reflect.Value, acc Fields) error {
		for name, v := range acc {
			i, ok := byName[name]
			if !ok {
				return fmt.Errorf("%w: %s has no field %q", ErrMalformedTree, st, name)
			}
			if err := conv.assign(rv.Field(i), v); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
		return nil
	}

	var finalize func(conv *converter, acc Fields, obj any) (any, error)
	var makePlaceholder func() (Fields, any)
	if ptr {
		makePlaceholder = func() (Fields, any) {
			return nil, reflect.New(st).Interface()
		}
		finalize = func(conv *converter, acc Fields, obj any) (any, error) {
			if err := populate(conv, reflect.ValueOf(obj).Elem(), acc); err != nil {
				return nil, err
			}
			return obj, nil
		}
	} else {
		makePlaceholder = func() (Fields, any) {
			return nil, reflect.Zero(st).Interface()
		}
		finalize = func(conv *converter, acc Fields, _ any) (any, error) {
			rv := reflect.New(st).Elem()
			if err := populate(conv, rv, acc); err != nil {
				return nil, err
			}
			return rv.Interface(), nil
		}
	}

	return Binding{
		Type:            t,
		Code:            code,
		ToPlain:         toPlain,
		MakePlaceholder: makePlaceholder,
		Finalize: func(acc Fields, obj any) (any, error) {
			return finalize(nil, acc, obj)
		},
		finalizeWith: finalize,
	}, nil
}

// converter carries the state of one demarshal call into field conversion: a dict
// shared by several typed map fields converts once, so the fields share one map.
// A nil converter converts without memoizing.
type converter struct {
	maps map[identity]reflect.Value
}

// assign stores a demarshaled value into dst, converting numbers between Go types and
// sequences and mappings into typed slices, arrays and maps.
func assign(dst reflect.Value, src any) error {
	var conv *converter
	return conv.assign(dst, src)
}

func (c *converter) assign(dst reflect.Value, src any) error {
	if src == nil {
		dst.SetZero()
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInteger[int64](src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrMalformedTree, n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := toInteger[uint64](src)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrMalformedTree, n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := toFloat[float64](src)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.String:
		s, ok := src.(string)
		if !ok {
			return assignError(dst, src)
		}
		dst.SetString(s)
	case reflect.Bool:
		b, ok := src.(bool)
		if !ok {
			return assignError(dst, src)
		}
		dst.SetBool(b)
	case reflect.Slice, reflect.Array:
		return c.assignSequence(dst, sv)
	case reflect.Map:
		return c.assignMap(dst, sv)
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := c.assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
	default:
		return assignError(dst, src)
	}
	return nil
}

func (c *converter) assignSequence(dst, sv reflect.Value) error {
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return assignError(dst, sv.Interface())
	}
	n := sv.Len()
	if dst.Kind() == reflect.Array {
		if n != dst.Len() {
			return fmt.Errorf("%w: %d elements for %s", ErrMalformedTree, n, dst.Type())
		}
	} else {
		dst.Set(reflect.MakeSlice(dst.Type(), n, n))
	}
	for i := 0; i < n; i++ {
		if err := c.assign(dst.Index(i), sv.Index(i).Interface()); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *converter) assignMap(dst, sv reflect.Value) error {
	if sv.Kind() != reflect.Map || sv.Type().Key().Kind() != reflect.String ||
		dst.Type().Key().Kind() != reflect.String {
		return assignError(dst, sv.Interface())
	}
	id := identity{ptr: sv.UnsafePointer(), typ: dst.Type()}
	if c != nil {
		if done, ok := c.maps[id]; ok {
			dst.Set(done)
			return nil
		}
	}

	out := reflect.MakeMapWithSize(dst.Type(), sv.Len())
	if c != nil {
		// stored before the entries so that a map reaching itself converts to itself
		c.maps[id] = out
	}
	iter := sv.MapRange()
	for iter.Next() {
		elem := reflect.New(dst.Type().Elem()).Elem()
		if err := c.assign(elem, iter.Value().Interface()); err != nil {
			return fmt.Errorf("[%q]: %w", iter.Key().String(), err)
		}
		out.SetMapIndex(iter.Key().Convert(dst.Type().Key()), elem)
	}
	dst.Set(out)
	return nil
}

func assignError(dst reflect.Value, src any) error {
	return fmt.Errorf("%w: cannot assign %T to %s", ErrMalformedTree, src, dst.Type())
}
