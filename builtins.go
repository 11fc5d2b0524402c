package lmarshal

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/exp/constraints"
)

const (
	// DictCode is the type code of map[string]any.
	DictCode = "dict"
	// UUIDCode is the type code of uuid.UUID.
	UUIDCode = "UUID"
)

// enumValueField is the field name enum bindings use internally; it is written to and
// read from the tree under Config.EnumValueKey.
const enumValueField = "value"

func init() {
	if err := RegisterBuiltins(defaultRegistry); err != nil {
		panic(err)
	}
}

// RegisterBuiltins binds map[string]any as "dict" and uuid.UUID as "UUID".
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(dictBinding()); err != nil {
		return err
	}
	return r.Register(uuidBinding())
}

// dictBinding makes map[string]any identity-bearing: the accumulator is the placeholder
// itself, so back-references see the same map that is finally returned.
func dictBinding() Binding {
	return Binding{
		Type: reflect.TypeFor[map[string]any](),
		Code: DictCode,
		ToPlain: func(obj any) (Fields, error) {
			return Fields(obj.(map[string]any)), nil
		},
		MakePlaceholder: func() (Fields, any) {
			m := make(map[string]any)
			return Fields(m), m
		},
		Finalize: func(_ Fields, obj any) (any, error) {
			return obj, nil
		},
	}
}

type mappingKey struct {
	typ  reflect.Type
	code string
}

// mappingBindings caches the dict bindings derived for string-keyed map types.
var mappingBindings = xsync.NewMap[mappingKey, *Binding]()

// bindingFor returns the binding that marshals values of type t. Unregistered maps with
// string keys are written as dicts when the registry binds map[string]any; demarshaling
// converts the dict back through the destination field's type.
func bindingFor(r *Registry, t reflect.Type) (*Binding, bool) {
	if b, ok := r.Find(t).Get(); ok {
		return b, true
	}
	if t.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
		return nil, false
	}
	dict, ok := r.Find(reflect.TypeFor[map[string]any]()).Get()
	if !ok {
		return nil, false
	}
	key := mappingKey{typ: t, code: dict.Code}
	if b, ok := mappingBindings.Load(key); ok {
		return b, true
	}
	b, _ := mappingBindings.LoadOrStore(key, &Binding{
		Type: t,
		Code: dict.Code,
		ToPlain: func(obj any) (Fields, error) {
			rv := reflect.ValueOf(obj)
			out := make(Fields, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = iter.Value().Interface()
			}
			return out, nil
		},
		MakePlaceholder: dict.MakePlaceholder,
		Finalize:        dict.Finalize,
	})
	return b, true
}

func uuidBinding() Binding {
	return Binding{
		Type: reflect.TypeFor[uuid.UUID](),
		Code: UUIDCode,
		ToPlain: func(obj any) (Fields, error) {
			return Fields{"value": obj.(uuid.UUID).String()}, nil
		},
		MakePlaceholder: func() (Fields, any) {
			return nil, uuid.Nil
		},
		Finalize: func(acc Fields, _ any) (any, error) {
			s, err := acc.String("value")
			if err != nil {
				return nil, err
			}
			u, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
			}
			return u, nil
		},
	}
}

type enumKind interface {
	~string | constraints.Integer
}

// RegisterEnum binds T, a string or integer kind, as an enum written as
// {TypeKey: code, EnumValueKey: value}. When members are given, demarshaling any other
// value fails.
func RegisterEnum[T enumKind](r *Registry, code string, members ...T) error {
	var allowed map[T]bool
	if len(members) > 0 {
		allowed = make(map[T]bool, len(members))
		for _, m := range members {
			allowed[m] = true
		}
	}
	t := reflect.TypeFor[T]()

	return r.Register(Binding{
		Type: t,
		Code: code,
		ToPlain: func(obj any) (Fields, error) {
			rv := reflect.ValueOf(obj)
			var v any
			switch rv.Kind() {
			case reflect.String:
				v = rv.String()
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
				v = rv.Uint()
			default:
				v = rv.Int()
			}
			return Fields{enumValueField: v}, nil
		},
		MakePlaceholder: func() (Fields, any) {
			var zero T
			return nil, zero
		},
		Finalize: func(acc Fields, _ any) (any, error) {
			var v T
			if err := acc.Decode(enumValueField, &v); err != nil {
				return nil, err
			}
			if !acc.Has(enumValueField) {
				return nil, fmt.Errorf("%w: enum %q without value", ErrMalformedTree, code)
			}
			if allowed != nil && !allowed[v] {
				return nil, fmt.Errorf("%w: %v is not a member of %q", ErrMalformedTree, v, code)
			}
			return v, nil
		},
		enum: true,
	})
}
