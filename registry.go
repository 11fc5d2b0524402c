package lmarshal

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/tarantool/go-option"
)

// Binding is one registered type's marshaling contract.
//
// ToPlain returns the object's fields; values may be scalars, sequences or other
// registered objects. MakePlaceholder returns an accumulator (nil lets the demarshaler
// allocate one) and an unpopulated object that back-references may observe while its
// fields are still being demarshaled. Finalize builds the finished object from the
// accumulated fields.
//
// Types that can sit on a cycle must populate the placeholder in place and return it.
// References read before Finalize already hold the placeholder, so a Finalize that
// returns a different object for a referenced placeholder fails the call with
// ErrBrokenReference.
//
// Only pointer and map types have identity. Sequences and struct values are written
// anew wherever they occur: two fields sharing one slice demarshal into two slices.
// Wrap a sequence in a pointer type to share it.
type Binding struct {
	Type            reflect.Type
	Code            string
	ToPlain         func(obj any) (Fields, error)
	MakePlaceholder func() (Fields, any)
	Finalize        func(acc Fields, obj any) (any, error)

	// finalizeWith replaces Finalize during demarshaling for bindings that convert
	// their fields through the call's converter.
	finalizeWith func(conv *converter, acc Fields, obj any) (any, error)
	enum         bool
}

// Identity reports whether values of the bound type have an identity of their own,
// so that two occurrences can be the same object.
func (b *Binding) Identity() bool {
	switch b.Type.Kind() {
	case reflect.Pointer, reflect.Map:
		return true
	}
	return false
}

func (b *Binding) validate() error {
	switch {
	case b.Type == nil:
		return fmt.Errorf("%w: nil type for code %q", ErrInvalidBinding, b.Code)
	case b.Code == "":
		return fmt.Errorf("%w: empty code for %s", ErrInvalidBinding, b.Type)
	case b.ToPlain == nil || b.MakePlaceholder == nil || b.Finalize == nil:
		return fmt.Errorf("%w: %q is missing a handler", ErrInvalidBinding, b.Code)
	}
	return nil
}

// Registry maps runtime types and type codes to bindings.
// Lookups are safe for concurrent use. Registration is expected to finish before the
// first marshal call; Freeze turns that expectation into an enforced rule.
type Registry struct {
	byType *xsync.Map[reflect.Type, *Binding]
	byCode *xsync.Map[string, *Binding]
	frozen atomic.Bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: xsync.NewMap[reflect.Type, *Binding](),
		byCode: xsync.NewMap[string, *Binding](),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register adds a binding. Either both the code and the type are bound, or neither is.
func (r *Registry) Register(b Binding) error {
	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, b.Code)
	}
	if err := b.validate(); err != nil {
		return err
	}

	bound := &b
	if prev, loaded := r.byCode.LoadOrStore(b.Code, bound); loaded {
		return fmt.Errorf("%w: code %q is bound to %s", ErrConflictingTypeRegistration, b.Code, prev.Type)
	}
	if prev, loaded := r.byType.LoadOrStore(b.Type, bound); loaded {
		r.byCode.Delete(b.Code)
		return fmt.Errorf("%w: type %s is bound to code %q", ErrConflictingTypeRegistration, b.Type, prev.Code)
	}
	return nil
}

// Freeze rejects all further registrations.
func (r *Registry) Freeze() { r.frozen.Store(true) }

// LookupType returns the binding for t.
func (r *Registry) LookupType(t reflect.Type) (*Binding, error) {
	if b, ok := r.byType.Load(t); ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// LookupCode returns the binding for a type code.
func (r *Registry) LookupCode(code string) (*Binding, error) {
	if b, ok := r.byCode.Load(code); ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTypeCode, code)
}

// Find returns the binding for t, if any.
func (r *Registry) Find(t reflect.Type) option.Generic[*Binding] {
	if b, ok := r.byType.Load(t); ok {
		return option.Some(b)
	}
	return option.None[*Binding]()
}

// Len returns the number of bindings.
func (r *Registry) Len() int { return r.byCode.Size() }

// Codes returns every registered type code in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, r.byCode.Size())
	r.byCode.Range(func(code string, _ *Binding) bool {
		codes = append(codes, code)
		return true
	})
	sort.Strings(codes)
	return codes
}

// Register binds T to code using typed handlers. The accumulator passed to finalize is
// allocated by the demarshaler.
func Register[T any](r *Registry, code string,
	toPlain func(T) (Fields, error),
	makePlaceholder func() T,
	finalize func(Fields, T) (T, error),
) error {
	if toPlain == nil || makePlaceholder == nil || finalize == nil {
		return fmt.Errorf("%w: %q is missing a handler", ErrInvalidBinding, code)
	}
	return r.Register(Binding{
		Type: reflect.TypeFor[T](),
		Code: code,
		ToPlain: func(obj any) (Fields, error) {
			return toPlain(obj.(T))
		},
		MakePlaceholder: func() (Fields, any) {
			return nil, makePlaceholder()
		},
		Finalize: func(acc Fields, obj any) (any, error) {
			return finalize(acc, obj.(T))
		},
	})
}
