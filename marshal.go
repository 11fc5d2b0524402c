package lmarshal

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"unsafe"
)

// identity distinguishes objects by address and type; a struct and its first field share
// an address but not a type.
type identity struct {
	ptr unsafe.Pointer
	typ reflect.Type
}

// seqKey identifies a slice header so that a slice holding itself can be detected.
type seqKey struct {
	ptr unsafe.Pointer
	len int
	typ reflect.Type
}

type valueKind uint8

const (
	kindScalar valueKind = iota
	kindString
	kindSequence
	kindObject
)

// classify maps a Go value onto a plain tree node shape. Registered types take
// precedence over sequences, so a named slice type may carry its own binding.
// String-keyed maps become dicts.
func classify(r *Registry, v any) (valueKind, *Binding, error) {
	switch v.(type) {
	case nil, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return kindScalar, nil, nil
	case string:
		return kindString, nil, nil
	}

	t := reflect.TypeOf(v)
	if b, ok := bindingFor(r, t); ok {
		return kindObject, b, nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return kindSequence, nil, nil
	}
	return 0, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// slot is where a produced node is stored: a mapping field, a sequence element or the
// result of the whole call.
type slot struct {
	obj  map[string]any
	key  string
	seq  []any
	idx  int
	root *any
}

func (s slot) put(v any) {
	switch {
	case s.obj != nil:
		s.obj[s.key] = v
	case s.root != nil:
		*s.root = v
	default:
		s.seq[s.idx] = v
	}
}

type field struct {
	key   string
	value any
}

// sortedFields returns fields ordered by their escaped key, the order in which both
// the marshaler and the demarshaler visit them.
func sortedFields(cfg Config, fields Fields) []field {
	out := make([]field, 0, len(fields))
	for k, v := range fields {
		out = append(out, field{key: cfg.escapeKey(k), value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

type marshalFrame struct {
	value any
	out   slot
	path  *pathNode
	leave *seqKey
}

type marshalState struct {
	cfg      Config
	registry *Registry
	analysis *Analysis[identity]
	labels   map[identity]int
	onPath   map[seqKey]bool
	stack    []marshalFrame

	objects    int
	labeled    int
	references int
}

func (c *Codec) marshal(root any) (any, *marshalState, error) {
	m := &marshalState{
		cfg:      c.config,
		registry: c.registry,
		labels:   make(map[identity]int),
		onPath:   make(map[seqKey]bool),
	}
	if !c.config.LabelAll {
		a, err := analyzeValue(c.config, c.registry, root)
		if err != nil {
			return nil, nil, err
		}
		m.analysis = a
	}

	var result any
	m.stack = append(m.stack, marshalFrame{value: root, out: slot{root: &result}})
	for len(m.stack) > 0 {
		f := m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]

		if f.leave != nil {
			delete(m.onPath, *f.leave)
			continue
		}

		kind, b, err := classify(m.registry, f.value)
		if err != nil {
			return nil, nil, pathError(f.path, err)
		}
		switch kind {
		case kindScalar:
			f.out.put(f.value)
		case kindString:
			f.out.put(m.cfg.escapeString(f.value.(string)))
		case kindSequence:
			err = m.sequence(f)
		case kindObject:
			err = m.object(f, b)
		}
		if err != nil {
			return nil, nil, pathError(f.path, err)
		}
	}
	return result, m, nil
}

func (m *marshalState) sequence(f marshalFrame) error {
	rv := reflect.ValueOf(f.value)
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		f.out.put(nil)
		return nil
	}

	n := rv.Len()
	seq := make([]any, n)
	f.out.put(seq)
	if n == 0 {
		return nil
	}

	if rv.Kind() == reflect.Slice {
		key := seqKey{ptr: rv.UnsafePointer(), len: n, typ: rv.Type()}
		if m.onPath[key] {
			return fmt.Errorf("%w: %s contains itself", ErrUnsupportedType, rv.Type())
		}
		m.onPath[key] = true
		m.stack = append(m.stack, marshalFrame{leave: &key})
	}
	for i := n - 1; i >= 0; i-- {
		m.stack = append(m.stack, marshalFrame{
			value: rv.Index(i).Interface(),
			out:   slot{seq: seq, idx: i},
			path:  f.path.elem(i),
		})
	}
	return nil
}

func (m *marshalState) object(f marshalFrame, b *Binding) error {
	var id identity
	label := m.cfg.LabelAll
	if b.Identity() {
		rv := reflect.ValueOf(f.value)
		if rv.IsNil() {
			f.out.put(nil)
			return nil
		}
		id = identity{ptr: rv.UnsafePointer(), typ: rv.Type()}
		if ordinal, ok := m.labels[id]; ok {
			f.out.put(m.cfg.reference(ordinal))
			m.references++
			return nil
		}
		if !label {
			label = m.cfg.needsLabel(m.analysis.Info(id))
		}
	}

	fields, err := b.ToPlain(f.value)
	if err != nil {
		return fmt.Errorf("%s: %w", b.Code, err)
	}

	out := make(map[string]any, len(fields)+2)
	out[m.cfg.TypeKey] = b.Code
	if label {
		// the ordinal is taken before any child is visited so that a child referring
		// back to this object resolves to it
		out[m.cfg.LabelKey] = m.labeled
		if b.Identity() {
			m.labels[id] = m.labeled
		}
		m.labeled++
	}
	m.objects++
	f.out.put(out)

	if b.enum {
		m.stack = append(m.stack, marshalFrame{
			value: fields[enumValueField],
			out:   slot{obj: out, key: m.cfg.EnumValueKey},
			path:  f.path.child(m.cfg.EnumValueKey),
		})
		return nil
	}

	sorted := sortedFields(m.cfg, fields)
	for i := len(sorted) - 1; i >= 0; i-- {
		m.stack = append(m.stack, marshalFrame{
			value: sorted[i].value,
			out:   slot{obj: out, key: sorted[i].key},
			path:  f.path.child(sorted[i].key),
		})
	}
	return nil
}

// analyzeValue builds the object graph the marshaler will walk and analyzes it.
// Graph nodes are identity-bearing objects. Sequences and value objects are emitted
// anew on every occurrence, so they are expanded into their parent's edges rather
// than becoming nodes. Values the marshaler would reject are skipped here; the
// emission pass reports them with their exact path.
func analyzeValue(cfg Config, r *Registry, root any) (*Analysis[identity], error) {
	var virtual identity
	objects := make(map[identity]any)

	edges := func(id identity) ([]identity, error) {
		if id == virtual {
			return reachable(cfg, r, objects, []any{root})
		}
		obj := objects[id]
		b, _ := bindingFor(r, id.typ)
		fields, err := b.ToPlain(obj)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Code, err)
		}
		return reachable(cfg, r, objects, fieldValues(cfg, fields))
	}
	return Analyze(virtual, edges)
}

func fieldValues(cfg Config, fields Fields) []any {
	sorted := sortedFields(cfg, fields)
	values := make([]any, len(sorted))
	for i, f := range sorted {
		values[i] = f.value
	}
	return values
}

type reachFrame struct {
	value any
	leave *seqKey
}

// reachable returns the identity-bearing objects found in values, looking through
// sequences and value objects.
func reachable(cfg Config, r *Registry, objects map[identity]any, values []any) ([]identity, error) {
	var (
		out    []identity
		onPath = make(map[seqKey]bool)
		stack  = make([]reachFrame, 0, len(values))
	)
	for i := len(values) - 1; i >= 0; i-- {
		stack = append(stack, reachFrame{value: values[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.leave != nil {
			delete(onPath, *f.leave)
			continue
		}

		kind, b, err := classify(r, f.value)
		if err != nil {
			continue
		}
		switch kind {
		case kindObject:
			rv := reflect.ValueOf(f.value)
			if b.Identity() {
				if rv.IsNil() {
					continue
				}
				id := identity{ptr: rv.UnsafePointer(), typ: rv.Type()}
				objects[id] = f.value
				out = append(out, id)
				continue
			}
			fields, err := b.ToPlain(f.value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Code, err)
			}
			values := fieldValues(cfg, fields)
			for i := len(values) - 1; i >= 0; i-- {
				stack = append(stack, reachFrame{value: values[i]})
			}
		case kindSequence:
			rv := reflect.ValueOf(f.value)
			n := rv.Len()
			if n == 0 {
				continue
			}
			if rv.Kind() == reflect.Slice {
				key := seqKey{ptr: rv.UnsafePointer(), len: n, typ: rv.Type()}
				if onPath[key] {
					continue
				}
				onPath[key] = true
				stack = append(stack, reachFrame{leave: &key})
			}
			for i := n - 1; i >= 0; i-- {
				stack = append(stack, reachFrame{value: rv.Index(i).Interface()})
			}
		}
	}
	return out, nil
}
