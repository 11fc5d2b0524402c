package lmarshal

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// pendingObject is an object whose fields are being demarshaled. It is finalized once
// every child frame pushed after it has been processed.
type pendingObject struct {
	binding *Binding
	acc     Fields
	obj     any
	cell    *vertex
	out     slot
	path    *pathNode
}

type demarshalFrame struct {
	node   any
	out    slot
	path   *pathNode
	finish *pendingObject
}

type demarshalState struct {
	cfg      Config
	registry *Registry
	table    VertexTable
	stack    []demarshalFrame
	conv     converter

	objects    int
	references int
}

func (c *Codec) demarshal(tree any) (any, *demarshalState, error) {
	d := &demarshalState{
		cfg:      c.config,
		registry: c.registry,
		conv:     converter{maps: make(map[identity]reflect.Value)},
	}

	var result any
	d.stack = append(d.stack, demarshalFrame{node: tree, out: slot{root: &result}})
	for len(d.stack) > 0 {
		f := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]

		var err error
		if f.finish != nil {
			err = d.finalize(f.finish)
			if err != nil {
				return nil, nil, pathError(f.finish.path, err)
			}
			continue
		}

		switch n := f.node.(type) {
		case nil, bool, json.Number,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			f.out.put(n)
		case string:
			err = d.string(f, n)
		case []any:
			d.sequence(f, n)
		case map[string]any:
			err = d.object(f, n)
		case Fields:
			err = d.object(f, n)
		case map[any]any:
			var m map[string]any
			if m, err = stringKeys(n); err == nil {
				err = d.object(f, m)
			}
		default:
			err = d.reflected(f)
		}
		if err != nil {
			return nil, nil, pathError(f.path, err)
		}
	}
	return result, d, nil
}

func (d *demarshalState) string(f demarshalFrame, s string) error {
	if literal, ok := strings.CutPrefix(s, d.cfg.EscapePrefix); ok {
		f.out.put(literal)
		return nil
	}
	if strings.HasPrefix(s, d.cfg.ReferencePrefix) {
		ordinal, ok := d.cfg.parseReference(s)
		if ok {
			obj, found := d.table.Get(ordinal).Get()
			if !found {
				return fmt.Errorf("%w: ordinal %d is not assigned (%d labeled so far)",
					ErrBrokenReference, ordinal, d.table.Len())
			}
			d.table.observe(ordinal)
			d.references++
			f.out.put(obj)
			return nil
		}
		if d.cfg.ReferenceStrings {
			return fmt.Errorf("%w: %q is not a reference token", ErrBrokenReference, s)
		}
	}
	f.out.put(s)
	return nil
}

func (d *demarshalState) sequence(f demarshalFrame, n []any) {
	seq := make([]any, len(n))
	f.out.put(seq)
	for i := len(n) - 1; i >= 0; i-- {
		d.stack = append(d.stack, demarshalFrame{
			node: n[i],
			out:  slot{seq: seq, idx: i},
			path: f.path.elem(i),
		})
	}
}

// reflected accepts sequences of a concrete element type, which some decoders produce
// for homogeneous arrays.
func (d *demarshalState) reflected(f demarshalFrame) error {
	rv := reflect.ValueOf(f.node)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("%w: unexpected %T node", ErrMalformedTree, f.node)
	}
	n := make([]any, rv.Len())
	for i := range n {
		n[i] = rv.Index(i).Interface()
	}
	d.sequence(f, n)
	return nil
}

func (d *demarshalState) object(f demarshalFrame, n map[string]any) error {
	raw, ok := n[d.cfg.TypeKey]
	if !ok {
		return fmt.Errorf("%w: mapping without %q", ErrMalformedTree, d.cfg.TypeKey)
	}
	code, ok := raw.(string)
	if !ok {
		return fmt.Errorf("%w: %q is %T, want string", ErrMalformedTree, d.cfg.TypeKey, raw)
	}
	b, err := d.registry.LookupCode(code)
	if err != nil {
		return err
	}

	acc, obj := b.MakePlaceholder()
	if acc == nil {
		acc = make(Fields, len(n))
	}
	p := &pendingObject{binding: b, acc: acc, obj: obj, out: f.out, path: f.path}

	if raw, ok := n[d.cfg.LabelKey]; ok {
		ordinal, err := toInteger[int](raw)
		if err != nil {
			return fmt.Errorf("%q: %w", d.cfg.LabelKey, err)
		}
		if ordinal != d.table.Len() {
			return fmt.Errorf("%w: label %d out of sequence, want %d", ErrMalformedTree, ordinal, d.table.Len())
		}
		// registered before the fields so that a cycle back to this object resolves
		p.cell = d.table.append(obj, b)
	}
	d.objects++

	keys := make([]string, 0, len(n))
	for k := range n {
		if k != d.cfg.TypeKey && k != d.cfg.LabelKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	d.stack = append(d.stack, demarshalFrame{finish: p})
	seen := make(map[string]bool, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		name, err := d.fieldName(b, keys[i])
		if err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("%w: field %q appears twice", ErrMalformedTree, name)
		}
		seen[name] = true
		d.stack = append(d.stack, demarshalFrame{
			node: n[keys[i]],
			out:  slot{obj: acc, key: name},
			path: f.path.child(keys[i]),
		})
	}
	return nil
}

func (d *demarshalState) fieldName(b *Binding, key string) (string, error) {
	if !b.enum {
		return d.cfg.unescapeKey(key), nil
	}
	if key != d.cfg.EnumValueKey {
		return "", fmt.Errorf("%w: enum %q has field %q", ErrMalformedTree, b.Code, key)
	}
	return enumValueField, nil
}

func (d *demarshalState) finalize(p *pendingObject) error {
	var (
		final any
		err   error
	)
	if p.binding.finalizeWith != nil {
		final, err = p.binding.finalizeWith(&d.conv, p.acc, p.obj)
	} else {
		final, err = p.binding.Finalize(p.acc, p.obj)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", p.binding.Code, err)
	}
	if p.cell != nil {
		if p.cell.observed && !sameIdentity(p.obj, final) {
			// earlier references hold the placeholder and cannot be redirected
			return fmt.Errorf("%w: %s was referenced before finalize replaced its placeholder",
				ErrBrokenReference, p.binding.Code)
		}
		p.cell.value = final
		p.cell.done = true
	}
	p.out.put(final)
	return nil
}

// sameIdentity reports whether finalize kept the placeholder's identity. Value types
// have none, so a reference that observed one can never be patched.
func sameIdentity(placeholder, final any) bool {
	pv, fv := reflect.ValueOf(placeholder), reflect.ValueOf(final)
	if !pv.IsValid() || !fv.IsValid() || pv.Type() != fv.Type() {
		return false
	}
	switch pv.Kind() {
	case reflect.Pointer, reflect.Map:
		return pv.UnsafePointer() == fv.UnsafePointer()
	}
	return false
}

func stringKeys(m map[any]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		s, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: mapping key %v is %T, want string", ErrMalformedTree, k, k)
		}
		out[s] = v
	}
	return out, nil
}
