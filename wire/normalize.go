package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// target is where a normalized node is stored.
type target struct {
	m   map[string]any
	key string
	s   []any
	i   int
}

func (t target) set(v any) {
	if t.m != nil {
		t.m[t.key] = v
		return
	}
	t.s[t.i] = v
}

type normalizeFrame struct {
	node any
	out  target
}

// Normalize copies tree into the shapes every format decodes to. Mappings become
// map[string]any, sequences []any, and numbers int64, uint64 or float64. A mapping with a
// non-string key is rejected.
func Normalize(tree any) (any, error) {
	root := make([]any, 1)
	stack := []normalizeFrame{{node: tree, out: target{s: root}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n := f.node.(type) {
		case nil, bool, string, int64, uint64, float64:
			f.out.set(n)
		case int:
			f.out.set(int64(n))
		case int8:
			f.out.set(int64(n))
		case int16:
			f.out.set(int64(n))
		case int32:
			f.out.set(int64(n))
		case uint:
			f.out.set(uint64(n))
		case uint8:
			f.out.set(uint64(n))
		case uint16:
			f.out.set(uint64(n))
		case uint32:
			f.out.set(uint64(n))
		case float32:
			f.out.set(float64(n))
		case json.Number:
			v, err := number(n)
			if err != nil {
				return nil, err
			}
			f.out.set(v)
		case []any:
			s := make([]any, len(n))
			f.out.set(s)
			for i := range n {
				stack = append(stack, normalizeFrame{node: n[i], out: target{s: s, i: i}})
			}
		case map[string]any:
			m := make(map[string]any, len(n))
			f.out.set(m)
			for k, v := range n {
				stack = append(stack, normalizeFrame{node: v, out: target{m: m, key: k}})
			}
		case map[any]any:
			m := make(map[string]any, len(n))
			f.out.set(m)
			for k, v := range n {
				key, ok := k.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %v (%T)", ErrNonStringKey, k, k)
				}
				stack = append(stack, normalizeFrame{node: v, out: target{m: m, key: key}})
			}
		default:
			rv := reflect.ValueOf(n)
			switch rv.Kind() {
			case reflect.Slice, reflect.Array:
				s := make([]any, rv.Len())
				f.out.set(s)
				for i := range s {
					stack = append(stack, normalizeFrame{node: rv.Index(i).Interface(), out: target{s: s, i: i}})
				}
			case reflect.Map:
				if rv.Type().Key().Kind() != reflect.String {
					return nil, fmt.Errorf("%w: %s", ErrNonStringKey, rv.Type())
				}
				m := make(map[string]any, rv.Len())
				f.out.set(m)
				iter := rv.MapRange()
				for iter.Next() {
					stack = append(stack, normalizeFrame{node: iter.Value().Interface(), out: target{m: m, key: iter.Key().String()}})
				}
			default:
				return nil, fmt.Errorf("wire: unsupported node %T", n)
			}
		}
	}
	return root[0], nil
}

// number picks the narrowest lossless representation of a JSON number.
func number(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return u, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("wire: %q is not a representable number", n)
	}
	return f, nil
}
