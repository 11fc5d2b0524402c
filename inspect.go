package lmarshal

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Stats summarizes a plain tree.
type Stats struct {
	Objects    int            `json:"objects" yaml:"objects"`
	Labeled    int            `json:"labeled" yaml:"labeled"`
	References int            `json:"references" yaml:"references"`
	Sequences  int            `json:"sequences" yaml:"sequences"`
	Scalars    int            `json:"scalars" yaml:"scalars"`
	MaxDepth   int            `json:"max_depth" yaml:"max_depth"`
	Codes      map[string]int `json:"codes" yaml:"codes"`
}

type inspectFrame struct {
	node  any
	path  *pathNode
	depth int
}

// Inspect checks that tree is well formed under cfg without a registry: every mapping
// carries a string type code, labels appear in ordinal order, and every reference names
// an ordinal labeled earlier in traversal order.
func Inspect(tree any, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	st := Stats{Codes: make(map[string]int)}
	stack := []inspectFrame{{node: tree}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > st.MaxDepth {
			st.MaxDepth = f.depth
		}

		var err error
		switch n := f.node.(type) {
		case nil, bool, json.Number,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			st.Scalars++
		case string:
			err = inspectString(&st, cfg, n)
		case []any:
			st.Sequences++
			for i := len(n) - 1; i >= 0; i-- {
				stack = append(stack, inspectFrame{node: n[i], path: f.path.elem(i), depth: f.depth + 1})
			}
		case map[string]any:
			stack, err = inspectObject(&st, cfg, stack, f, n)
		case map[any]any:
			var m map[string]any
			if m, err = stringKeys(n); err == nil {
				stack, err = inspectObject(&st, cfg, stack, f, m)
			}
		default:
			rv := reflect.ValueOf(n)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				err = fmt.Errorf("%w: unexpected %T node", ErrMalformedTree, n)
				break
			}
			st.Sequences++
			for i := rv.Len() - 1; i >= 0; i-- {
				stack = append(stack, inspectFrame{node: rv.Index(i).Interface(), path: f.path.elem(i), depth: f.depth + 1})
			}
		}
		if err != nil {
			return Stats{}, pathError(f.path, err)
		}
	}
	return st, nil
}

func inspectString(st *Stats, cfg Config, s string) error {
	if strings.HasPrefix(s, cfg.EscapePrefix) {
		st.Scalars++
		return nil
	}
	if strings.HasPrefix(s, cfg.ReferencePrefix) {
		if ordinal, ok := cfg.parseReference(s); ok {
			if ordinal >= st.Labeled {
				return fmt.Errorf("%w: ordinal %d is not assigned (%d labeled so far)",
					ErrBrokenReference, ordinal, st.Labeled)
			}
			st.References++
			return nil
		}
		if cfg.ReferenceStrings {
			return fmt.Errorf("%w: %q is not a reference token", ErrBrokenReference, s)
		}
	}
	st.Scalars++
	return nil
}

func inspectObject(st *Stats, cfg Config, stack []inspectFrame, f inspectFrame, n map[string]any) ([]inspectFrame, error) {
	code, ok := n[cfg.TypeKey].(string)
	if !ok {
		return stack, fmt.Errorf("%w: mapping without string %q", ErrMalformedTree, cfg.TypeKey)
	}
	if raw, ok := n[cfg.LabelKey]; ok {
		ordinal, err := toInteger[int](raw)
		if err != nil {
			return stack, fmt.Errorf("%q: %w", cfg.LabelKey, err)
		}
		if ordinal != st.Labeled {
			return stack, fmt.Errorf("%w: label %d out of sequence, want %d", ErrMalformedTree, ordinal, st.Labeled)
		}
		st.Labeled++
	}
	st.Objects++
	st.Codes[code]++

	keys := make([]string, 0, len(n))
	for k := range n {
		if k != cfg.TypeKey && k != cfg.LabelKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i := len(keys) - 1; i >= 0; i-- {
		stack = append(stack, inspectFrame{node: n[keys[i]], path: f.path.child(keys[i]), depth: f.depth + 1})
	}
	return stack, nil
}
