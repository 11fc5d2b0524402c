package lmarshal

import (
	"fmt"
	"strings"
)

type flattenFrame struct {
	prefix string
	m      map[string]any
}

// Flatten lifts nested mappings into one mapping whose keys are the key paths joined
// by sep: {"a": {"b": 1}} becomes {"a:b": 1} for sep ":". Sequences and empty mappings
// are kept as values. A key containing sep cannot be flattened unambiguously.
func Flatten(tree map[string]any, sep string) (map[string]any, error) {
	if sep == "" {
		return nil, fmt.Errorf("%w: empty separator", ErrInvalidConfig)
	}
	out := make(map[string]any, len(tree))
	stack := []flattenFrame{{m: tree}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for k, v := range f.m {
			if strings.Contains(k, sep) {
				return nil, fmt.Errorf("%w: key %q contains separator %q", ErrMalformedTree, f.prefix+k, sep)
			}
			path := f.prefix + k
			if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
				stack = append(stack, flattenFrame{prefix: path + sep, m: nested})
				continue
			}
			out[path] = v
		}
	}
	return out, nil
}

// Unflatten reverses Flatten.
func Unflatten(flat map[string]any, sep string) (map[string]any, error) {
	if sep == "" {
		return nil, fmt.Errorf("%w: empty separator", ErrInvalidConfig)
	}
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, sep)
		m := out
		for i, part := range parts[:len(parts)-1] {
			existing, ok := m[part]
			if !ok {
				nm := make(map[string]any)
				m[part] = nm
				m = nm
				continue
			}
			next, isMap := existing.(map[string]any)
			if !isMap || len(next) == 0 {
				return nil, fmt.Errorf("%w: %q conflicts with value at %q",
					ErrMalformedTree, key, strings.Join(parts[:i+1], sep))
			}
			m = next
		}
		last := parts[len(parts)-1]
		if _, exists := m[last]; exists {
			return nil, fmt.Errorf("%w: %q conflicts with a nested key", ErrMalformedTree, key)
		}
		m[last] = v
	}
	return out, nil
}
