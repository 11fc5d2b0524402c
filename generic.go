package lmarshal

import (
	"fmt"
)

// DemarshalAs demarshals tree and asserts the result to T.
func DemarshalAs[T any](c *Codec, tree any) (T, error) {
	var zero T
	obj, err := c.Demarshal(tree)
	if err != nil {
		return zero, err
	}
	if obj == nil {
		return zero, nil
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: tree holds %T, want %T", ErrMalformedTree, obj, zero)
	}
	return v, nil
}

// MustNew is New for package-level codecs built from constant configuration.
func MustNew(registry *Registry, config Config, opts ...Option) *Codec {
	c, err := New(registry, config, opts...)
	if err != nil {
		panic(err)
	}
	return c
}
