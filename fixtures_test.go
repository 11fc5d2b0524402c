package lmarshal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// --- Fixtures ---

type Point struct {
	X int `lmarshal:"x"`
	Y int `lmarshal:"y"`
}

type Node struct {
	Name     string  `lmarshal:"name"`
	Next     *Node   `lmarshal:"next"`
	Children []*Node `lmarshal:"children"`
}

type Color string

type Level uint8

// newTestRegistry returns a registry with the builtins and the fixture types.
func newTestRegistry(t testing.TB) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	require.NoError(t, RegisterStruct[Point](r, "Point"))
	require.NoError(t, RegisterStruct[*Node](r, "Node"))
	require.NoError(t, RegisterEnum[Color](r, "Color", "red", "green"))
	require.NoError(t, RegisterEnum[Level](r, "Level"))
	return r
}

func newTestCodec(t testing.TB, cfg Config) *Codec {
	t.Helper()
	c, err := New(newTestRegistry(t), cfg)
	require.NoError(t, err)
	return c
}

// roundTrip marshals v and demarshals the result.
func roundTrip(t testing.TB, c *Codec, v any) (any, any) {
	t.Helper()
	tree, err := c.Marshal(v)
	require.NoError(t, err)
	out, err := c.Demarshal(tree)
	require.NoError(t, err)
	return tree, out
}

// chain builds a linked list of n nodes.
func chain(n int) *Node {
	var head *Node
	for i := n - 1; i >= 0; i-- {
		head = &Node{Name: "n", Next: head}
	}
	return head
}
