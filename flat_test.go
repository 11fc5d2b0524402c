package lmarshal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	tree := map[string]any{
		"class": "Job",
		"task": map[string]any{
			"class": "Train",
			"model": map[string]any{"class": "Model", "depth": 3},
		},
		"tags":  []any{"a", map[string]any{"class": "dict"}},
		"empty": map[string]any{},
	}
	flat, err := Flatten(tree, ":")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"class":            "Job",
		"task:class":       "Train",
		"task:model:class": "Model",
		"task:model:depth": 3,
		"tags":             []any{"a", map[string]any{"class": "dict"}},
		"empty":            map[string]any{},
	}, flat)

	back, err := Unflatten(flat, ":")
	require.NoError(t, err)
	assert.Equal(t, tree, back)
}

func TestFlatten_Errors(t *testing.T) {
	_, err := Flatten(map[string]any{"a:b": 1}, ":")
	assert.ErrorIs(t, err, ErrMalformedTree)

	_, err = Flatten(map[string]any{"a": 1}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Unflatten(map[string]any{"a": 1, "a:b": 2}, ":")
	assert.ErrorIs(t, err, ErrMalformedTree)

	_, err = Unflatten(map[string]any{"a": map[string]any{}, "a:b": 2}, ":")
	assert.ErrorIs(t, err, ErrMalformedTree)

	_, err = Unflatten(map[string]any{"a": 1}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCodec_FlatRoundTrip(t *testing.T) {
	c := newTestCodec(t, DefaultConfig())

	shared := &Node{Name: "s"}
	root := &Node{Name: "r", Next: shared, Children: []*Node{shared}}

	flat, err := c.MarshalFlat(root)
	require.NoError(t, err)
	// the shared node is first reached inside the sequence, which is kept whole
	assert.Equal(t, "Node", flat["class"])
	assert.Equal(t, "r", flat["name"])
	assert.Equal(t, "*0", flat["next"])
	assert.IsType(t, []any{}, flat["children"])

	out, err := c.DemarshalFlat(flat)
	require.NoError(t, err)
	got := out.(*Node)
	assert.Same(t, got.Next, got.Children[0])

	_, err = c.MarshalFlat([]any{1})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
