package lmarshal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oy3o/lmarshal/wire"
)

func TestCodec_New(t *testing.T) {
	c, err := New(nil, DefaultConfig())
	require.NoError(t, err)
	assert.Same(t, Default(), c.Registry())
	assert.Equal(t, DefaultConfig(), c.Config())
}

func TestCodec_LogsSummaries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(newTestRegistry(t), DefaultConfig(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	shared := &Node{Name: "s"}
	tree, err := c.Marshal([]*Node{shared, shared})
	require.NoError(t, err)
	_, err = c.Demarshal(tree)
	require.NoError(t, err)
	_, err = c.Demarshal(map[string]any{"class": "Nope"})
	require.Error(t, err)

	marshaled := logs.FilterMessage("marshaled").All()
	require.Len(t, marshaled, 1)
	assert.Equal(t, map[string]any{
		"objects":    int64(1),
		"labeled":    int64(1),
		"references": int64(1),
	}, marshaled[0].ContextMap())

	assert.Equal(t, 1, logs.FilterMessage("demarshaled").Len())
	assert.Equal(t, 1, logs.FilterMessage("demarshal failed").Len())
}

func TestCodec_WireRoundTrip(t *testing.T) {
	c := newTestCodec(t, DefaultConfig())

	shared := &Node{Name: "*0"}
	root := &Node{Name: "\\root", Children: []*Node{shared, shared, {Name: "leaf"}}}
	root.Next = root
	in := []any{root, Point{X: -1, Y: 1 << 40}, Color("red"), Level(200), "*abc", 2.5, true, nil}

	tree, err := c.Marshal(in)
	require.NoError(t, err)

	for _, name := range wire.Names() {
		t.Run(name, func(t *testing.T) {
			f, err := wire.Lookup(name)
			require.NoError(t, err)

			data, err := f.Encode(tree)
			require.NoError(t, err)
			decoded, err := f.Decode(data)
			require.NoError(t, err)

			st, err := Inspect(decoded, c.Config())
			require.NoError(t, err)
			assert.Equal(t, 2, st.Labeled)

			out, err := c.Demarshal(decoded)
			require.NoError(t, err)
			seq := out.([]any)
			require.Len(t, seq, len(in))

			got := seq[0].(*Node)
			assert.Equal(t, "\\root", got.Name)
			assert.Same(t, got, got.Next)
			require.Len(t, got.Children, 3)
			assert.Same(t, got.Children[0], got.Children[1])
			assert.Equal(t, "*0", got.Children[0].Name)
			assert.Equal(t, "leaf", got.Children[2].Name)

			assert.Equal(t, Point{X: -1, Y: 1 << 40}, seq[1])
			assert.Equal(t, Color("red"), seq[2])
			assert.Equal(t, Level(200), seq[3])
			assert.Equal(t, "*abc", seq[4])
			assert.EqualValues(t, 2.5, seq[5])
			assert.Equal(t, true, seq[6])
			assert.Nil(t, seq[7])
		})
	}
}

func TestCodec_Point_JSON(t *testing.T) {
	c := newTestCodec(t, DefaultConfig())
	tree, err := c.Marshal(Point{X: 1, Y: 2})
	require.NoError(t, err)

	data, err := wire.JSON().Encode(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{"class":"Point","x":1,"y":2}`, string(data))

	decoded, err := wire.JSON().Decode(data)
	require.NoError(t, err)
	out, err := c.Demarshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2}, out)
}

func TestCodec_Concurrent(t *testing.T) {
	c := newTestCodec(t, DefaultConfig())

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := &Node{Name: "n"}
			n.Next = n
			tree, err := c.Marshal([]*Node{n, n})
			if err != nil {
				errs <- err
				return
			}
			out, err := c.Demarshal(tree)
			if err != nil {
				errs <- err
				return
			}
			seq := out.([]any)
			if seq[0] != seq[1] {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
