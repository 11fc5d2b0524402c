package lmarshal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph(adj map[string][]string) func(string) ([]string, error) {
	return func(k string) ([]string, error) { return adj[k], nil }
}

func TestAnalyze_Tree(t *testing.T) {
	a, err := Analyze("root", graph(map[string][]string{
		"root": {"a", "b"},
		"a":    {"c"},
	}))
	require.NoError(t, err)

	assert.Equal(t, 4, a.Len())
	for _, k := range []string{"root", "a", "b", "c"} {
		assert.Equal(t, NodeInfo{References: 1}, a.Info(k), k)
	}
	assert.Equal(t, NodeInfo{}, a.Info("unreached"))
}

func TestAnalyze_SharedNode(t *testing.T) {
	a, err := Analyze("root", graph(map[string][]string{
		"root": {"a", "b", "shared"},
		"a":    {"shared"},
		"b":    {"shared"},
	}))
	require.NoError(t, err)

	assert.Equal(t, NodeInfo{References: 3}, a.Info("shared"))
	assert.False(t, a.Info("root").InCycle)
}

func TestAnalyze_Cycles(t *testing.T) {
	a, err := Analyze("root", graph(map[string][]string{
		"root": {"x", "self"},
		"x":    {"y"},
		"y":    {"z"},
		"z":    {"x", "tail"},
		"self": {"self"},
	}))
	require.NoError(t, err)

	for _, k := range []string{"x", "y", "z"} {
		assert.True(t, a.Info(k).InCycle, k)
	}
	assert.Equal(t, 2, a.Info("x").References)
	assert.False(t, a.Info("tail").InCycle)
	assert.False(t, a.Info("root").InCycle)
	assert.Equal(t, NodeInfo{References: 2, InCycle: true}, a.Info("self"))
}

func TestAnalyze_CycleThroughRoot(t *testing.T) {
	a, err := Analyze(0, func(k int) ([]int, error) {
		return []int{(k + 1) % 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, NodeInfo{References: 2, InCycle: true}, a.Info(0))
	assert.Equal(t, NodeInfo{References: 1, InCycle: true}, a.Info(1))
}

func TestAnalyze_EdgesCalledOncePerNode(t *testing.T) {
	calls := map[string]int{}
	adj := map[string][]string{"root": {"a", "a", "b"}, "a": {"b"}, "b": {"a"}}
	_, err := Analyze("root", func(k string) ([]string, error) {
		calls[k]++
		return adj[k], nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"root": 1, "a": 1, "b": 1}, calls)
}

func TestAnalyze_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := Analyze("root", func(k string) ([]string, error) {
		if k == "bad" {
			return nil, boom
		}
		return []string{"bad"}, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestAnalyze_DeepChain(t *testing.T) {
	const depth = 200_000
	a, err := Analyze(0, func(k int) ([]int, error) {
		if k == depth-1 {
			return nil, nil
		}
		return []int{k + 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, depth, a.Len())
	assert.Equal(t, NodeInfo{References: 1}, a.Info(depth-1))
}
