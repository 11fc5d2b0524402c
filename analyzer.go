package lmarshal

// NodeInfo is what the analyzer learned about one object.
type NodeInfo struct {
	// References counts how many times the object is reached: once for the root and once
	// per incoming edge.
	References int
	// InCycle reports membership in a cycle: a strongly connected component with more than
	// one object, or an object that refers to itself.
	InCycle bool
}

// Analysis is the result of Analyze.
type Analysis[K comparable] struct {
	nodes map[K]*NodeInfo
}

// Info returns what is known about k. Objects never reached report a zero NodeInfo.
func (a *Analysis[K]) Info(k K) NodeInfo {
	if n, ok := a.nodes[k]; ok {
		return *n
	}
	return NodeInfo{}
}

// Len returns the number of distinct objects reached.
func (a *Analysis[K]) Len() int { return len(a.nodes) }

type analyzeFrame[K comparable] struct {
	node  K
	edges []K
	next  int
}

// Analyze walks the graph reachable from root and computes, per distinct object, its
// reference count and cycle membership. edges must return an object's children in a
// stable order and is called once per object.
//
// The walk is iterative with an explicit stack, so graph depth is bounded by memory only.
// It is Tarjan's strongly connected components algorithm: the classic back-edge check
// flags only the object a cycle closes on, while component membership flags every
// object on the cycle.
func Analyze[K comparable](root K, edges func(K) ([]K, error)) (*Analysis[K], error) {
	var (
		nodes   = map[K]*NodeInfo{root: {References: 1}}
		index   = map[K]int{}
		low     = map[K]int{}
		onStack = map[K]bool{} // visiting: on the current component stack
		comp    []K
		stack   []analyzeFrame[K]
	)

	enter := func(k K) error {
		out, err := edges(k)
		if err != nil {
			return err
		}
		index[k] = len(index)
		low[k] = index[k]
		onStack[k] = true
		comp = append(comp, k)
		stack = append(stack, analyzeFrame[K]{node: k, edges: out})
		return nil
	}

	if err := enter(root); err != nil {
		return nil, err
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.next < len(top.edges) {
			child := top.edges[top.next]
			top.next++

			info, seen := nodes[child]
			if !seen {
				info = &NodeInfo{}
				nodes[child] = info
			}
			info.References++

			if child == top.node {
				info.InCycle = true
			}
			if _, visited := index[child]; !visited {
				if err := enter(child); err != nil {
					return nil, err
				}
			} else if onStack[child] && index[child] < low[top.node] {
				low[top.node] = index[child]
			}
			continue
		}

		// all children processed
		node := top.node
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			parent := stack[len(stack)-1].node
			if low[node] < low[parent] {
				low[parent] = low[node]
			}
		}
		if low[node] != index[node] {
			continue
		}

		// node is the root of a component; pop it
		start := len(comp) - 1
		for comp[start] != node {
			start--
		}
		members := comp[start:]
		comp = comp[:start]
		for _, m := range members {
			onStack[m] = false
			if len(members) > 1 {
				nodes[m].InCycle = true
			}
		}
	}

	return &Analysis[K]{nodes: nodes}, nil
}
