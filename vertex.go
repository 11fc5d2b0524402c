package lmarshal

import (
	"github.com/tarantool/go-option"
)

// vertex is one VertexTable slot. It is an indirection cell: references resolved while
// the object is still being built read value, and finalize patches value afterwards.
type vertex struct {
	value    any
	binding  *Binding
	done     bool
	observed bool // read by a reference before done
}

// VertexTable holds the objects labeled during one demarshal call, indexed by ordinal.
type VertexTable struct {
	cells []*vertex
}

// Len returns the next ordinal to be assigned.
func (t *VertexTable) Len() int { return len(t.cells) }

// Get returns the object at ordinal, which may still be an unpopulated placeholder.
func (t *VertexTable) Get(ordinal int) option.Generic[any] {
	if ordinal < 0 || ordinal >= len(t.cells) {
		return option.None[any]()
	}
	return option.Some(t.cells[ordinal].value)
}

func (t *VertexTable) append(obj any, b *Binding) *vertex {
	v := &vertex{value: obj, binding: b}
	t.cells = append(t.cells, v)
	return v
}

// observe records that a reference read the cell at ordinal. A cell read before its
// object is finalized must keep the placeholder's identity.
func (t *VertexTable) observe(ordinal int) {
	if v := t.cells[ordinal]; !v.done {
		v.observed = true
	}
}
