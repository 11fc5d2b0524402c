package lmarshal

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedType indicates that marshaling reached a value whose runtime type has no
	// registered binding and is not a plain scalar or sequence.
	ErrUnsupportedType = errors.New("lmarshal: unsupported type")

	// ErrUnknownTypeCode indicates that demarshaling found a type discriminator with no binding.
	ErrUnknownTypeCode = errors.New("lmarshal: unknown type code")

	// ErrConflictingTypeRegistration indicates that a type or a type code is already bound.
	ErrConflictingTypeRegistration = errors.New("lmarshal: conflicting type registration")

	// ErrBrokenReference indicates a reference token whose ordinal is out of range or not yet
	// assigned, or a reference that observed a placeholder later replaced by finalize.
	ErrBrokenReference = errors.New("lmarshal: broken reference")

	// ErrMalformedTree indicates a plain tree node that matches no recognized node shape.
	ErrMalformedTree = errors.New("lmarshal: malformed tree")

	// ErrInvalidConfig indicates a Config that cannot produce an unambiguous tree.
	ErrInvalidConfig = errors.New("lmarshal: invalid config")

	// ErrInvalidBinding indicates a Binding with a missing type, code or handler.
	ErrInvalidBinding = errors.New("lmarshal: invalid binding")

	// ErrRegistryFrozen indicates a registration attempted after Registry.Freeze.
	ErrRegistryFrozen = errors.New("lmarshal: registry is frozen")
)

// PathError records where in the plain tree a marshal or demarshal call failed.
type PathError struct {
	Path string
	Err  error
}

// Error returns the failure prefixed with its tree path.
func (e *PathError) Error() string {
	return e.Err.Error() + " at " + e.Path
}

// Unwrap returns the underlying error kind.
func (e *PathError) Unwrap() error {
	return e.Err
}

// pathNode is one step of a tree path. Paths are built as a parent-linked list so that
// the string form is only materialized when an error is reported.
type pathNode struct {
	parent *pathNode
	key    string
	index  int
	field  bool
}

func (p *pathNode) child(key string) *pathNode {
	return &pathNode{parent: p, key: key, field: true}
}

func (p *pathNode) elem(i int) *pathNode {
	return &pathNode{parent: p, index: i}
}

func (p *pathNode) String() string {
	var steps []*pathNode
	for n := p; n != nil; n = n.parent {
		steps = append(steps, n)
	}
	var b strings.Builder
	b.WriteByte('$')
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].field {
			b.WriteByte('.')
			b.WriteString(steps[i].key)
		} else {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(steps[i].index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func pathError(p *pathNode, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Path: p.String(), Err: err}
}
