package lmarshal

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterStruct[*Node](r, "Node"))

	b, err := r.LookupType(reflect.TypeFor[*Node]())
	require.NoError(t, err)
	assert.Equal(t, "Node", b.Code)
	assert.True(t, b.Identity())

	b, err = r.LookupCode("Node")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[*Node](), b.Type)

	assert.True(t, r.Find(reflect.TypeFor[*Node]()).IsSome())
	assert.False(t, r.Find(reflect.TypeFor[Node]()).IsSome())
}

func TestRegistry_Conflicts(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterStruct[*Node](r, "Node"))

	t.Run("SameCode", func(t *testing.T) {
		err := RegisterStruct[Point](r, "Node")
		assert.ErrorIs(t, err, ErrConflictingTypeRegistration)
		assert.False(t, r.Find(reflect.TypeFor[Point]()).IsSome())
	})

	t.Run("SameTypeLeavesCodeUnbound", func(t *testing.T) {
		err := RegisterStruct[*Node](r, "Other")
		assert.ErrorIs(t, err, ErrConflictingTypeRegistration)
		_, err = r.LookupCode("Other")
		assert.ErrorIs(t, err, ErrUnknownTypeCode)
	})

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Lookups(t *testing.T) {
	r := NewRegistry()
	_, err := r.LookupType(reflect.TypeFor[Point]())
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = r.LookupCode("Point")
	assert.ErrorIs(t, err, ErrUnknownTypeCode)
}

func TestRegistry_InvalidBinding(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		b    Binding
	}{
		{"NilType", Binding{Code: "x"}},
		{"EmptyCode", Binding{Type: reflect.TypeFor[int]()}},
		{"MissingHandler", Binding{Type: reflect.TypeFor[int](), Code: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Register(tt.b), ErrInvalidBinding)
		})
	}

	err := Register[*Node](r, "Node", nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidBinding)
}

func TestRegistry_Freeze(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	r.Freeze()
	assert.ErrorIs(t, RegisterStruct[Point](r, "Point"), ErrRegistryFrozen)

	// lookups keep working
	_, err := r.LookupCode(DictCode)
	assert.NoError(t, err)
}

func TestRegistry_Codes(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{"Color", "Level", "Node", "Point", "UUID", "dict"}, r.Codes())
}

func TestRegistry_Default(t *testing.T) {
	_, err := Default().LookupCode(DictCode)
	assert.NoError(t, err)
	_, err = Default().LookupCode(UUIDCode)
	assert.NoError(t, err)
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if RegisterStruct[*Node](r, "Node") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, r.Len())
}
