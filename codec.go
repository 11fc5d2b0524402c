// Package lmarshal converts object graphs that may share objects or contain cycles into
// plain trees of scalars, sequences and string-keyed mappings, and back.
//
// A plain tree can be written as JSON or any similar format. Every object is a mapping
// carrying its type code. Objects that are reached more than once (or that sit on a cycle)
// carry a label ordinal, and later occurrences are written as reference tokens naming that
// ordinal. Demarshaling rebuilds the graph with the same sharing and cycles.
//
// Sharing is tracked for pointers and maps only. Slices, arrays and struct values are
// copied into the tree at every occurrence, so a slice held by two objects comes back
// as two equal slices; share it through a pointer to a registered type instead.
package lmarshal

import (
	"fmt"

	"go.uber.org/zap"
)

// Codec marshals and demarshals using one Registry and one Config.
// It holds no per-call state and is safe for concurrent use.
type Codec struct {
	registry *Registry
	config   Config
	logger   *zap.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger used for per-call debug summaries.
func WithLogger(l *zap.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Codec. A nil registry selects Default().
func New(registry *Registry, config Config, opts ...Option) (*Codec, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = Default()
	}
	c := &Codec{registry: registry, config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Registry returns the codec's registry.
func (c *Codec) Registry() *Registry { return c.registry }

// Config returns the codec's configuration.
func (c *Codec) Config() Config { return c.config }

// Marshal converts the graph reachable from root into a plain tree.
// Nothing is returned on failure; errors carry the tree path as a *PathError.
func (c *Codec) Marshal(root any) (any, error) {
	tree, m, err := c.marshal(root)
	if err != nil {
		c.logger.Debug("marshal failed", zap.Error(err))
		return nil, err
	}
	c.logger.Debug("marshaled",
		zap.Int("objects", m.objects),
		zap.Int("labeled", m.labeled),
		zap.Int("references", m.references),
	)
	return tree, nil
}

// Demarshal rebuilds a graph from a plain tree produced by Marshal under an equivalent
// Config and Registry.
func (c *Codec) Demarshal(tree any) (any, error) {
	obj, d, err := c.demarshal(tree)
	if err != nil {
		c.logger.Debug("demarshal failed", zap.Error(err))
		return nil, err
	}
	c.logger.Debug("demarshaled",
		zap.Int("objects", d.objects),
		zap.Int("labeled", d.table.Len()),
		zap.Int("references", d.references),
	)
	return obj, nil
}

// MarshalFlat marshals root and flattens the resulting mapping with Config.FlatDictKey.
// root must marshal to a mapping.
func (c *Codec) MarshalFlat(root any) (map[string]any, error) {
	tree, err := c.Marshal(root)
	if err != nil {
		return nil, err
	}
	m, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not marshal to a mapping", ErrUnsupportedType, root)
	}
	return Flatten(m, c.config.FlatDictKey)
}

// DemarshalFlat reverses MarshalFlat.
func (c *Codec) DemarshalFlat(flat map[string]any) (any, error) {
	tree, err := Unflatten(flat, c.config.FlatDictKey)
	if err != nil {
		return nil, err
	}
	return c.Demarshal(tree)
}
