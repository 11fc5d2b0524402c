// Package wire encodes plain trees, as produced by lmarshal.Codec.Marshal, to bytes and
// back. Every format decodes to the same shapes: nil, bool, int64, uint64, float64,
// string, []any and map[string]any.
package wire

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format is one byte encoding of plain trees.
type Format interface {
	// Name is the short name used on the command line, e.g. "json".
	Name() string
	ContentType() string
	// Extensions lists file extensions, with the leading dot, recognized by ForPath.
	Extensions() []string
	Encode(tree any) ([]byte, error)
	Decode(data []byte) (any, error)
}

var (
	byName      = map[string]Format{}
	byExtension = map[string]Format{}
)

func init() {
	for _, f := range []Format{JSON(), YAML(), mustCBOR(), MsgPack()} {
		register(f)
	}
}

func register(f Format) {
	byName[f.Name()] = f
	for _, ext := range f.Extensions() {
		byExtension[ext] = f
	}
}

// Lookup returns the format registered under name.
func Lookup(name string) (Format, error) {
	if f, ok := byName[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ForPath picks a format by the extension of path.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := byExtension[ext]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: no format for extension %q", ErrUnknownFormat, ext)
}

// Names returns the registered format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
