package lmarshal

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the wire-format policy shared by every marshal and demarshal call.
// It is a plain value; once handed to a Codec it is never mutated.
type Config struct {
	// TypeKey is the mapping field holding a type code.
	TypeKey string `toml:"type_key"`
	// LabelKey is the mapping field holding an object's ordinal.
	LabelKey string `toml:"label_key"`
	// ReferencePrefix marks a string as a back-reference; the ordinal follows it.
	ReferencePrefix string `toml:"reference_prefix"`
	// EscapePrefix is prepended to literal strings and keys that would otherwise be ambiguous.
	EscapePrefix string `toml:"escape_prefix"`
	// FlatDictKey separates nested keys in flat encoding.
	FlatDictKey string `toml:"flat_dict_key"`
	// EnumValueKey is the mapping field holding an enum's underlying value.
	EnumValueKey string `toml:"enum_value_key"`

	// LabelAll labels every object, shared or not.
	LabelAll bool `toml:"label_all"`
	// LabelReferenced labels objects reached more than once.
	LabelReferenced bool `toml:"label_referenced"`
	// CircularReferencesOnly restricts labels to cycle members; other shared objects are
	// duplicated inline on every occurrence.
	CircularReferencesOnly bool `toml:"circular_references_only"`
	// ReferenceStrings escapes every string that starts with ReferencePrefix. When false only
	// strings that would parse as a reference token are escaped.
	ReferenceStrings bool `toml:"reference_strings"`
}

// DefaultConfig returns the settings used for job commands: compact output where only
// shared or cyclic objects carry labels.
func DefaultConfig() Config {
	return Config{
		TypeKey:         "class",
		LabelKey:        "label",
		ReferencePrefix: "*",
		EscapePrefix:    "\\",
		FlatDictKey:     ":",
		EnumValueKey:    "value",
		LabelReferenced: true,
	}
}

// Validate reports whether the configuration yields an unambiguous tree.
func (c Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"type_key", c.TypeKey},
		{"label_key", c.LabelKey},
		{"reference_prefix", c.ReferencePrefix},
		{"escape_prefix", c.EscapePrefix},
		{"flat_dict_key", c.FlatDictKey},
		{"enum_value_key", c.EnumValueKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, r.name)
		}
	}

	switch {
	case c.TypeKey == c.LabelKey:
		return fmt.Errorf("%w: type_key and label_key are both %q", ErrInvalidConfig, c.TypeKey)
	case c.EnumValueKey == c.TypeKey || c.EnumValueKey == c.LabelKey:
		return fmt.Errorf("%w: enum_value_key %q collides with a reserved key", ErrInvalidConfig, c.EnumValueKey)
	case c.ReferencePrefix == c.EscapePrefix:
		return fmt.Errorf("%w: reference_prefix and escape_prefix are both %q", ErrInvalidConfig, c.EscapePrefix)
	case strings.HasPrefix(c.ReferencePrefix, c.EscapePrefix):
		// a reference token would be read back as an escaped literal
		return fmt.Errorf("%w: reference_prefix %q starts with escape_prefix %q",
			ErrInvalidConfig, c.ReferencePrefix, c.EscapePrefix)
	}
	return nil
}

// ParseConfig decodes a TOML document over DefaultConfig and validates the result.
// Keys absent from the document keep their default values.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(string(data))
}

// needsLabel applies the labeling policy to one object's analysis result.
// Cycle members are labeled under every policy; without a label their expansion
// would never terminate.
func (c Config) needsLabel(info NodeInfo) bool {
	if c.LabelAll || info.InCycle {
		return true
	}
	return c.LabelReferenced && !c.CircularReferencesOnly && info.References > 1
}

func (c Config) reference(ordinal int) string {
	return c.ReferencePrefix + strconv.Itoa(ordinal)
}

// parseReference returns the ordinal of a reference token. ok is false when s does not
// have the token shape.
func (c Config) parseReference(s string) (ordinal int, ok bool) {
	digits, found := strings.CutPrefix(s, c.ReferencePrefix)
	if !found || digits == "" {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c Config) escapeString(s string) string {
	if strings.HasPrefix(s, c.EscapePrefix) {
		return c.EscapePrefix + s
	}
	if c.ReferenceStrings {
		if strings.HasPrefix(s, c.ReferencePrefix) {
			return c.EscapePrefix + s
		}
		return s
	}
	if _, ok := c.parseReference(s); ok {
		return c.EscapePrefix + s
	}
	return s
}

func (c Config) escapeKey(k string) string {
	if k == c.TypeKey || k == c.LabelKey || strings.HasPrefix(k, c.EscapePrefix) {
		return c.EscapePrefix + k
	}
	return k
}

func (c Config) unescapeKey(k string) string {
	if rest, ok := strings.CutPrefix(k, c.EscapePrefix); ok {
		return rest
	}
	return k
}
