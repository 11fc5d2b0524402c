package wire

import (
	"gopkg.in/yaml.v3"
)

type yamlFormat struct{}

// YAML returns the YAML format.
func YAML() Format { return yamlFormat{} }

func (yamlFormat) Name() string         { return "yaml" }
func (yamlFormat) ContentType() string  { return "application/yaml" }
func (yamlFormat) Extensions() []string { return []string{".yaml", ".yml"} }

func (f yamlFormat) Encode(tree any) ([]byte, error) {
	tree, err := Normalize(tree)
	if err != nil {
		return nil, errEncode(f.Name(), err)
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, errEncode(f.Name(), err)
	}
	return out, nil
}

func (f yamlFormat) Decode(data []byte) (any, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errDecode(f.Name(), err)
	}
	tree, err := Normalize(tree)
	return tree, errDecode(f.Name(), err)
}
