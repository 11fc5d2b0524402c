package wire

import (
	"bytes"
	"encoding/json"
	"io"
)

type jsonFormat struct{}

// JSON returns the JSON format. Numbers are decoded losslessly: integers that fit become
// int64 or uint64, everything else float64.
func JSON() Format { return jsonFormat{} }

func (jsonFormat) Name() string         { return "json" }
func (jsonFormat) ContentType() string  { return "application/json" }
func (jsonFormat) Extensions() []string { return []string{".json"} }

func (f jsonFormat) Encode(tree any) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, errEncode(f.Name(), err)
	}
	// Encoder terminates every value with a newline
	return bytes.TrimSuffix(detach(buf), []byte{'\n'}), nil
}

func (f jsonFormat) Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, errDecode(f.Name(), err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errDecode(f.Name(), ErrTrailingData)
	}
	tree, err := Normalize(tree)
	return tree, errDecode(f.Name(), err)
}
