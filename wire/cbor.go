package wire

import (
	"reflect"

	cbor "github.com/fxamacker/cbor/v2"
)

// maxCBORNesting is the deepest nesting the CBOR decoder accepts.
const maxCBORNesting = 65535

type cborFormat struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR format using canonical encoding.
func CBOR() (Format, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		MaxNestedLevels: maxCBORNesting,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborFormat{enc: em, dec: dm}, nil
}

func mustCBOR() Format {
	f, err := CBOR()
	if err != nil {
		panic(err)
	}
	return f
}

func (cborFormat) Name() string         { return "cbor" }
func (cborFormat) ContentType() string  { return "application/cbor" }
func (cborFormat) Extensions() []string { return []string{".cbor"} }

func (f cborFormat) Encode(tree any) ([]byte, error) {
	tree, err := Normalize(tree)
	if err != nil {
		return nil, errEncode(f.Name(), err)
	}
	out, err := f.enc.Marshal(tree)
	if err != nil {
		return nil, errEncode(f.Name(), err)
	}
	return out, nil
}

func (f cborFormat) Decode(data []byte) (any, error) {
	var tree any
	if err := f.dec.Unmarshal(data, &tree); err != nil {
		return nil, errDecode(f.Name(), err)
	}
	tree, err := Normalize(tree)
	return tree, errDecode(f.Name(), err)
}
