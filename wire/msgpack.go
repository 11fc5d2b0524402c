package wire

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

type msgpackFormat struct{}

// MsgPack returns the MessagePack format. Mapping keys are written in sorted order so
// equal trees encode to equal bytes.
func MsgPack() Format { return msgpackFormat{} }

func (msgpackFormat) Name() string         { return "msgpack" }
func (msgpackFormat) ContentType() string  { return "application/msgpack" }
func (msgpackFormat) Extensions() []string { return []string{".msgpack", ".mpk"} }

func (f msgpackFormat) Encode(tree any) ([]byte, error) {
	tree, err := Normalize(tree)
	if err != nil {
		return nil, errEncode(f.Name(), err)
	}
	buf := getBuffer()
	defer putBuffer(buf)

	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(tree); err != nil {
		return nil, errEncode(f.Name(), err)
	}
	return detach(buf), nil
}

func (f msgpackFormat) Decode(data []byte) (any, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	tree, err := dec.DecodeInterface()
	if err != nil {
		return nil, errDecode(f.Name(), err)
	}
	if r.Len() > 0 {
		return nil, errDecode(f.Name(), ErrTrailingData)
	}
	tree, err = Normalize(tree)
	return tree, errDecode(f.Name(), err)
}
