package wire

import (
	"bytes"
	"sync"
)

// bufPool reuses encoding buffers across Encode calls.
var bufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// maxPooledSize keeps a single huge document from pinning its buffer in the pool.
const maxPooledSize = 1 << 20

func getBuffer() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxPooledSize {
		bufPool.Put(buf)
	}
}

// detach copies the buffer contents so the buffer can be returned to the pool.
func detach(buf *bytes.Buffer) []byte {
	return append([]byte(nil), buf.Bytes()...)
}
