package wire

import (
	"fmt"
	"io"
)

// DefaultMaxFrameSize bounds a single frame unless overridden with WithMaxFrameSize.
const DefaultMaxFrameSize = 64 << 20

type streamOptions struct {
	maxFrame int
}

// StreamOption configures a StreamWriter or StreamReader.
type StreamOption func(*streamOptions)

// WithMaxFrameSize sets the largest frame payload, in bytes, that is written or accepted.
func WithMaxFrameSize(n int) StreamOption {
	return func(o *streamOptions) {
		if n > 0 {
			o.maxFrame = n
		}
	}
}

func applyStreamOptions(opts []StreamOption) streamOptions {
	o := streamOptions{maxFrame: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StreamWriter writes a sequence of trees as frames: a 4-byte big endian payload length
// followed by the tree encoded in one Format.
// Like Writer, it keeps the first error; after it, all writes become no-ops.
type StreamWriter struct {
	w      *Writer
	format Format
	opts   streamOptions
	frames int
}

// NewStreamWriter returns a StreamWriter encoding trees with f.
func NewStreamWriter(w io.Writer, f Format, opts ...StreamOption) (*StreamWriter, error) {
	bw, err := NewWriter(w)
	if err != nil {
		return nil, err
	}
	return &StreamWriter{w: bw, format: f, opts: applyStreamOptions(opts)}, nil
}

// WriteTree encodes tree and writes it as one frame.
func (s *StreamWriter) WriteTree(tree any) {
	if s.w.Err() != nil {
		return
	}
	payload, err := s.format.Encode(tree)
	if err != nil {
		s.w.setError(err)
		return
	}
	if len(payload) > s.opts.maxFrame {
		s.w.setError(fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(payload), s.opts.maxFrame))
		return
	}

	s.w.WriteUint32(uint32(len(payload)))
	s.w.WriteBytes(payload)
	if s.w.Err() == nil {
		s.frames++
	}
}

// Flush writes any buffered frames to the underlying writer.
func (s *StreamWriter) Flush() error { return s.w.Flush() }

// Result flushes and returns the number of bytes written and the error state.
func (s *StreamWriter) Result() (int64, error) { return s.w.Result() }

func (s *StreamWriter) Count() int64 { return s.w.Count() }
func (s *StreamWriter) Frames() int  { return s.frames }
func (s *StreamWriter) Err() error   { return s.w.Err() }

// StreamReader reads frames written by StreamWriter.
type StreamReader struct {
	r      *Reader
	format Format
	opts   streamOptions
	frames int
}

// NewStreamReader returns a StreamReader decoding frames with f.
func NewStreamReader(r io.Reader, f Format, opts ...StreamOption) (*StreamReader, error) {
	br, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	return &StreamReader{r: br, format: f, opts: applyStreamOptions(opts)}, nil
}

// ReadTree reads and decodes the next frame. It returns io.EOF when the stream ends on a
// frame boundary and io.ErrUnexpectedEOF when it ends inside a frame. Once an error is
// returned, every later call returns it again.
func (s *StreamReader) ReadTree() (any, error) {
	var size uint32
	s.r.ReadUint32(&size)
	if err := s.r.Err(); err != nil {
		return nil, err
	}
	if uint64(size) > uint64(s.opts.maxFrame) {
		s.r.setError(fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, size, s.opts.maxFrame))
		return nil, s.r.Err()
	}

	payload := s.r.ReadBytes(int(size))
	if err := s.r.Err(); err != nil {
		return nil, err
	}
	tree, err := s.format.Decode(payload)
	if err != nil {
		s.r.setError(err)
		return nil, err
	}
	s.frames++
	return tree, nil
}

func (s *StreamReader) Count() int64 { return s.r.Count() }
func (s *StreamReader) Frames() int  { return s.frames }
func (s *StreamReader) Err() error   { return s.r.Err() }

// IsEOF reports whether the stream ended cleanly on a frame boundary.
func (s *StreamReader) IsEOF() bool { return s.r.IsEOF() }
