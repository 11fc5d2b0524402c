package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fixedWriter writes into a fixed-size slice and reports io.ErrShortWrite when it is full.
type fixedWriter struct {
	b []byte
	n int
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	n := copy(w.b[w.n:], p)
	w.n += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// --- Writer Test Suite ---

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	s.T().Run("NilWriter", func(t *testing.T) {
		_, err := NewWriter(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})

	s.T().Run("ReusesBufioWriter", func(t *testing.T) {
		bw := bufio.NewWriter(&bytes.Buffer{})
		w, err := NewWriter(bw)
		require.NoError(t, err)
		assert.Same(t, bw, w.w)
	})
}

func (s *WriterTestSuite) TestBasicWrites() {
	s.writer.WriteUint32(0x11223344)
	s.writer.WriteBytes([]byte{0xAA, 0xBB})
	s.writer.WriteBytes(nil)
	s.Assert().Zero(s.buf.Len(), "data stays buffered until flushed")

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().EqualValues(6, n)
	s.Assert().Equal([]byte{0x11, 0x22, 0x33, 0x44, 0xAA, 0xBB}, s.buf.Bytes())
}

func (s *WriterTestSuite) TestErrorHandling() {
	s.T().Run("ShortBufferError", func(t *testing.T) {
		fixed := &fixedWriter{b: make([]byte, 5)}
		writer, _ := NewWriter(fixed)

		writer.WriteUint32(0x11223344)
		writer.WriteUint32(0xAABBCCDD)

		_, err := writer.Result()
		assert.ErrorIs(t, err, io.ErrShortWrite)
	})

	s.T().Run("WriteAfterErrorIsNoOp", func(t *testing.T) {
		fixed := &fixedWriter{b: make([]byte, 5)}
		writer, _ := NewWriter(fixed)

		writer.WriteUint32(0x11223344)
		writer.WriteUint32(0xAABBCCDD)
		writer.Flush()

		firstErr := writer.Err()
		require.ErrorIs(t, firstErr, io.ErrShortWrite)

		count := writer.Count()
		writer.WriteBytes([]byte{0xFF})
		writer.Flush()
		assert.Equal(t, firstErr, writer.Err(), "the latched error should not change")
		assert.Equal(t, count, writer.Count())
		assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0xAA}, fixed.b)
	})
}

func TestWriter(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

// --- Reader Test Suite ---

type ReaderTestSuite struct {
	suite.Suite
}

func (s *ReaderTestSuite) TestConstructors() {
	_, err := NewReader(nil)
	s.Assert().ErrorIs(err, ErrNilIO)

	br := bufio.NewReader(bytes.NewReader(nil))
	r, err := NewReader(br)
	s.Require().NoError(err)
	s.Assert().Same(br, r.r)
}

func (s *ReaderTestSuite) TestSuccessfulReads() {
	data := []byte{
		0x00, 0xFF, 0xEE, 0xDD, // uint32
		0x11, 0x22, 0x33, // raw bytes
	}
	r, _ := NewReader(bytes.NewReader(data))

	var v32 uint32
	r.ReadUint32(&v32)
	read := r.ReadBytes(3)

	s.Require().NoError(r.Err())
	s.Assert().Equal(uint32(0x00FFEEDD), v32)
	s.Assert().Equal([]byte{0x11, 0x22, 0x33}, read)
	s.Assert().Nil(r.ReadBytes(0))

	// nothing left: a clean EOF
	r.ReadUint32(&v32)
	s.Assert().ErrorIs(r.Err(), io.EOF)
	s.Assert().True(r.IsEOF())

	n, err := r.Result()
	s.Assert().EqualValues(len(data), n)
	s.Assert().ErrorIs(err, io.EOF)
}

func (s *ReaderTestSuite) TestErrorHandling() {
	s.T().Run("ReadPastEOF", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
		var v32 uint32
		r.ReadUint32(&v32)

		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
		assert.False(t, r.IsEOF(), "a partial read is not a clean EOF")
		assert.Zero(t, v32)
	})

	s.T().Run("ReadAfterErrorIsNoOp", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
		var v32 uint32
		r.ReadUint32(&v32)
		firstErr := r.Err()
		require.Error(t, firstErr)

		assert.Nil(t, r.ReadBytes(1))
		_, err := r.Read(make([]byte, 1))
		assert.Equal(t, firstErr, err)
		assert.Equal(t, firstErr, r.Err(), "the latched error should not change")
	})
}

func TestReader(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}
