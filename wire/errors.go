package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat indicates a format name or file extension with no registered format.
	ErrUnknownFormat = errors.New("wire: unknown format")

	// ErrFrameTooLarge indicates a stream frame exceeding the configured maximum size.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrNilIO indicates a nil io.Reader or io.Writer.
	ErrNilIO = errors.New("wire: nil reader or writer")

	// ErrNonStringKey indicates a decoded mapping with a key that is not a string.
	ErrNonStringKey = errors.New("wire: mapping key is not a string")

	// ErrTrailingData indicates bytes left over after a complete document.
	ErrTrailingData = errors.New("wire: trailing data")
)

// EncodeError wraps a failure to encode a tree in a format.
type EncodeError struct {
	Format string
	parent error
}

func errEncode(format string, parent error) error {
	if parent == nil {
		return nil
	}
	return &EncodeError{Format: format, parent: parent}
}

// Unwrap returns the underlying encoder error.
func (e *EncodeError) Unwrap() error { return e.parent }

// Error returns a string representation of the encoding error.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("wire: encode %s: %s", e.Format, e.parent)
}

// DecodeError wraps a failure to decode a document.
type DecodeError struct {
	Format string
	parent error
}

func errDecode(format string, parent error) error {
	if parent == nil {
		return nil
	}
	return &DecodeError{Format: format, parent: parent}
}

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error { return e.parent }

// Error returns a string representation of the decoding error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode %s: %s", e.Format, e.parent)
}
