package bencode

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is the kind of every error caused by bytes that do
	// not match the bencode grammar.
	ErrMalformedInput = errors.New("bencode: malformed input")

	// ErrOutOfBounds is the kind of every error caused by reading past the
	// end of the input.
	ErrOutOfBounds = errors.New("bencode: unexpected end of input")
)

// A SyntaxError describes where and why decoding failed.
//
// Use errors.Is with ErrMalformedInput or ErrOutOfBounds to tell the two
// kinds apart.
type SyntaxError struct {
	Offset int
	Msg    string
	Kind   error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Msg)
}

// Unwrap returns the kind of the error.
func (e *SyntaxError) Unwrap() error {
	return e.Kind
}

func malformed(offset int, format string, args ...interface{}) error {
	return &SyntaxError{Offset: offset, Msg: fmt.Sprintf(format, args...), Kind: ErrMalformedInput}
}

func outOfBounds(offset int, format string, args ...interface{}) error {
	return &SyntaxError{Offset: offset, Msg: fmt.Sprintf(format, args...), Kind: ErrOutOfBounds}
}
