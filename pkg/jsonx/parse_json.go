package jsonx

import (
	"encoding/json"
	"errors"
	"io"
)

var (
	ErrEmptyBody    = errors.New("empty body")
	ErrTrailingJSON = errors.New("trailing data")
)

// ParseJSONObject decodes exactly one JSON value from src into dst.
// Unknown object fields are rejected.
//
// - Malformed JSON => *json.SyntaxError, io.EOF, io.ErrUnexpectedEOF
// - Type mismatch  => *json.UnmarshalTypeError
// - More values after the first => ErrTrailingJSON
func ParseJSONObject[T any](src io.Reader, dst *T) error {
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}
