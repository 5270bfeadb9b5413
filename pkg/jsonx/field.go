package jsonx

import (
	"bytes"
	"encoding/json"
)

// Field[T] tells an absent key apart from an explicit null:
//   - IsSet() == false => key absent
//   - IsNull()         => key present with value null
//   - Value() != nil   => key present with a value
type Field[T any] struct {
	set bool
	val *T
}

func (o Field[T]) IsSet() bool  { return o.set }
func (o Field[T]) IsNull() bool { return o.set && o.val == nil }
func (o Field[T]) Value() *T    { return o.val }

// Or returns the value, or def when the key was absent or null.
func (o Field[T]) Or(def T) T {
	if o.val == nil {
		return def
	}
	return *o.val
}

func (o *Field[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.set, o.val = true, nil
		return nil
	}

	v := new(T)
	if err := json.Unmarshal(b, v); err != nil {
		return err
	}
	o.set, o.val = true, v
	return nil
}
