package jsonx

import (
	"bytes"
	"io"
	"net/http"
)

// MaxBodyBytes caps what ParseStrictJSONBody reads from a request.
const MaxBodyBytes = 1 << 20

// ParseStrictJSONBody decodes a request body with ParseJSONObject after
// rejecting an empty or whitespace-only body. Every error it returns is a
// client error (400): it checks shape only, never required fields or ranges.
func ParseStrictJSONBody[T any](r *http.Request, dst *T) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyBody
	}
	return ParseJSONObject(bytes.NewReader(body), dst)
}
