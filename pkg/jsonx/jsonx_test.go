package jsonx

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Name  string       `json:"name"`
	Limit Field[int64] `json:"limit"`
}

func TestFieldPresence(t *testing.T) {
	cases := []struct {
		src   string
		set   bool
		null  bool
		value *int64
	}{
		{`{}`, false, false, nil},
		{`{"limit": null}`, true, true, nil},
		{`{"limit": 7}`, true, false, ptr(int64(7))},
	}
	for _, tc := range cases {
		var b body
		require.NoError(t, ParseJSONObject(strings.NewReader(tc.src), &b), tc.src)
		assert.Equal(t, tc.set, b.Limit.IsSet(), tc.src)
		assert.Equal(t, tc.null, b.Limit.IsNull(), tc.src)
		assert.Equal(t, tc.value, b.Limit.Value(), tc.src)
	}

	var b body
	assert.Error(t, ParseJSONObject(strings.NewReader(`{"limit":"x"}`), &b))
	assert.ErrorIs(t, ParseJSONObject(strings.NewReader(`{} 1`), &b), ErrTrailingJSON)
	assert.Error(t, ParseJSONObject(strings.NewReader(`{"other":1}`), &b))
}

func TestParseStrictJSONBody(t *testing.T) {
	parse := func(s string) error {
		var b body
		return ParseStrictJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(s)), &b)
	}

	assert.NoError(t, parse(`{"name":"a"}`))
	assert.True(t, errors.Is(parse("  \n"), ErrEmptyBody))
	assert.True(t, errors.Is(parse(`{} {}`), ErrTrailingJSON))
	assert.Error(t, parse(`{"name":`))
	assert.Error(t, parse(`{"nope":1}`))
}

func TestFieldOr(t *testing.T) {
	var b body
	require.NoError(t, ParseJSONObject(strings.NewReader(`{"limit": null}`), &b))
	assert.EqualValues(t, 9, b.Limit.Or(9))

	require.NoError(t, ParseJSONObject(strings.NewReader(`{"limit": 0}`), &b))
	assert.EqualValues(t, 0, b.Limit.Or(9))
}

func ptr[T any](v T) *T { return &v }
