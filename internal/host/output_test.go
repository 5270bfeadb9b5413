package host

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBufferNewestFirst(t *testing.T) {
	var b outputBuffer
	assert.Nil(t, b.Read(10))

	b.Append("a")
	b.Append("b")
	b.Append("c")

	assert.Equal(t, []string{"c", "b", "a"}, b.Read(0))
	assert.Equal(t, []string{"c", "b"}, b.Read(2))
	assert.Equal(t, []string{"c", "b", "a"}, b.Read(100))
}

func TestOutputBufferWraps(t *testing.T) {
	var b outputBuffer
	for i := 0; i < outputLines+7; i++ {
		b.Append(fmt.Sprint(i))
	}

	require.Equal(t, outputLines, b.Len())
	got := b.Read(0)
	require.Len(t, got, outputLines)
	assert.Equal(t, fmt.Sprint(outputLines+6), got[0])
	assert.Equal(t, "7", got[outputLines-1])
}

func TestOutputManagerReset(t *testing.T) {
	m := NewOutputManager()
	assert.Nil(t, m.Read(1, 5))

	m.Append(1, "hello")
	m.Append(2, "other")
	assert.Equal(t, []string{"hello"}, m.Read(1, 5))

	m.Reset(1)
	assert.Empty(t, m.Read(1, 5))
	assert.Equal(t, []string{"other"}, m.Read(2, 5))
}
