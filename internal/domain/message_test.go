package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateBody(t *testing.T) {
	// Short bodies pass through unchanged
	assert.Equal(t, "hello", TruncateBody("hello"))
	assert.Equal(t, "", TruncateBody(""))

	// Exactly at the limit
	exact := strings.Repeat("a", BodyLimit)
	assert.Equal(t, exact, TruncateBody(exact))

	// Over the limit: result is a strict prefix of the original
	long := strings.Repeat("b", BodyLimit*5)
	truncated := TruncateBody(long)
	assert.Len(t, []rune(truncated), BodyLimit)
	assert.True(t, strings.HasPrefix(long, truncated))
}

func TestTruncateBody_MultiByte(t *testing.T) {
	// Truncation counts characters, not bytes, and never splits a rune
	long := strings.Repeat("日", BodyLimit+10)
	truncated := TruncateBody(long)
	assert.Len(t, []rune(truncated), BodyLimit)
	assert.True(t, strings.HasPrefix(long, truncated))
}
