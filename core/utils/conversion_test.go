package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat(t *testing.T) {
	assert.Equal(t, 1.5, ToFloat(1.5))
	assert.Equal(t, 1.5, ToFloat(float32(1.5)))
	assert.Equal(t, 7.0, ToFloat(int64(7)))
	assert.Equal(t, 3.0, ToFloat(3))
	assert.Equal(t, 2.5, ToFloat("2.5"))
	assert.Equal(t, 0.0, ToFloat(nil))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "abc", ToString([]byte("abc")))
	assert.Equal(t, "7", ToString(7))
}

func TestToStringSlice(t *testing.T) {
	assert.Nil(t, ToStringSlice(nil))
	assert.Equal(t, []string{"a", "b"}, ToStringSlice([]any{"a", "b"}))
	assert.Equal(t, []string{"x"}, ToStringSlice("x"))
}
