package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimToNil(t *testing.T) {
	assert.Nil(t, TrimToNil(""))
	assert.Nil(t, TrimToNil("   \t\n"))

	value := TrimToNil("  ABC123 ")
	if assert.NotNil(t, value) {
		assert.Equal(t, "ABC123", *value)
	}
}

func TestDerefOrEmpty(t *testing.T) {
	assert.Equal(t, "", DerefOrEmpty(nil))
	assert.Equal(t, "x", DerefOrEmpty(TrimToNil(" x ")))
}
