package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckSecret(t *testing.T) {
	h, err := HashSecret("BIScusat")
	require.NoError(t, err)
	assert.True(t, CheckSecret("BIScusat", h))
	assert.False(t, CheckSecret("biscusat", h))
}

func TestEqualSecret(t *testing.T) {
	assert.True(t, EqualSecret("k", "k"))
	assert.False(t, EqualSecret("k", "K"))
	assert.False(t, EqualSecret("", "k"))
}
