package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x6")
	require.NoError(t, err)
	assert.Equal(t, ClockObjectID, got)

	got, err = NormalizeAddress("  0XABCdef ")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000abcdef", got)
}

func TestNormalizeAddress_Invalid(t *testing.T) {
	for _, in := range []string{"", "0x", "0xzz", "0x" + strings.Repeat("a", 65)} {
		_, err := NormalizeAddress(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0x00a", "0xA"))
	assert.False(t, SameAddress("0xa", "0xb"))
	assert.False(t, SameAddress("nope", "nope"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&RPCError{Code: -32602, Message: "Could not find the referenced transaction"}))
	assert.False(t, IsNotFound(&RPCError{Code: -32000, Message: "server busy"}))
	assert.False(t, IsNotFound(errors.New("not found")))
}
