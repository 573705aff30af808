package jobboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

func TestAppendULEB128(t *testing.T) {
	cases := map[uint64][]byte{
		0:       {0x00},
		1:       {0x01},
		127:     {0x7f},
		128:     {0x80, 0x01},
		300:     {0xac, 0x02},
		16384:   {0x80, 0x80, 0x01},
		1 << 32: {0x80, 0x80, 0x80, 0x80, 0x10},
	}
	for n, want := range cases {
		assert.Equal(t, want, appendULEB128(nil, n), "n=%d", n)
	}
}

func TestPureString(t *testing.T) {
	a := PureString("hi")
	assert.Equal(t, ArgPure, a.Kind)
	assert.Equal(t, TypeString, a.Type)
	assert.Equal(t, []byte{0x02, 'h', 'i'}, a.BCS)

	assert.Equal(t, []byte{0x00}, PureString("").BCS)
}

func TestPureStrings(t *testing.T) {
	assert.Equal(t, []byte{0x02, 0x01, 'a', 0x02, 'b', 'c'}, PureStrings([]string{"a", "bc"}).BCS)

	empty := PureStrings(nil)
	assert.Equal(t, []byte{0x00}, empty.BCS)
	assert.Equal(t, []string{}, empty.Value)
}

func TestPureAddress(t *testing.T) {
	a, err := PureAddress("0x6")
	require.NoError(t, err)
	require.Len(t, a.BCS, ledger.AddressLength)
	assert.Equal(t, byte(0x06), a.BCS[31])
	assert.Equal(t, ledger.ClockObjectID, a.Value)

	_, err = PureAddress("0xgg")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPureOptionalU64(t *testing.T) {
	assert.Equal(t, []byte{0x00}, PureOptionalU64(nil).BCS)

	v := uint64(1) << 40
	assert.Equal(t, []byte{0x01, 0, 0, 0, 0, 0, 0x01, 0, 0}, PureOptionalU64(&v).BCS)
}

func TestObjectArg(t *testing.T) {
	a, err := ObjectArg("0x6")
	require.NoError(t, err)
	assert.Equal(t, ArgObject, a.Kind)
	assert.Equal(t, ledger.ClockObjectID, a.ObjectID)
	assert.Nil(t, a.BCS)
}
