package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeWrapUnwrap(t *testing.T) {
	n := Native{}

	pdu := []byte{0xBB, 0x01, 0x02}
	wrapped, err := n.Wrap(pdu)
	require.NoError(t, err)
	assert.Equal(t, pdu, wrapped)

	_, err = n.Unwrap(nil)
	assert.Error(t, err)

	out, err := n.Unwrap([]byte{0x00, 0xAA})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xAA}, out)
}

func TestIsoWrap(t *testing.T) {
	i := Iso{}

	_, err := i.Wrap(nil)
	assert.Error(t, err)

	wrapped, err := i.Wrap([]byte{0xBB, 0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0xBB, 0x00, 0x00, 0x02, 0x01, 0x02, 0x00}, wrapped)

	wrappedNoData, err := i.Wrap([]byte{0x5A})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x5A, 0x00, 0x00, 0x00}, wrappedNoData)
}

func TestIsoUnwrapSuccess(t *testing.T) {
	i := Iso{}

	out, err := i.Unwrap([]byte{0xCA, 0xFE, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xCA, 0xFE}, out)
}

func TestIsoUnwrapNativeStatusCarriedInSw2(t *testing.T) {
	i := Iso{}

	out, err := i.Unwrap([]byte{0x91, 0xAE})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAE}, out)
}

func TestIsoUnwrapApduError(t *testing.T) {
	i := Iso{}

	_, err := i.Unwrap([]byte{0x69, 0x82})
	assert.Error(t, err)

	_, err = i.Unwrap([]byte{0x00})
	assert.Error(t, err)
}
