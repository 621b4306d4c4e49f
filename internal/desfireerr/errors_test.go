package desfireerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRendersLayerAndCode(t *testing.T) {
	err := New(LayerHardware, CodeTimeout, "")
	assert.Equal(t, "Hardware Error: Timeout", err.Error())

	err = New(LayerApdu, CodeWrongLength, "sw=6700")
	assert.Equal(t, "Apdu Error: WrongLength: sw=6700", err.Error())
}

func TestFromStatusByteMapsKnownStatus(t *testing.T) {
	err := FromStatusByte(0xAE)
	assert.Equal(t, LayerDesfire, err.Layer())
	assert.Equal(t, CodeAuthenticationError, err.Code())

	err = FromStatusByte(0x9D)
	assert.Equal(t, CodePermissionDenied, err.Code())
}

func TestFromStatusByteUnmappedFallsBackToInvalidResponse(t *testing.T) {
	err := FromStatusByte(0xF3)
	assert.Equal(t, CodeInvalidResponse, err.Code())
}
