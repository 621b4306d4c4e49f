package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-tools/go_desfire/internal/desfire"
)

func TestGetVersionChainsThreeFrames(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := NewGetVersion()

	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x60), req.CommandCode)
	assert.False(t, cmd.IsComplete())

	hw := make([]byte, 7)
	for i := range hw {
		hw[i] = byte(i + 1)
	}
	_, err = cmd.ParseResponse(append([]byte{0xAF}, hw...), ctx)
	require.NoError(t, err)
	assert.False(t, cmd.IsComplete())

	req, err = cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAF), req.CommandCode)

	sw := make([]byte, 7)
	for i := range sw {
		sw[i] = byte(i + 10)
	}
	_, err = cmd.ParseResponse(append([]byte{0xAF}, sw...), ctx)
	require.NoError(t, err)
	assert.False(t, cmd.IsComplete())

	prod := make([]byte, 14)
	for i := range prod {
		prod[i] = byte(i + 50)
	}
	_, err = cmd.ParseResponse(append([]byte{0x00}, prod...), ctx)
	require.NoError(t, err)
	require.True(t, cmd.IsComplete())

	v, err := cmd.Version()
	require.NoError(t, err)
	assert.Equal(t, hw, v.Hardware[:])
	assert.Equal(t, sw, v.Software[:])
	assert.Equal(t, prod, v.Production[:])
}

func TestGetVersionRejectsIncompleteData(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := NewGetVersion()

	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	_, err = cmd.ParseResponse([]byte{0x00, 0x01, 0x02}, ctx)
	require.NoError(t, err)

	_, err = cmd.Version()
	assert.Error(t, err)
}
