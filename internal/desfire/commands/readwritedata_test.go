package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-tools/go_desfire/internal/desfire"
)

func TestReadDataChunksAcrossMultipleRequests(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := NewReadData(0x01, 0, 300, CommSettingsPlain)

	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xBD), req.CommandCode)
	assert.Equal(t, 240, cmd.chunkRequested)

	chunk1 := make([]byte, 240)
	for i := range chunk1 {
		chunk1[i] = byte(i)
	}
	_, err = cmd.ParseResponse(append([]byte{0x00}, chunk1...), ctx)
	require.NoError(t, err)
	assert.False(t, cmd.IsComplete())

	req, err = cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, cmd.chunkRequested)

	chunk2 := make([]byte, 60)
	for i := range chunk2 {
		chunk2[i] = byte(i + 240)
	}
	_, err = cmd.ParseResponse(append([]byte{0x00}, chunk2...), ctx)
	require.NoError(t, err)
	require.True(t, cmd.IsComplete())

	assert.Len(t, cmd.Data(), 300)
	assert.Equal(t, chunk1, cmd.Data()[:240])
	assert.Equal(t, chunk2, cmd.Data()[240:])
}

func TestReadDataHandlesAdditionalFrameWithinAChunk(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := NewReadData(0x01, 0, 10, CommSettingsPlain)

	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xBD), req.CommandCode)

	_, err = cmd.ParseResponse([]byte{0xAF, 1, 2, 3, 4, 5}, ctx)
	require.NoError(t, err)
	assert.False(t, cmd.IsComplete())

	req, err = cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAF), req.CommandCode)

	_, err = cmd.ParseResponse([]byte{0x00, 6, 7, 8, 9, 10}, ctx)
	require.NoError(t, err)
	require.True(t, cmd.IsComplete())

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, cmd.Data())
}

func TestWriteDataPlainFraming(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := &WriteData{FileNo: 2, Offset: 5, CommSettings: CommSettingsPlain, Plaintext: []byte{0xAA, 0xBB}}

	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3D), req.CommandCode)
	// [fileNo, offset(3 LE), length(3 LE), data...]
	assert.Equal(t, byte(2), req.Data[0])
	assert.Equal(t, []byte{5, 0, 0}, req.Data[1:4])
	assert.Equal(t, []byte{2, 0, 0}, req.Data[4:7])
	assert.Equal(t, []byte{0xAA, 0xBB}, req.Data[7:])

	_, err = cmd.ParseResponse([]byte{0x00}, ctx)
	require.NoError(t, err)
}
