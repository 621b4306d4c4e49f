package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-tools/go_desfire/internal/desfire"
)

func TestCreateApplicationRejectsOutOfRangeKeyCount(t *testing.T) {
	ctx := desfire.NewContext()

	cmd := &CreateApplication{AID: [3]byte{1, 2, 3}, KeyCount: 0, KeyType: KeyTypeAES}
	_, err := cmd.BuildRequest(ctx)
	assert.Error(t, err)

	cmd = &CreateApplication{AID: [3]byte{1, 2, 3}, KeyCount: 15, KeyType: KeyTypeAES}
	_, err = cmd.BuildRequest(ctx)
	assert.Error(t, err)

	cmd = &CreateApplication{AID: [3]byte{1, 2, 3}, KeyCount: 14, KeyType: KeyTypeAES}
	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCA), req.CommandCode)
}

func TestCreateApplicationEncodesKeySettings2(t *testing.T) {
	ctx := desfire.NewContext()

	cmd := &CreateApplication{AID: [3]byte{0x11, 0x22, 0x33}, KeySettings1: 0x0F, KeyCount: 3, KeyType: KeyTypeAES}
	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	// [AID0,AID1,AID2, KeySettings1, KeySettings2]
	require.Len(t, req.Data, 5)
	assert.Equal(t, byte(0x0F), req.Data[3])
	assert.Equal(t, byte(0x80|3), req.Data[4]) // AES nibble 0x80 | key count 3
}

func TestSelectApplicationClearsAuthentication(t *testing.T) {
	ctx := authenticatedAesContext(0)

	cmd := &SelectApplication{AID: [3]byte{9, 9, 9}}
	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	_, err = cmd.ParseResponse([]byte{0x00}, ctx)
	require.NoError(t, err)

	assert.False(t, ctx.Authenticated)
	assert.Equal(t, [3]byte{9, 9, 9}, ctx.SelectedAID)
}

func TestGetFileIDsRejectsOutOfRangeFileNumber(t *testing.T) {
	ctx := desfire.NewContext()

	cmd := &GetFileIDs{}
	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	_, err = cmd.ParseResponse([]byte{0x00, 0x01, 0x20}, ctx)
	assert.Error(t, err)
}

func TestGetFileIDsAcceptsInRangeFileNumbers(t *testing.T) {
	ctx := desfire.NewContext()

	cmd := &GetFileIDs{}
	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	_, err = cmd.ParseResponse([]byte{0x00, 0x00, 0x1F}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x1F}, cmd.FileIDs())
}
