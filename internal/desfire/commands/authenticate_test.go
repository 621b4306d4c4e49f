package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-tools/go_desfire/internal/blockcipher"
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfirecrypto"
)

// TestAuthenticateAesFullChallengeResponse drives the whole AES
// authentication state machine against a hand-simulated card peer built
// from the same CBC primitives Authenticate itself uses.
func TestAuthenticateAesFullChallengeResponse(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i + 1)
	}
	ctx := desfire.NewContext()
	cmd := NewAuthenticate(AuthModeAes, 3, key)

	req, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), req.CommandCode)
	assert.Equal(t, []byte{3}, req.Data)

	zeroIV := make([]byte, 16)
	rndB := make([]byte, 16)
	for i := range rndB {
		rndB[i] = byte(0x40 + i)
	}
	encRndB, err := blockcipher.AesCbcEncrypt(rndB, key, zeroIV)
	require.NoError(t, err)

	_, err = cmd.ParseResponse(append([]byte{0xAF}, encRndB...), ctx)
	require.NoError(t, err)
	assert.False(t, cmd.IsComplete())
	assert.Equal(t, encRndB, ctx.SessionEncRndB)

	req2, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAF), req2.CommandCode)

	plain, err := blockcipher.AesCbcDecrypt(req2.Data, key, zeroIV)
	require.NoError(t, err)
	rndA := plain[:16]
	rndBPrime := plain[16:]
	assert.Equal(t, desfirecrypto.RotateLeft(rndB, 1), rndBPrime)

	rndAPrime := desfirecrypto.RotateLeft(rndA, 1)
	continuedIV := req2.Data[len(req2.Data)-16:]
	encRndAPrime, err := blockcipher.AesCbcEncrypt(rndAPrime, key, continuedIV)
	require.NoError(t, err)

	_, err = cmd.ParseResponse(append([]byte{0x00}, encRndAPrime...), ctx)
	require.NoError(t, err)
	require.True(t, cmd.IsComplete())

	assert.True(t, ctx.Authenticated)
	assert.Equal(t, byte(3), ctx.KeyNo)
	assert.Equal(t, desfire.AuthSchemeAes, ctx.AuthScheme)

	wantSessionKey, err := desfirecrypto.GenerateSessionKeyAES(rndA, rndB)
	require.NoError(t, err)
	assert.Equal(t, wantSessionKey, ctx.SessionKeyEnc)
}

func TestAuthenticateRejectsWrongInitialStatus(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := NewAuthenticate(AuthModeAes, 0, make([]byte, 16))
	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	_, err = cmd.ParseResponse([]byte{0x00}, ctx)
	assert.Error(t, err)
}

func TestAuthenticateRejectsBadChallengeLength(t *testing.T) {
	ctx := desfire.NewContext()
	cmd := NewAuthenticate(AuthModeAes, 0, make([]byte, 16))
	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	_, err = cmd.ParseResponse(append([]byte{0xAF}, make([]byte, 8)...), ctx)
	assert.Error(t, err)
}

func TestAuthenticateRejectsRndAMismatch(t *testing.T) {
	key := make([]byte, 16)
	ctx := desfire.NewContext()
	cmd := NewAuthenticate(AuthModeAes, 0, key)
	_, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	zeroIV := make([]byte, 16)
	rndB := make([]byte, 16)
	encRndB, err := blockcipher.AesCbcEncrypt(rndB, key, zeroIV)
	require.NoError(t, err)
	_, err = cmd.ParseResponse(append([]byte{0xAF}, encRndB...), ctx)
	require.NoError(t, err)

	req2, err := cmd.BuildRequest(ctx)
	require.NoError(t, err)

	// Respond with garbage instead of the correctly rotated RndA.
	garbage := make([]byte, 16)
	for i := range garbage {
		garbage[i] = 0xFF
	}
	continuedIV := req2.Data[len(req2.Data)-16:]
	encGarbage, err := blockcipher.AesCbcEncrypt(garbage, key, continuedIV)
	require.NoError(t, err)

	_, err = cmd.ParseResponse(append([]byte{0x00}, encGarbage...), ctx)
	assert.Error(t, err)
	assert.False(t, ctx.Authenticated)
}
