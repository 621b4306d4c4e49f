package securemessaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-tools/go_desfire/internal/desfire"
)

func aesContext() *desfire.Context {
	ctx := desfire.NewContext()
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i + 1)
	}
	ctx.SetAuthenticated(0, desfire.AuthSchemeAes, key, nil)

	return ctx
}

func legacyDesContext() *desfire.Context {
	ctx := desfire.NewContext()
	key := make([]byte, 8)
	for i := range key {
		key[i] = byte(i + 1)
	}
	ctx.SetAuthenticated(0, desfire.AuthSchemeLegacy, key, nil)

	return ctx
}

func TestApplyLegacyCommandBoundaryIvPolicyResetsOnlyLegacySessions(t *testing.T) {
	legacy := legacyDesContext()
	legacy.IV = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ApplyLegacyCommandBoundaryIvPolicy(legacy)
	assert.Equal(t, make([]byte, 8), legacy.IV)

	aes := aesContext()
	aes.IV = []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	ApplyLegacyCommandBoundaryIvPolicy(aes)
	assert.Equal(t, []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}, aes.IV)
}

func TestDerivePlainRequestIvRejectsLegacyScheme(t *testing.T) {
	legacy := legacyDesContext()
	_, err := DerivePlainRequestIv(legacy, []byte{0xBD}, true)
	assert.Error(t, err)
}

func TestDerivePlainRequestIvRejectsMissingIvWithoutAllowZero(t *testing.T) {
	ctx := aesContext()
	ctx.IV = nil
	_, err := DerivePlainRequestIv(ctx, []byte{0xBD}, false)
	assert.Error(t, err)
}

func TestPlainRequestResponseIvRoundTrip(t *testing.T) {
	ctx := aesContext()

	reqIv, err := DerivePlainRequestIv(ctx, []byte{0xBD, 0x01}, true)
	require.NoError(t, err)
	require.Len(t, reqIv, 16)

	expectedNextIv, err := cmacForContext(ctx, reqIv, []byte{0x00})
	require.NoError(t, err)

	response := append([]byte{0x00}, expectedNextIv[:8]...)
	nextIv, err := DerivePlainResponseIv(ctx, response, reqIv, 8)
	require.NoError(t, err)
	assert.Equal(t, expectedNextIv, nextIv)
	assert.Equal(t, expectedNextIv, ctx.IV)
}

func TestDerivePlainResponseIvRejectsBadMac(t *testing.T) {
	ctx := aesContext()
	reqIv, err := DerivePlainRequestIv(ctx, []byte{0xBD}, true)
	require.NoError(t, err)

	response := append([]byte{0x00}, make([]byte, 8)...)
	_, err = DerivePlainResponseIv(ctx, response, reqIv, 8)
	assert.Error(t, err)
}

func TestVerifyAuthenticatedPlainPayloadAndUpdateContextIv(t *testing.T) {
	ctx := aesContext()
	reqIv, err := DerivePlainRequestIv(ctx, []byte{0x6F}, true)
	require.NoError(t, err)

	payload := []byte{0x00, 0x01, 0x02}
	status := byte(0x00)
	message := append(append([]byte{}, payload...), status)
	mac, err := cmacForContext(ctx, reqIv, message)
	require.NoError(t, err)

	payloadAndMac := append(append([]byte{}, payload...), mac[:8]...)
	nextIv, err := VerifyAuthenticatedPlainPayloadAndUpdateContextIv(ctx, payloadAndMac, status, reqIv, len(payload), 8)
	require.NoError(t, err)
	assert.Equal(t, mac, nextIv)
	assert.Equal(t, mac, ctx.IV)
}

func TestVerifyAuthenticatedPlainPayloadAutoMacFindsCorrectLength(t *testing.T) {
	ctx := aesContext()
	reqIv, err := DerivePlainRequestIv(ctx, []byte{0x6F}, true)
	require.NoError(t, err)

	payload := []byte{0x00, 0x01, 0x02}
	status := byte(0x00)
	message := append(append([]byte{}, payload...), status)
	mac, err := cmacForContext(ctx, reqIv, message)
	require.NoError(t, err)

	payloadAndMac := append(append([]byte{}, payload...), mac[:8]...)
	gotPayload, nextIv, err := VerifyAuthenticatedPlainPayloadAutoMac(ctx, payloadAndMac, status, reqIv, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, mac, nextIv)
}

func TestUpdateContextIvFromEncryptedCiphertextNonLegacy(t *testing.T) {
	ctx := aesContext()
	ciphertext := make([]byte, 32)
	for i := range ciphertext {
		ciphertext[i] = byte(i)
	}
	err := UpdateContextIvFromEncryptedCiphertext(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, ciphertext[16:], ctx.IV)
}

func TestUpdateContextIvFromEncryptedCiphertextRejectsBadLength(t *testing.T) {
	ctx := aesContext()
	err := UpdateContextIvFromEncryptedCiphertext(ctx, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestUpdateContextIvFromEncryptedCiphertextLegacyResetsInstead(t *testing.T) {
	ctx := legacyDesContext()
	ctx.IV = []byte{1, 1, 1, 1, 1, 1, 1, 1}
	err := UpdateContextIvFromEncryptedCiphertext(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8), ctx.IV)
}

func TestProtectEncryptedPayloadNonLegacyAesCbc(t *testing.T) {
	ctx := aesContext()
	protected, err := ProtectEncryptedPayload(ctx, []byte{1, 2, 3}, false, LegacySeedZero)
	require.NoError(t, err)
	assert.Len(t, protected.EncryptedPayload, 16)
	assert.True(t, protected.UpdateContextIv)
	assert.Equal(t, protected.EncryptedPayload, protected.RequestState)
}

func TestProtectEncryptedPayloadLegacySendModeRoundTrip(t *testing.T) {
	ctx := legacyDesContext()
	plaintext := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	protected, err := ProtectEncryptedPayload(ctx, plaintext, true, LegacySeedZero)
	require.NoError(t, err)
	assert.False(t, protected.UpdateContextIv)

	recovered, err := DecryptLegacySendMode(ctx, protected.EncryptedPayload, LegacySeedZero)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestProtectValueOperationRequestLegacyUsesCrc16(t *testing.T) {
	ctx := legacyDesContext()
	protected, err := ProtectValueOperationRequest(ctx, 0x0C, 1, 100, true, LegacySeedZero)
	require.NoError(t, err)
	assert.Len(t, protected.EncryptedPayload, 8) // 4 value + 2 crc16, padded to 8
}

func TestProtectValueOperationRequestNonLegacyUsesCrc32(t *testing.T) {
	ctx := aesContext()
	protected, err := ProtectValueOperationRequest(ctx, 0x0C, 1, 100, false, LegacySeedZero)
	require.NoError(t, err)
	assert.Len(t, protected.EncryptedPayload, 16) // 4 value + 4 crc32, padded to 16
}
