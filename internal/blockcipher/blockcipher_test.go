package blockcipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesRoundTrip(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	plain := []byte{8, 7, 6, 5, 4, 3, 2, 1}

	ct, err := DesEncrypt(plain, key)
	require.NoError(t, err)
	assert.NotEqual(t, plain, ct)

	pt, err := DesDecrypt(ct, key)
	require.NoError(t, err)
	assert.Equal(t, plain, pt)
}

func TestDes3RoundTrip(t *testing.T) {
	key16 := make([]byte, 16)
	for i := range key16 {
		key16[i] = byte(i)
	}
	plain := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	ct, err := Des3Encrypt(plain, key16)
	require.NoError(t, err)

	pt, err := Des3Decrypt(ct, key16)
	require.NoError(t, err)
	assert.Equal(t, plain, pt)
}

func TestDes3CbcRoundTrip(t *testing.T) {
	key := make([]byte, 24)
	iv := make([]byte, 8)
	for i := range key {
		key[i] = byte(i + 1)
	}
	data := []byte("16-byte-message!")

	ct, err := Des3CbcEncrypt(data, key, iv)
	require.NoError(t, err)

	pt, err := Des3CbcDecrypt(ct, key, iv)
	require.NoError(t, err)
	assert.Equal(t, data, pt)
}

func TestAesEcbRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	block := make([]byte, 16)
	for i := range key {
		key[i] = byte(i * 3)
		block[i] = byte(i)
	}

	ct, err := AesEcbEncrypt(block, key)
	require.NoError(t, err)
	assert.NotEqual(t, block, ct)

	pt, err := AesEcbDecrypt(ct, key)
	require.NoError(t, err)
	assert.Equal(t, block, pt)
}

func TestAesCbcRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}

	ct, err := AesCbcEncrypt(data, key, iv)
	require.NoError(t, err)

	pt, err := AesCbcDecrypt(ct, key, iv)
	require.NoError(t, err)
	assert.Equal(t, data, pt)
}

func TestRejectsNonBlockMultiple(t *testing.T) {
	key := make([]byte, 16)
	_, err := AesEcbEncrypt([]byte{1, 2, 3}, key)
	assert.Error(t, err)

	_, err = DesEncrypt([]byte{1, 2, 3}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Error(t, err)
}
