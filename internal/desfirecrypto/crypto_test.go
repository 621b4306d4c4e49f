package desfirecrypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateLeftRight(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}

	left := RotateLeft(in, 2)
	assert.Equal(t, []byte{3, 4, 5, 1, 2}, left)
	assert.Equal(t, in, RotateRight(left, 2))

	assert.Nil(t, RotateLeft(nil, 3))
	assert.Equal(t, in, RotateLeft(in, 0))
}

func TestCrc16Desfire(t *testing.T) {
	// CRC16-DESFire over an empty message is just the initial value.
	assert.Equal(t, uint16(0x6363), Crc16Desfire(nil))

	// Changing a single byte must change the checksum.
	a := Crc16Desfire([]byte{0x01, 0x02, 0x03})
	b := Crc16Desfire([]byte{0x01, 0x02, 0x04})
	assert.NotEqual(t, a, b)
}

func TestCrc32Desfire(t *testing.T) {
	// CRC32-DESFire over an empty message is the init value itself: no
	// final complement is left applied.
	assert.Equal(t, uint32(0xFFFFFFFF), Crc32Desfire(nil))

	a := Crc32Desfire([]byte("desfire"))
	b := Crc32Desfire([]byte("Desfire"))
	assert.NotEqual(t, a, b)
}

func TestAesCmacNistVector(t *testing.T) {
	// NIST SP 800-38B AES-128-CMAC example 1: empty message.
	key, err := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	require.NoError(t, err)
	want, err := hex.DecodeString("bb1d6929e95937287fa37d129b756746")
	require.NoError(t, err)

	zeroIV := make([]byte, 16)
	got, err := AesCmac(key, zeroIV, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAesCmacChainedIvDiffersFromZero(t *testing.T) {
	key := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	msg := []byte("a DESFire command")

	zeroIV := make([]byte, 16)
	nonZeroIV := make([]byte, 16)
	nonZeroIV[0] = 0xFF

	fromZero, err := AesCmac(key, zeroIV, msg)
	require.NoError(t, err)
	fromNonZero, err := AesCmac(key, nonZeroIV, msg)
	require.NoError(t, err)

	assert.NotEqual(t, fromZero, fromNonZero)
}

func TestClearParityBits(t *testing.T) {
	in := []byte{0xFF, 0x01, 0x00}
	out := ClearParityBits(in)
	assert.Equal(t, []byte{0xFE, 0x00, 0x00}, out)
}

func TestGenerateSessionKeyLegacy(t *testing.T) {
	rndA := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	rndB := []byte{11, 12, 13, 14, 15, 16, 17, 18}

	sk, err := GenerateSessionKey(rndA, rndB)
	require.NoError(t, err)
	require.Len(t, sk, 16)
	assert.Equal(t, ClearParityBits(rndA[0:4]), sk[0:4])
	assert.Equal(t, ClearParityBits(rndB[0:4]), sk[4:8])

	_, err = GenerateSessionKey(rndA[:4], rndB)
	assert.Error(t, err)
}

func TestGenerateSessionKeyAESHasNoParityClearing(t *testing.T) {
	rndA := make([]byte, 16)
	rndB := make([]byte, 16)
	for i := range rndA {
		rndA[i] = byte(i + 1)
		rndB[i] = byte(i + 100)
	}

	sk, err := GenerateSessionKeyAES(rndA, rndB)
	require.NoError(t, err)
	require.Len(t, sk, 16)
	assert.Equal(t, rndA[0:4], sk[0:4])
	assert.Equal(t, rndB[12:16], sk[12:16])
}
