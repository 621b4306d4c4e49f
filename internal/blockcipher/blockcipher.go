// Package blockcipher provides the pure, stateless block-cipher primitives
// the DESFire secure-messaging and authentication layers are built on:
// single/double/triple DES (ECB and CBC) and AES-128 (ECB and CBC).
//
// Every function here operates on caller-owned byte slices and returns a
// freshly allocated result; none of them retain state between calls. Ground
// truth is the standard library's crypto/des and crypto/aes block ciphers --
// no third-party DES/AES implementation appears anywhere in the retrieved
// reference pack.
package blockcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"

	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// ecb adapts a cipher.Block into an ECB cipher.BlockMode. Go's standard
// library deliberately omits ECB (it is unsafe for general use), so the
// wrapper lives here the same way it does in other ECB-needing codebases.
type ecbEncrypter struct{ b cipher.Block }

func (e *ecbEncrypter) BlockSize() int { return e.b.BlockSize() }

func (e *ecbEncrypter) CryptBlocks(dst, src []byte) {
	bs := e.b.BlockSize()
	for len(src) > 0 {
		e.b.Encrypt(dst[:bs], src[:bs])
		src, dst = src[bs:], dst[bs:]
	}
}

type ecbDecrypter struct{ b cipher.Block }

func (d *ecbDecrypter) BlockSize() int { return d.b.BlockSize() }

func (d *ecbDecrypter) CryptBlocks(dst, src []byte) {
	bs := d.b.BlockSize()
	for len(src) > 0 {
		d.b.Decrypt(dst[:bs], src[:bs])
		src, dst = src[bs:], dst[bs:]
	}
}

func checkBlockMultiple(name string, data []byte, blockSize int) error {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError,
			"%s: data length %d is not a positive multiple of %d", name, len(data), blockSize,
		)
	}

	return nil
}

// DesEncrypt encrypts a single 8-byte block with single-length DES under
// key8 (8 bytes).
func DesEncrypt(block8, key8 []byte) ([]byte, error) {
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	if len(block8) != des.BlockSize {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "des block must be %d bytes", des.BlockSize,
		)
	}
	out := make([]byte, des.BlockSize)
	c.Encrypt(out, block8)

	return out, nil
}

// DesDecrypt decrypts a single 8-byte block with single-length DES under
// key8 (8 bytes).
func DesDecrypt(block8, key8 []byte) ([]byte, error) {
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	if len(block8) != des.BlockSize {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "des block must be %d bytes", des.BlockSize,
		)
	}
	out := make([]byte, des.BlockSize)
	c.Decrypt(out, block8)

	return out, nil
}

// des3Cipher builds a triple-DES block cipher from a 16-byte (2K3DES, K3=K1)
// or 24-byte (3K3DES) key.
func des3Cipher(key []byte) (cipher.Block, error) {
	var key24 []byte
	switch len(key) {
	case 16:
		key24 = make([]byte, 24)
		copy(key24, key)
		copy(key24[16:], key[:8])
	case 24:
		key24 = key
	default:
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeParameterError,
			"3des key must be 16 or 24 bytes, got %d", len(key),
		)
	}
	c, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}

	return c, nil
}

// Des3Encrypt encrypts a single 8-byte block with 2K3DES or 3K3DES.
func Des3Encrypt(block8, key []byte) ([]byte, error) {
	c, err := des3Cipher(key)
	if err != nil {
		return nil, err
	}
	if len(block8) != des.BlockSize {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "des block must be %d bytes", des.BlockSize,
		)
	}
	out := make([]byte, des.BlockSize)
	c.Encrypt(out, block8)

	return out, nil
}

// Des3Decrypt decrypts a single 8-byte block with 2K3DES or 3K3DES.
func Des3Decrypt(block8, key []byte) ([]byte, error) {
	c, err := des3Cipher(key)
	if err != nil {
		return nil, err
	}
	if len(block8) != des.BlockSize {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "des block must be %d bytes", des.BlockSize,
		)
	}
	out := make([]byte, des.BlockSize)
	c.Decrypt(out, block8)

	return out, nil
}

// Des3CbcEncrypt CBC-encrypts data (length a multiple of 8) under a 16- or
// 24-byte 3DES key and an 8-byte IV.
func Des3CbcEncrypt(data, key, iv8 []byte) ([]byte, error) {
	if err := checkBlockMultiple("des3cbc", data, des.BlockSize); err != nil {
		return nil, err
	}
	c, err := des3Cipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c, iv8).CryptBlocks(out, data)

	return out, nil
}

// Des3CbcDecrypt CBC-decrypts data (length a multiple of 8) under a 16- or
// 24-byte 3DES key and an 8-byte IV.
func Des3CbcDecrypt(data, key, iv8 []byte) ([]byte, error) {
	if err := checkBlockMultiple("des3cbc", data, des.BlockSize); err != nil {
		return nil, err
	}
	c, err := des3Cipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c, iv8).CryptBlocks(out, data)

	return out, nil
}

// DesCbcEncrypt CBC-encrypts data (length a multiple of 8) under a single
// 8-byte DES key and an 8-byte IV: plain single-DES CBC, distinct from the
// 2K/3K 3DES variants. Used by the legacy auth path and by non-legacy
// secure messaging on single-DES sessions.
func DesCbcEncrypt(data, key8, iv8 []byte) ([]byte, error) {
	if err := checkBlockMultiple("descbc", data, des.BlockSize); err != nil {
		return nil, err
	}
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c, iv8).CryptBlocks(out, data)

	return out, nil
}

// DesCbcDecrypt CBC-decrypts data (length a multiple of 8) under a single
// 8-byte DES key and an 8-byte IV.
func DesCbcDecrypt(data, key8, iv8 []byte) ([]byte, error) {
	if err := checkBlockMultiple("descbc", data, des.BlockSize); err != nil {
		return nil, err
	}
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c, iv8).CryptBlocks(out, data)

	return out, nil
}

// AesEcbEncrypt encrypts a single 16-byte block with AES-128 ECB.
func AesEcbEncrypt(block16, key16 []byte) ([]byte, error) {
	c, err := aes.NewCipher(key16)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	if len(block16) != aes.BlockSize {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "aes block must be %d bytes", aes.BlockSize,
		)
	}
	out := make([]byte, aes.BlockSize)
	(&ecbEncrypter{b: c}).CryptBlocks(out, block16)

	return out, nil
}

// AesEcbDecrypt decrypts a single 16-byte block with AES-128 ECB.
func AesEcbDecrypt(block16, key16 []byte) ([]byte, error) {
	c, err := aes.NewCipher(key16)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	if len(block16) != aes.BlockSize {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "aes block must be %d bytes", aes.BlockSize,
		)
	}
	out := make([]byte, aes.BlockSize)
	(&ecbDecrypter{b: c}).CryptBlocks(out, block16)

	return out, nil
}

// AesCbcEncrypt CBC-encrypts data (length a multiple of 16) under a 16-byte
// AES key and a 16-byte IV.
func AesCbcEncrypt(data, key16, iv16 []byte) ([]byte, error) {
	if err := checkBlockMultiple("aescbc", data, aes.BlockSize); err != nil {
		return nil, err
	}
	c, err := aes.NewCipher(key16)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c, iv16).CryptBlocks(out, data)

	return out, nil
}

// AesCbcDecrypt CBC-decrypts data (length a multiple of 16) under a 16-byte
// AES key and a 16-byte IV.
func AesCbcDecrypt(data, key16, iv16 []byte) ([]byte, error) {
	if err := checkBlockMultiple("aescbc", data, aes.BlockSize); err != nil {
		return nil, err
	}
	c, err := aes.NewCipher(key16)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "%v", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c, iv16).CryptBlocks(out, data)

	return out, nil
}
