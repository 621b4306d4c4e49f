// Package desfirecrypto provides the non-block-cipher crypto primitives the
// DESFire authentication and secure-messaging layers depend on: byte
// rotation, random generation, the two DESFire CRC variants, AES-CMAC,
// T-3DES-CMAC, DES parity handling, and session-key assembly.
//
// The CMAC subkey derivation (the Rb/shift-left construction of SP 800-38B)
// takes the constant Rb as a parameter so the same code serves both the AES
// (Rb=0x87) and T-3DES (Rb=0x1B) variants.
package desfirecrypto

import (
	"crypto/rand"

	"github.com/nfc-tools/go_desfire/internal/blockcipher"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// RotateLeft returns a new slice with data rotated left by n bytes
// (circularly), n taken modulo len(data).
func RotateLeft(data []byte, n int) []byte {
	l := len(data)
	if l == 0 {
		return nil
	}
	n = ((n % l) + l) % l
	out := make([]byte, l)
	copy(out, data[n:])
	copy(out[l-n:], data[:n])

	return out
}

// RotateRight returns a new slice with data rotated right by n bytes
// (circularly), n taken modulo len(data).
func RotateRight(data []byte, n int) []byte {
	l := len(data)
	if l == 0 {
		return nil
	}
	n = ((n % l) + l) % l

	return RotateLeft(data, l-n)
}

// GenerateRandom returns n cryptographically random bytes.
func GenerateRandom(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, desfireerr.New(desfireerr.LayerHardware, desfireerr.CodeBusError, "random: %v", err)
	}

	return buf, nil
}

// Crc16Desfire computes the DESFire variant of CRC-16 (initial value
// 0x6363, as used by secure messaging CRC trailers on legacy/ISO sessions).
func Crc16Desfire(data []byte) uint16 {
	var crc uint16 = 0x6363
	for _, b := range data {
		v := b ^ byte(crc&0xFF)
		v ^= v << 4
		crc = (crc >> 8) ^ (uint16(v) << 8) ^ (uint16(v) << 3) ^ (uint16(v) >> 4)
	}

	return crc
}

// Crc32Desfire computes the DESFire variant of CRC-32: the standard
// reflected CRC-32 (poly 0xEDB88320, init 0xFFFFFFFF) then bit-inverted,
// which undoes the stock algorithm's final complement.
func Crc32Desfire(data []byte) uint32 {
	return ^standardCrc32(data)
}

var crc32Table [256]uint32

func init() {
	const poly = 0xEDB88320
	for i := range crc32Table {
		c := uint32(i)
		for range 8 {
			if c&1 != 0 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		crc32Table[i] = c
	}
}

func standardCrc32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = crc32Table[byte(crc)^b] ^ (crc >> 8)
	}

	return ^crc
}

// deriveSubkeys implements the NIST SP 800-38B subkey construction used by
// both AES-CMAC and T-3DES-CMAC: K1 = (L<<1) [^ Rb if msb(L)], K2 = (K1<<1)
// [^ Rb if msb(K1)], where L = permute(zero block).
func deriveSubkeys(l []byte, rb byte) (k1, k2 []byte) {
	bs := len(l)
	k1 = shiftLeftOne(l)
	if l[0]&0x80 != 0 {
		k1[bs-1] ^= rb
	}
	k2 = shiftLeftOne(k1)
	if k1[0]&0x80 != 0 {
		k2[bs-1] ^= rb
	}

	return k1, k2
}

func shiftLeftOne(in []byte) []byte {
	out := make([]byte, len(in))
	var carry byte
	for i := len(in) - 1; i >= 0; i-- {
		out[i] = (in[i] << 1) | carry
		carry = (in[i] >> 7) & 1
	}

	return out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}

	return out
}

// cmacPad applies ISO/IEC 9797-1 padding method 2 (0x80 then zeros) to
// extend msg to a multiple of blockSize, used only when msg isn't already a
// whole number of blocks.
func cmacPad(msg []byte, blockSize int) []byte {
	padLen := blockSize - len(msg)%blockSize
	out := make([]byte, len(msg)+padLen)
	copy(out, msg)
	out[len(msg)] = 0x80

	return out
}

// AesCmac computes AES-CMAC (Rb=0x87, 16-byte output) over message, using
// key (16 bytes) and continuing the CBC-MAC chain from iv16 rather than a
// zero state -- DESFire secure messaging uses the running session IV as
// the CMAC starting state across commands.
func AesCmac(key16, iv16, message []byte) ([]byte, error) {
	if len(iv16) != 16 {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeLengthError, "aes-cmac iv must be 16 bytes")
	}

	return cmacWithChainedIv(message, 16, iv16, func(block []byte) ([]byte, error) {
		return blockcipher.AesEcbEncrypt(block, key16)
	})
}

// T3desCmac computes T-3DES-CMAC (Rb=0x1B, 8-byte output) over message,
// using key (16 or 24 bytes) and continuing from iv8.
func T3desCmac(key, iv8, message []byte) ([]byte, error) {
	if len(iv8) != 8 {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeLengthError, "t3des-cmac iv must be 8 bytes")
	}

	return cmacWithChainedIv(message, 8, iv8, func(block []byte) ([]byte, error) {
		return blockcipher.Des3Encrypt(block, key)
	})
}

// cmacWithChainedIv is cmacGeneric, except the CBC-MAC chain starts from
// startIv instead of an all-zero block. The subkey derivation still uses
// permute(zero) per SP 800-38B -- only the message-processing chain's
// initial state is the session IV.
func cmacWithChainedIv(
	message []byte,
	blockSize int,
	startIv []byte,
	permute func(block []byte) ([]byte, error),
) ([]byte, error) {
	zero := make([]byte, blockSize)
	l, err := permute(zero)
	if err != nil {
		return nil, err
	}
	var rb byte
	if blockSize == 16 {
		rb = 0x87
	} else {
		rb = 0x1B
	}
	k1, k2 := deriveSubkeys(l, rb)

	var blocks [][]byte
	var lastKey []byte
	if len(message) != 0 && len(message)%blockSize == 0 {
		for i := 0; i < len(message); i += blockSize {
			blocks = append(blocks, message[i:i+blockSize])
		}
		lastKey = k1
	} else {
		padded := cmacPad(message, blockSize)
		for i := 0; i < len(padded); i += blockSize {
			blocks = append(blocks, padded[i:i+blockSize])
		}
		lastKey = k2
	}

	h := append([]byte(nil), startIv...)
	for i, blk := range blocks {
		in := blk
		if i == len(blocks)-1 {
			in = xorBytes(blk, lastKey)
		}
		xored := xorBytes(in, h)
		var e error
		h, e = permute(xored)
		if e != nil {
			return nil, e
		}
	}

	return h, nil
}

// ClearParityBits clears bit 0 of every byte in key, used to normalize DES
// key material so parity bits never leak into comparisons or CRCs.
func ClearParityBits(key []byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b &^ 0x01
	}

	return out
}

// GenerateSessionKey assembles the Legacy/ISO-2K3DES session key from the
// two 8-byte challenges: rndA[0..3] || rndB[0..3] || rndA[4..7] || rndB[4..7],
// with parity bits cleared.
func GenerateSessionKey(rndA8, rndB8 []byte) ([]byte, error) {
	if len(rndA8) != 8 || len(rndB8) != 8 {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "rndA/rndB must be 8 bytes each",
		)
	}
	sk := make([]byte, 16)
	copy(sk[0:4], rndA8[0:4])
	copy(sk[4:8], rndB8[0:4])
	copy(sk[8:12], rndA8[4:8])
	copy(sk[12:16], rndB8[4:8])

	return ClearParityBits(sk), nil
}

// GenerateSessionKey3K3DES assembles the 3K3DES session key from the two
// 16-byte challenges.
func GenerateSessionKey3K3DES(rndA16, rndB16 []byte) ([]byte, error) {
	if len(rndA16) != 16 || len(rndB16) != 16 {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "rndA/rndB must be 16 bytes each",
		)
	}
	sk := make([]byte, 24)
	copy(sk[0:4], rndA16[0:4])
	copy(sk[4:8], rndB16[0:4])
	copy(sk[8:12], rndA16[6:10])
	copy(sk[12:16], rndB16[6:10])
	copy(sk[16:20], rndA16[12:16])
	copy(sk[20:24], rndB16[12:16])

	return ClearParityBits(sk), nil
}

// GenerateSessionKeyAES assembles the AES-128 session key from the two
// 16-byte challenges. AES keys carry no parity bits.
func GenerateSessionKeyAES(rndA16, rndB16 []byte) ([]byte, error) {
	if len(rndA16) != 16 || len(rndB16) != 16 {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError, "rndA/rndB must be 16 bytes each",
		)
	}
	sk := make([]byte, 16)
	copy(sk[0:4], rndA16[0:4])
	copy(sk[4:8], rndB16[0:4])
	copy(sk[8:12], rndA16[12:16])
	copy(sk[12:16], rndB16[12:16])

	return sk, nil
}
