package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
	"github.com/nfc-tools/go_desfire/internal/desfirecrypto"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// ChangeKey (INS=0xC4): the most intricate command in the stack. Derives
// the effective key number, XORs old and new key data for a different-slot
// change, frames the CRC trailer, and protects the payload under the
// session's enciphered secure-messaging mode.
type ChangeKey struct {
	oneShot

	TargetKeyNo   byte
	NewKey        []byte
	NewKeyType    KeyType
	OldKey        []byte // required when TargetKeyNo != the authenticated slot.
	NewKeyVersion byte
	LegacySeed    securemessaging.LegacyIvSeed

	sameKeyChange bool
	protected     securemessaging.ProtectedPayload
}

func (c *ChangeKey) Name() string { return "ChangeKey" }

func (c *ChangeKey) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	effectiveKeyNo, err := c.effectiveKeyNo(ctx)
	if err != nil {
		return desfire.Request{}, err
	}

	c.sameKeyChange = ctx.Authenticated && ctx.KeyNo == c.TargetKeyNo

	newKey, err := normalizeKey(c.NewKeyType, c.NewKey)
	if err != nil {
		return desfire.Request{}, err
	}

	var keyDataForCrypto []byte
	if c.sameKeyChange {
		keyDataForCrypto = newKey
	} else {
		if len(c.OldKey) == 0 {
			return desfire.Request{}, desfireerr.New(
				desfireerr.LayerDesfire, desfireerr.CodeParameterError, "changekey: old key required for a different key slot",
			)
		}
		oldKey, err := normalizeKey(keyTypeFromCipherFamily(ctx.CipherFamily()), c.OldKey)
		if err != nil {
			return desfire.Request{}, err
		}
		keyDataForCrypto, err = xorEqualLength(newKey, oldKey)
		if err != nil {
			return desfire.Request{}, err
		}
	}

	keyStream := append([]byte{}, keyDataForCrypto...)
	if c.NewKeyType == KeyTypeAES {
		keyStream = append(keyStream, c.NewKeyVersion)
	}

	var plaintext []byte
	if ctx.IsLegacy() {
		crc := desfirecrypto.Crc16Desfire(keyStream)
		plaintext = append(append([]byte{}, keyStream...), byte(crc), byte(crc>>8))
	} else {
		msg := append([]byte{0xC4, effectiveKeyNo}, keyStream...)
		crc := desfirecrypto.Crc32Desfire(msg)
		plaintext = append(append([]byte{}, keyStream...),
			byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	}

	if !c.sameKeyChange {
		if ctx.IsLegacy() {
			crc2 := desfirecrypto.Crc16Desfire(newKey)
			plaintext = append(plaintext, byte(crc2), byte(crc2>>8))
		} else {
			crc2 := desfirecrypto.Crc32Desfire(newKey)
			plaintext = append(plaintext, byte(crc2), byte(crc2>>8), byte(crc2>>16), byte(crc2>>24))
		}
	}

	protected, err := securemessaging.ProtectEncryptedPayload(ctx, plaintext, ctx.IsLegacy(), c.LegacySeed)
	if err != nil {
		return desfire.Request{}, err
	}
	c.protected = protected

	data := append([]byte{effectiveKeyNo}, protected.EncryptedPayload...)

	return desfire.Request{CommandCode: 0xC4, Data: data}, nil
}

func (c *ChangeKey) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := c.finish(raw)
	if err != nil {
		return res, err
	}

	if c.protected.UpdateContextIv {
		ctx.IV = c.protected.RequestState
	} else {
		securemessaging.ApplyLegacyCommandBoundaryIvPolicy(ctx)
	}

	// Changing the authenticated key always ends the session; changing any
	// other slot's key never affected the session to begin with.
	if c.sameKeyChange {
		ctx.Reset()
	}

	return res, nil
}

// effectiveKeyNo determines the key number actually sent on the wire: on
// the PICC master application, the high nibble encodes the target cipher
// family; on an application, the target family must match the session's
// current family.
func (c *ChangeKey) effectiveKeyNo(ctx *desfire.Context) (byte, error) {
	if ctx.SelectedAID == [3]byte{0, 0, 0} {
		return (c.TargetKeyNo & 0x0F) | c.NewKeyType.nibble(), nil
	}

	if c.NewKeyType != keyTypeFromCipherFamily(ctx.CipherFamily()) {
		return 0, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeParameterError,
			"changekey: application key family must match session family",
		)
	}

	return c.TargetKeyNo & 0x0F, nil
}

// keyTypeFromCipherFamily maps the session's negotiated cipher to the key
// type its key slots hold.
func keyTypeFromCipherFamily(cf desfire.CipherFamily) KeyType {
	switch cf {
	case desfire.CipherDES:
		return KeyTypeDES
	case desfire.CipherDES3_2K:
		return KeyType2K3DES
	case desfire.CipherDES3_3K:
		return KeyType3K3DES
	case desfire.CipherAES:
		return KeyTypeAES
	default:
		return KeyTypeUnknown
	}
}

// normalizeKey prepares new/old key material for the ChangeKey cryptogram.
// Only genuine single-length DES material is mirrored and parity-cleared;
// 2K3DES, 3K3DES, and AES material passes through unmodified beyond a
// length check, matching the card's own treatment of those key lengths.
func normalizeKey(kt KeyType, key []byte) ([]byte, error) {
	switch kt {
	case KeyTypeDES:
		switch len(key) {
		case 8:
			mirrored := append(append([]byte{}, key...), key...)

			return desfirecrypto.ClearParityBits(mirrored), nil
		case 16:
			if !xorEqualModuloParity(key[:8], key[8:]) {
				return nil, desfireerr.New(
					desfireerr.LayerDesfire, desfireerr.CodeParameterError, "des key halves must match modulo parity bit",
				)
			}

			return desfirecrypto.ClearParityBits(key), nil
		default:
			return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "des key must be 8 or 16 bytes")
		}
	case KeyType2K3DES:
		if len(key) != 16 {
			return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "2k3des key must be 16 bytes")
		}

		return append([]byte{}, key...), nil
	case KeyType3K3DES:
		if len(key) != 24 {
			return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "3k3des key must be 24 bytes")
		}

		return append([]byte{}, key...), nil
	case KeyTypeAES:
		if len(key) != 16 {
			return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "aes key must be 16 bytes")
		}

		return append([]byte{}, key...), nil
	default:
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "unknown key type")
	}
}

func xorEqualModuloParity(a, b []byte) bool {
	for i := range a {
		if a[i]&0xFE != b[i]&0xFE {
			return false
		}
	}

	return true
}

func xorEqualLength(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeParameterError, "key length mismatch %d vs %d", len(a), len(b),
		)
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}

	return out, nil
}
