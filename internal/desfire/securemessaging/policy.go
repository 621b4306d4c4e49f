// Package securemessaging implements the four secure-messaging primitives
// DESFire sessions rely on: request/response CMAC derivation and
// verification, authenticated-plain payload verification, and
// encrypted-payload protection -- each parameterized by the session's
// cipher family and authentication scheme, including the legacy
// command-boundary IV reset.
package securemessaging

import (
	"github.com/nfc-tools/go_desfire/internal/blockcipher"
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfirecrypto"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// LegacyIvSeed selects the seed for the legacy SEND_MODE cipher chain's
// C_-1 block.
type LegacyIvSeed int

const (
	LegacySeedZero LegacyIvSeed = iota
	LegacySeedSessionEncryptedRndB
)

// ApplyLegacyCommandBoundaryIvPolicy resets ctx.IV to zero for Legacy-scheme
// sessions. Legacy DES/2K3DES sessions chain CBC state only within a single
// command; every command boundary restarts from zero. This must not be
// "fixed" to a continuously-chained IV: that is a deliberate property of the
// legacy DES/2K3DES cipher chain, not an oversight.
func ApplyLegacyCommandBoundaryIvPolicy(ctx *desfire.Context) {
	if ctx.IsLegacy() {
		ctx.IV = make([]byte, ctx.BlockSize())
	}
}

// DerivePlainRequestIv computes the CMAC of the full command message
// (typically [INS, ...payload]) under the session MAC key, continuing from
// ctx.IV (or a zero block, if ctx.IV is empty and allowZeroIv is true). The
// returned block becomes the request IV / CMAC chaining state for the
// response-side verification that follows.
//
// Not applicable to Legacy DES/2K3DES sessions -- those rely on
// ApplyLegacyCommandBoundaryIvPolicy instead.
func DerivePlainRequestIv(ctx *desfire.Context, message []byte, allowZeroIv bool) ([]byte, error) {
	startIv := ctx.IV
	if len(startIv) == 0 {
		if !allowZeroIv {
			return nil, desfireerr.New(
				desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "missing iv and allowZeroIv is false",
			)
		}
		startIv = make([]byte, ctx.BlockSize())
	}

	switch ctx.CipherFamily() {
	case desfire.CipherAES:
		return desfirecrypto.AesCmac(ctx.SessionKeyMac, startIv, message)
	case desfire.CipherDES3_3K, desfire.CipherDES3_2K:
		if ctx.IsLegacy() {
			return nil, desfireerr.New(
				desfireerr.LayerDesfire, desfireerr.CodeInvalidState,
				"legacy sessions do not derive a plain request iv; use command-boundary reset",
			)
		}

		return desfirecrypto.T3desCmac(ctx.SessionKeyMac, startIv, message)
	default:
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeInvalidState,
			"plain request iv not applicable to legacy des/2k3des sessions",
		)
	}
}

func cmacForContext(ctx *desfire.Context, startIv, message []byte) ([]byte, error) {
	if ctx.CipherFamily() == desfire.CipherAES {
		return desfirecrypto.AesCmac(ctx.SessionKeyMac, startIv, message)
	}

	return desfirecrypto.T3desCmac(ctx.SessionKeyMac, startIv, message)
}

// DerivePlainResponseIv computes the CMAC of response[0] (the status byte),
// continuing from requestIv. If response carries macLen trailing MAC bytes,
// they are verified byte-for-byte against the computed CMAC's prefix. The
// full computed CMAC becomes the caller's next ctx.IV on success.
func DerivePlainResponseIv(
	ctx *desfire.Context,
	response []byte,
	requestIv []byte,
	macLen int,
) ([]byte, error) {
	if len(response) < 1 {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status := response[:1]
	nextIv, err := cmacForContext(ctx, requestIv, status)
	if err != nil {
		return nil, err
	}
	if macLen > 0 {
		trailer := response[1:]
		if len(trailer) < macLen {
			return nil, desfireerr.New(
				desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "response too short for mac trailer",
			)
		}
		mac := trailer[len(trailer)-macLen:]
		if !bytesEqual(mac, nextIv[:macLen]) {
			return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeIntegrityError, "response cmac mismatch")
		}
	}
	ctx.IV = nextIv

	return nextIv, nil
}

// VerifyAuthenticatedPlainPayloadAndUpdateContextIv builds the CMAC message
// payload||status (status appended last per DESFire EV1 convention),
// compares the last macLen bytes of payloadAndMac against the computed
// CMAC's prefix, and stores the full CMAC as the new ctx.IV on success.
func VerifyAuthenticatedPlainPayloadAndUpdateContextIv(
	ctx *desfire.Context,
	payloadAndMac []byte,
	status byte,
	requestIv []byte,
	payloadLen int,
	macLen int,
) ([]byte, error) {
	if payloadLen+macLen != len(payloadAndMac) {
		return nil, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse,
			"payload+mac length %d does not match expected %d", len(payloadAndMac), payloadLen+macLen,
		)
	}
	payload := payloadAndMac[:payloadLen]
	mac := payloadAndMac[payloadLen:]

	message := make([]byte, 0, payloadLen+1)
	message = append(message, payload...)
	message = append(message, status)

	computed, err := cmacForContext(ctx, requestIv, message)
	if err != nil {
		return nil, err
	}
	if macLen > 0 && !bytesEqual(mac, computed[:macLen]) {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeIntegrityError, "payload cmac mismatch")
	}
	ctx.IV = computed

	return computed, nil
}

// AutoMacCandidates is the descending trial order for authenticated-plain
// payload MAC trimming: some card generations append 8, some 4, some none.
var AutoMacCandidates = []int{8, 4, 0}

// VerifyAuthenticatedPlainPayloadAutoMac tries each candidate macLen in
// AutoMacCandidates (descending) and accepts the first one whose
// payloadLen = len(payloadAndMac) - macLen is non-negative and whose CMAC
// verifies. validLen, if non-nil, additionally filters candidate payload
// lengths (e.g. requiring payloadLen to be a multiple of 3 for AID
// triplets).
func VerifyAuthenticatedPlainPayloadAutoMac(
	ctx *desfire.Context,
	payloadAndMac []byte,
	status byte,
	requestIv []byte,
	validLen func(payloadLen int) bool,
) (payload []byte, nextIv []byte, err error) {
	var lastErr error
	for _, macLen := range AutoMacCandidates {
		payloadLen := len(payloadAndMac) - macLen
		if payloadLen < 0 {
			continue
		}
		if validLen != nil && !validLen(payloadLen) {
			continue
		}
		iv, e := VerifyAuthenticatedPlainPayloadAndUpdateContextIv(
			ctx, payloadAndMac, status, requestIv, payloadLen, macLen,
		)
		if e == nil {
			return payloadAndMac[:payloadLen], iv, nil
		}
		lastErr = e
	}
	if lastErr == nil {
		lastErr = desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeIntegrityError, "no automac candidate verified")
	}

	return nil, nil, lastErr
}

// UpdateContextIvFromEncryptedCiphertext advances ctx.IV after an encrypted
// command: for non-legacy sessions, the new IV is the last ciphertext
// block; for legacy sessions, the command-boundary reset applies instead.
func UpdateContextIvFromEncryptedCiphertext(ctx *desfire.Context, ciphertext []byte) error {
	if ctx.IsLegacy() {
		ApplyLegacyCommandBoundaryIvPolicy(ctx)

		return nil
	}
	bs := ctx.BlockSize()
	if len(ciphertext) < bs || len(ciphertext)%bs != 0 {
		return desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse,
			"ciphertext length %d not a positive multiple of block size %d", len(ciphertext), bs,
		)
	}
	ctx.IV = ciphertext[len(ciphertext)-bs:]

	return nil
}

// ProtectedPayload is the result of ProtectEncryptedPayload.
type ProtectedPayload struct {
	EncryptedPayload []byte
	// RequestState is the chaining state produced by this encryption: the
	// last ciphertext block for non-legacy sessions.
	RequestState []byte
	// UpdateContextIv reports whether the caller should immediately advance
	// ctx.IV from RequestState (true for non-legacy; false for legacy,
	// where the command-boundary reset handles it instead).
	UpdateContextIv bool
}

func pad(data []byte, blockSize int) []byte {
	if len(data)%blockSize == 0 {
		return data
	}
	out := make([]byte, len(data)+(blockSize-len(data)%blockSize))
	copy(out, data)

	return out
}

// ProtectEncryptedPayload encrypts plaintext (zero-padded to the session
// block size) under the session key. Non-legacy sessions use ordinary CBC
// with ctx.IV. Legacy sessions (DES or 2K3DES only) use the SEND_MODE
// decrypt-as-permutation chain: C_i = D_K(P_i XOR C_{i-1}), where C_-1
// starts at zero unless legacySeed selects the session-encrypted RndB.
func ProtectEncryptedPayload(
	ctx *desfire.Context,
	plaintext []byte,
	useLegacySendMode bool,
	legacySeed LegacyIvSeed,
) (ProtectedPayload, error) {
	bs := ctx.BlockSize()
	padded := pad(plaintext, bs)

	if !useLegacySendMode {
		var ciphertext []byte
		var err error
		switch ctx.CipherFamily() {
		case desfire.CipherAES:
			ciphertext, err = blockcipher.AesCbcEncrypt(padded, ctx.SessionKeyEnc, ctx.IV)
		case desfire.CipherDES3_3K, desfire.CipherDES3_2K:
			ciphertext, err = blockcipher.Des3CbcEncrypt(padded, ctx.SessionKeyEnc, ctx.IV)
		case desfire.CipherDES:
			ciphertext, err = blockcipher.DesCbcEncrypt(padded, ctx.SessionKeyEnc, ctx.IV)
		default:
			return ProtectedPayload{}, desfireerr.New(
				desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "no session cipher",
			)
		}
		if err != nil {
			return ProtectedPayload{}, err
		}

		return ProtectedPayload{
			EncryptedPayload: ciphertext,
			RequestState:     ciphertext[len(ciphertext)-bs:],
			UpdateContextIv:  true,
		}, nil
	}

	// Legacy SEND_MODE: DES or 2K3DES only.
	prev := make([]byte, bs)
	if legacySeed == LegacySeedSessionEncryptedRndB {
		if len(ctx.SessionEncRndB) < bs {
			return ProtectedPayload{}, desfireerr.New(
				desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "missing sessionEncRndB seed",
			)
		}
		copy(prev, ctx.SessionEncRndB[:bs])
	}

	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += bs {
		block := padded[i : i+bs]
		xored := make([]byte, bs)
		for j := range block {
			xored[j] = block[j] ^ prev[j]
		}
		var out []byte
		var err error
		if ctx.CipherFamily() == desfire.CipherDES {
			out, err = blockcipher.DesDecrypt(xored, ctx.SessionKeyEnc)
		} else {
			out, err = blockcipher.Des3Decrypt(xored, ctx.SessionKeyEnc)
		}
		if err != nil {
			return ProtectedPayload{}, err
		}
		copy(ciphertext[i:i+bs], out)
		prev = out
	}

	return ProtectedPayload{
		EncryptedPayload: ciphertext,
		RequestState:     prev,
		UpdateContextIv:  false,
	}, nil
}

// DecryptLegacySendMode reverses ProtectEncryptedPayload's legacy SEND_MODE
// chain: P_i = E_K(C_i) XOR C_{i-1}. Used by ReadData/GetCardUID-style
// commands that must decrypt an enciphered response under a legacy session.
func DecryptLegacySendMode(ctx *desfire.Context, ciphertext []byte, legacySeed LegacyIvSeed) ([]byte, error) {
	bs := ctx.BlockSize()
	prev := make([]byte, bs)
	if legacySeed == LegacySeedSessionEncryptedRndB && len(ctx.SessionEncRndB) >= bs {
		copy(prev, ctx.SessionEncRndB[:bs])
	}
	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += bs {
		block := ciphertext[i : i+bs]
		var enc []byte
		var err error
		if ctx.CipherFamily() == desfire.CipherDES {
			enc, err = blockcipher.DesEncrypt(block, ctx.SessionKeyEnc)
		} else {
			enc, err = blockcipher.Des3Encrypt(block, ctx.SessionKeyEnc)
		}
		if err != nil {
			return nil, err
		}
		for j := range enc {
			plaintext[i+j] = enc[j] ^ prev[j]
		}
		prev = block
	}

	return plaintext, nil
}

// ProtectValueOperationRequest builds the ciphertext for Credit / Debit /
// LimitedCredit: plaintext = value_LE32 || CRC, where CRC is CRC16 over the
// value alone on legacy DES/2K3DES sessions, or CRC32_DESFire over
// INS||fileNo||value otherwise, padded to block size and then encrypted
// per ProtectEncryptedPayload's rules.
func ProtectValueOperationRequest(
	ctx *desfire.Context,
	cmd byte,
	fileNo byte,
	value int32,
	useLegacySendMode bool,
	legacySeed LegacyIvSeed,
) (ProtectedPayload, error) {
	valueLE := int32ToLE(value)

	var plaintext []byte
	if ctx.IsLegacy() {
		crc := desfirecrypto.Crc16Desfire(valueLE)
		plaintext = append(append([]byte{}, valueLE...), byte(crc), byte(crc>>8))
	} else {
		msg := append([]byte{cmd, fileNo}, valueLE...)
		crc := desfirecrypto.Crc32Desfire(msg)
		plaintext = append(append([]byte{}, valueLE...),
			byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	}

	return ProtectEncryptedPayload(ctx, plaintext, useLegacySendMode, legacySeed)
}

func int32ToLE(v int32) []byte {
	u := uint32(v)

	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
