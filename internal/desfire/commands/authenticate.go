package commands

import (
	"github.com/nfc-tools/go_desfire/internal/blockcipher"
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfirecrypto"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// AuthMode selects which authentication protocol Authenticate runs.
type AuthMode int

const (
	AuthModeLegacy AuthMode = iota
	AuthModeIso
	AuthModeAes
)

func (m AuthMode) insByte() byte {
	switch m {
	case AuthModeLegacy:
		return 0x0A
	case AuthModeIso:
		return 0x1A
	default:
		return 0xAA
	}
}

// Authenticate runs the unified challenge/response authentication state
// machine shared by Legacy DES, ISO 2K/3K 3DES, and AES keys.
type Authenticate struct {
	Mode  AuthMode
	KeyNo byte
	Key   []byte

	st state

	rndB     []byte // decrypted card challenge
	rndA     []byte // host challenge
	blockLen int
}

func NewAuthenticate(mode AuthMode, keyNo byte, key []byte) *Authenticate {
	return &Authenticate{Mode: mode, KeyNo: keyNo, Key: key}
}

func (a *Authenticate) Name() string    { return "Authenticate" }
func (a *Authenticate) IsComplete() bool { return a.st == stateComplete }
func (a *Authenticate) Reset() {
	a.st = stateInitial
	a.rndB, a.rndA = nil, nil
}

func (a *Authenticate) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	switch a.st {
	case stateInitial:
		return desfire.Request{CommandCode: a.Mode.insByte(), Data: []byte{a.KeyNo}}, nil
	case stateAdditionalFrame:
		cryptogram, err := a.buildCryptogram()
		if err != nil {
			return desfire.Request{}, err
		}

		return desfire.Request{CommandCode: 0xAF, Data: cryptogram}, nil
	default:
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "authenticate complete")
	}
}

// blockSize is 16 for AES or when the key is a 3K3DES (24-byte) key -- the
// 3K3DES first stage uses ISO INS=0x1A but a 16-byte block -- and 8 for
// every other DES-family key.
func (a *Authenticate) blockSize() int {
	switch a.Mode {
	case AuthModeAes:
		return 16
	default:
		if len(a.Key) == 24 {
			return 16 // 3K3DES first stage uses a 16-byte block.
		}

		return 8
	}
}

func (a *Authenticate) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]

	switch a.st {
	case stateInitial:
		if status != 0xAF {
			return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeAuthenticationError, "unexpected status 0x%02X", status)
		}
		a.blockLen = a.blockSize()
		if len(data) != a.blockLen {
			return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeAuthenticationError, "bad challenge length %d", len(data))
		}

		encRndB := append([]byte(nil), data...)
		rndB, err := a.decryptChallenge(encRndB, a.zeroIV())
		if err != nil {
			return desfire.Result{}, err
		}
		a.rndB = rndB
		ctx.SessionEncRndB = encRndB

		rndA, err := desfirecrypto.GenerateRandom(a.blockLen)
		if err != nil {
			return desfire.Result{}, err
		}
		a.rndA = rndA

		a.st = stateAdditionalFrame

		return desfire.Result{StatusCode: status, Data: data}, nil

	case stateAdditionalFrame:
		if status != 0x00 {
			return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeAuthenticationError, "unexpected status 0x%02X", status)
		}
		if len(data) != a.blockLen {
			return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeAuthenticationError, "bad response length %d", len(data))
		}

		rndAPrime, err := a.decryptFinal(data)
		if err != nil {
			return desfire.Result{}, err
		}
		recoveredRndA := desfirecrypto.RotateRight(rndAPrime, 1)
		if !bytesEqual(recoveredRndA, a.rndA) {
			return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeAuthenticationError, "rnda mismatch")
		}

		sessionKey, scheme, err := a.deriveSessionKey()
		if err != nil {
			return desfire.Result{}, err
		}
		ctx.SetAuthenticated(a.KeyNo, scheme, sessionKey, ctx.SessionEncRndB)

		a.st = stateComplete

		return desfire.Result{StatusCode: status, Data: data}, nil

	default:
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "authenticate already complete")
	}
}

func (a *Authenticate) zeroIV() []byte { return make([]byte, a.blockLen) }

// decryptChallenge decrypts the card's first response: Legacy uses ECB with
// zero IV; ISO/AES use CBC with zero IV.
func (a *Authenticate) decryptChallenge(encRndB, iv []byte) ([]byte, error) {
	if a.Mode == AuthModeLegacy {
		switch len(a.Key) {
		case 8:
			return blockcipher.DesDecrypt(encRndB, a.Key)
		default:
			return blockcipher.Des3Decrypt(encRndB, a.Key)
		}
	}
	if a.Mode == AuthModeAes {
		return blockcipher.AesCbcDecrypt(encRndB, a.Key, iv)
	}

	return blockcipher.Des3CbcDecrypt(encRndB, a.Key, iv)
}

// buildCryptogram builds and encrypts RndA||RndB' for the AF stage.
func (a *Authenticate) buildCryptogram() ([]byte, error) {
	rndBPrime := desfirecrypto.RotateLeft(a.rndB, 1)
	plain := append(append([]byte{}, a.rndA...), rndBPrime...)

	if a.Mode == AuthModeLegacy {
		return a.legacyCbcEncryptFull(plain)
	}
	if a.Mode == AuthModeAes {
		return blockcipher.AesCbcEncrypt(plain, a.Key, a.zeroIV())
	}

	return blockcipher.Des3CbcEncrypt(plain, a.Key, a.zeroIV())
}

// legacyCbcEncryptFull CBC-encrypts the 16-byte cryptogram with zero IV,
// using whole-block single-DES or 2K/3K-3DES CBC depending on key length.
func (a *Authenticate) legacyCbcEncryptFull(plain []byte) ([]byte, error) {
	iv := a.zeroIV()
	if len(a.Key) == 8 {
		return blockcipher.DesCbcEncrypt(plain, a.Key, iv)
	}

	return blockcipher.Des3CbcEncrypt(plain, a.Key, iv)
}

// decryptFinal decrypts the card's second response to recover RndA'. ISO/AES
// continue the CBC chain from the cryptogram's last ciphertext block;
// Legacy uses the same whole-cryptogram CBC decrypt with zero IV.
func (a *Authenticate) decryptFinal(encRndAPrime []byte) ([]byte, error) {
	if a.Mode == AuthModeLegacy {
		if len(a.Key) == 8 {
			return blockcipher.DesCbcDecrypt(encRndAPrime, a.Key, a.zeroIV())
		}

		return blockcipher.Des3CbcDecrypt(encRndAPrime, a.Key, a.zeroIV())
	}
	if a.Mode == AuthModeAes {
		return blockcipher.AesCbcDecrypt(encRndAPrime, a.Key, a.continuedIV())
	}

	return blockcipher.Des3CbcDecrypt(encRndAPrime, a.Key, a.continuedIV())
}

// continuedIV is the last ciphertext block of the transmitted AF cryptogram,
// the continuing IV for decrypting the card's follow-up response.
func (a *Authenticate) continuedIV() []byte {
	cryptogram, _ := a.buildCryptogram()
	if len(cryptogram) < a.blockLen {
		return a.zeroIV()
	}

	return cryptogram[len(cryptogram)-a.blockLen:]
}

func (a *Authenticate) deriveSessionKey() ([]byte, desfire.AuthScheme, error) {
	switch a.Mode {
	case AuthModeAes:
		sk, err := desfirecrypto.GenerateSessionKeyAES(a.rndA, a.rndB)

		return sk, desfire.AuthSchemeAes, err
	case AuthModeIso:
		if len(a.Key) == 24 {
			sk, err := desfirecrypto.GenerateSessionKey3K3DES(a.rndA, a.rndB)

			return sk, desfire.AuthSchemeIso, err
		}
		sk, err := desfirecrypto.GenerateSessionKey(a.rndA, a.rndB)

		return sk, desfire.AuthSchemeIso, err
	default:
		sk, err := desfirecrypto.GenerateSessionKey(a.rndA, a.rndB)

		return sk, desfire.AuthSchemeLegacy, err
	}
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
