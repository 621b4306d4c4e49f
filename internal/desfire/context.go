// Package desfire holds the session-of-record (Context) and the
// request/response value types shared by every command and by the secure
// messaging policy. It has no dependency on the transceiver or wire layers;
// those are assembled on top in internal/cardmanager and pkg/desfirecard.
package desfire

import "github.com/nfc-tools/go_desfire/internal/desfireerr"

// CommMode is the communication mode negotiated for the current session.
type CommMode int

const (
	CommModePlain CommMode = iota
	CommModeMaced
	CommModeEnciphered
)

// AuthScheme identifies which authentication protocol produced the current
// session keys; it governs which CMAC/IV rules the secure messaging policy
// applies.
type AuthScheme int

const (
	AuthSchemeNone AuthScheme = iota
	AuthSchemeLegacy
	AuthSchemeIso
	AuthSchemeAes
)

// CipherFamily is the session cipher derived from the session key length
// and AuthScheme.
type CipherFamily int

const (
	CipherNone CipherFamily = iota
	CipherDES
	CipherDES3_2K
	CipherDES3_3K
	CipherAES
)

// Context is the in-memory session state: the single source of truth for
// every secure-messaging decision made while a card is authenticated.
type Context struct {
	Authenticated bool
	CommMode      CommMode
	AuthScheme    AuthScheme

	SessionKeyEnc []byte
	SessionKeyMac []byte
	IV            []byte

	KeyNo byte

	SelectedAID [3]byte

	// SessionEncRndB is the session-encrypted card random retained from
	// authentication; consumed by legacy SEND_MODE IV seeding when a command
	// selects LegacySeedSessionEncryptedRndB.
	SessionEncRndB []byte
}

// NewContext returns an empty, unauthenticated session bound to the PICC
// root application.
func NewContext() *Context {
	return &Context{
		CommMode:    CommModePlain,
		AuthScheme:  AuthSchemeNone,
		SelectedAID: [3]byte{0, 0, 0},
	}
}

// CipherFamily derives the session cipher family from the session key
// length and auth scheme (a 16-byte key means AES under AuthSchemeAes,
// 2K3DES otherwise).
func (c *Context) CipherFamily() CipherFamily {
	if !c.Authenticated {
		return CipherNone
	}
	switch len(c.SessionKeyEnc) {
	case 8:
		return CipherDES
	case 16:
		if c.AuthScheme == AuthSchemeAes {
			return CipherAES
		}

		return CipherDES3_2K
	case 24:
		return CipherDES3_3K
	default:
		return CipherNone
	}
}

// BlockSize returns the CBC block size for the current session cipher: 16
// for AES, 8 for every DES-family cipher.
func (c *Context) BlockSize() int {
	if c.CipherFamily() == CipherAES {
		return 16
	}

	return 8
}

// IsLegacy reports whether the session uses the Legacy authentication
// scheme (DES or 2K3DES key, command-local IV chaining).
func (c *Context) IsLegacy() bool {
	return c.AuthScheme == AuthSchemeLegacy
}

// Reset clears all session state, returning the context to the
// newly-detected state (PICC root selected). Used by FormatPICC and by
// same-slot ChangeKey.
func (c *Context) Reset() {
	c.SelectedAID = [3]byte{0, 0, 0}
	c.Authenticated = false
	c.CommMode = CommModePlain
	c.AuthScheme = AuthSchemeNone
	c.SessionKeyEnc = nil
	c.SessionKeyMac = nil
	c.IV = nil
	c.KeyNo = 0
	c.SessionEncRndB = nil
}

// SelectApplication updates the selected AID and clears authentication, per
// the DESFire rule that selecting any application ends the current session.
func (c *Context) SelectApplication(aid [3]byte) {
	c.SelectedAID = aid
	c.Authenticated = false
	c.CommMode = CommModePlain
	c.AuthScheme = AuthSchemeNone
	c.SessionKeyEnc = nil
	c.SessionKeyMac = nil
	c.IV = nil
}

// SetAuthenticated populates session key material after a successful
// Authenticate exchange: IV is zeroed, commMode becomes Enciphered.
func (c *Context) SetAuthenticated(keyNo byte, scheme AuthScheme, sessionKey []byte, encRndB []byte) {
	c.Authenticated = true
	c.KeyNo = keyNo
	c.AuthScheme = scheme
	c.SessionKeyEnc = sessionKey
	c.SessionKeyMac = sessionKey
	c.CommMode = CommModeEnciphered
	c.SessionEncRndB = encRndB

	bs := 8
	if scheme == AuthSchemeAes {
		bs = 16
	}
	c.IV = make([]byte, bs)
}

// Request is one outgoing DESFire command frame, pre-wire-wrap.
type Request struct {
	CommandCode byte
	Data        []byte
	// ExpectedResponseLength is advisory and not enforced on the wire; no
	// command in this module sets it.
	ExpectedResponseLength int
}

const maxRequestData = 252

// Validate enforces the 252-byte command-data ceiling DESFire's native frame
// size allows per command.
func (r Request) Validate() error {
	if len(r.Data) > maxRequestData {
		return desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeLengthError,
			"request data %d bytes exceeds max %d", len(r.Data), maxRequestData,
		)
	}

	return nil
}

const maxResponseData = 256

// Result is one parsed DESFire response (native framing: status byte
// stripped into StatusCode, remainder in Data).
type Result struct {
	StatusCode byte
	Data       []byte
}

// IsSuccess reports status 0x00.
func (r Result) IsSuccess() bool { return r.StatusCode == 0x00 }

// IsAdditionalFrame reports status 0xAF: more frames follow.
func (r Result) IsAdditionalFrame() bool { return r.StatusCode == 0xAF }

// CardType classifies a detected contactless card by ATQA/SAK/ATS.
type CardType int

const (
	CardTypeUnknown CardType = iota
	CardTypeMifareDesfire
	CardTypeMifareUltralight
	CardTypeMifareClassic
	CardTypeNtag213_215_216
	CardTypeFeliCa
	CardTypeISO14443_4_Generic
)

func (t CardType) String() string {
	switch t {
	case CardTypeMifareDesfire:
		return "MifareDesfire"
	case CardTypeMifareUltralight:
		return "MifareUltralight"
	case CardTypeMifareClassic:
		return "MifareClassic"
	case CardTypeNtag213_215_216:
		return "Ntag213_215_216"
	case CardTypeFeliCa:
		return "FeliCa"
	case CardTypeISO14443_4_Generic:
		return "ISO14443_4_Generic"
	default:
		return "Unknown"
	}
}

// CardInfo is the identification data produced by card detection. ATQA is
// stored little-endian, the order bytes arrive over the wire, even though
// tools conventionally display it byte-swapped; kept as-received rather
// than silently reordered.
type CardInfo struct {
	UID  []byte
	ATQA uint16
	SAK  byte
	ATS  []byte
	Type CardType
}
