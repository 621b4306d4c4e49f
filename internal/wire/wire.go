// Package wire implements the two PDU-to-APDU wrappers DESFire cards speak:
// Native (identity passthrough) and ISO 7816-4 (CLA=0x90 wrapping). Commands
// build a native [INS, data...] PDU; the active Wire implementation adapts
// it to whatever the transceiver/reader actually expects on the bus.
package wire

import "github.com/nfc-tools/go_desfire/internal/desfireerr"

// Wire wraps an outgoing native PDU into an APDU and unwraps an incoming
// APDU response back into native [status, data...] framing.
type Wire interface {
	Wrap(pdu []byte) ([]byte, error)
	Unwrap(apdu []byte) ([]byte, error)
}

// Native is the identity Wire: used when the reader speaks raw DESFire
// native framing directly (e.g. PN532 InDataExchange against a DESFire
// card without ISO wrapping).
type Native struct{}

func (Native) Wrap(pdu []byte) ([]byte, error) {
	return pdu, nil
}

func (Native) Unwrap(apdu []byte) ([]byte, error) {
	if len(apdu) == 0 {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty native response")
	}

	return apdu, nil
}

// Iso wraps native PDUs as ISO 7816-4 APDUs: CLA=0x90, INS=cmd, P1=P2=0x00,
// with Lc/data present only when pdu carries a data payload, trailing Le=0x00.
type Iso struct{}

func (Iso) Wrap(pdu []byte) ([]byte, error) {
	if len(pdu) == 0 {
		return nil, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "empty pdu")
	}
	ins := pdu[0]
	data := pdu[1:]

	apdu := make([]byte, 0, 6+len(data))
	apdu = append(apdu, 0x90, ins, 0x00, 0x00)
	if len(data) > 0 {
		apdu = append(apdu, byte(len(data)))
		apdu = append(apdu, data...)
	}
	apdu = append(apdu, 0x00)

	return apdu, nil
}

// Unwrap requires at least 2 bytes (SW1, SW2). Only SW1 in {0x90, 0x91} is
// accepted: SW1=0x90,SW2=0x00 means success (native status 0x00); SW1=0x91
// carries the DESFire status byte directly in SW2. Any other SW1 is an Apdu
// layer error (wire-level fault, not a DESFire status).
func (Iso) Unwrap(apdu []byte) ([]byte, error) {
	if len(apdu) < 2 {
		return nil, desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeWrongLength, "apdu shorter than sw1/sw2")
	}
	data := apdu[:len(apdu)-2]
	sw1 := apdu[len(apdu)-2]
	sw2 := apdu[len(apdu)-1]

	switch sw1 {
	case 0x90:
		if sw2 != 0x00 {
			return nil, mapApduStatus(sw1, sw2)
		}
		out := make([]byte, 0, 1+len(data))
		out = append(out, 0x00)
		out = append(out, data...)

		return out, nil
	case 0x91:
		out := make([]byte, 0, 1+len(data))
		out = append(out, sw2)
		out = append(out, data...)

		return out, nil
	default:
		return nil, mapApduStatus(sw1, sw2)
	}
}

func mapApduStatus(sw1, sw2 byte) error {
	switch {
	case sw1 == 0x67:
		return desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeWrongLength, "sw=%02X%02X", sw1, sw2)
	case sw1 == 0x69 && sw2 == 0x82:
		return desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeSecurityStatusNotSatisfied, "sw=%02X%02X", sw1, sw2)
	case sw1 == 0x69 && sw2 == 0x85:
		return desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeConditionsNotSatisfied, "sw=%02X%02X", sw1, sw2)
	case sw1 == 0x6A && sw2 == 0x82:
		return desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeFileNotFoundApdu, "sw=%02X%02X", sw1, sw2)
	case sw1 == 0x6A && sw2 == 0x86:
		return desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeWrongP1P2, "sw=%02X%02X", sw1, sw2)
	default:
		return desfireerr.New(desfireerr.LayerApdu, desfireerr.CodeUnknownSw, "sw=%02X%02X", sw1, sw2)
	}
}
