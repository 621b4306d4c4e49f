// Package cardmanager owns the APDU transceiver and the detected card's
// type/session lifecycle: detection (ATQA/SAK/ATS classification),
// exclusive session ownership, and the native/iso wire choice. It sits
// between internal/transceiver and pkg/desfirecard.
package cardmanager

import (
	"context"

	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// CardDetector probes the reader for a present card and reports its raw
// identification bytes. Implementations are reader-specific (PN532
// InListPassiveTarget, PC/SC SCardConnect) and live outside this package --
// only the interface and CardInfo classification live here.
type CardDetector interface {
	Detect(ctx context.Context) (desfire.CardInfo, error)
}

// ReaderCapabilities describes reader-imposed limits. It is recorded on the
// CardManager only; the command layer does not read it.
type ReaderCapabilities struct {
	MaxApduSize int
}

// DefaultReaderCapabilities matches a typical PN532-class reader: 255-byte
// frames. Request data is bounded separately by the 252-byte command-data
// ceiling enforced by desfire.Request.Validate.
var DefaultReaderCapabilities = ReaderCapabilities{MaxApduSize: 255}

// classifyCardType deduces a CardType from ATQA/SAK/ATS. It is the only
// card-type detection heuristic this package carries; distinguishing other
// contactless card families is out of scope.
func classifyCardType(info desfire.CardInfo) desfire.CardType {
	switch {
	case info.SAK == 0x20 && len(info.ATS) > 0:
		return desfire.CardTypeMifareDesfire
	case info.SAK == 0x08 || info.SAK == 0x18:
		return desfire.CardTypeMifareClassic
	case info.SAK == 0x00 && info.ATQA == 0x0044:
		return desfire.CardTypeMifareUltralight
	case info.SAK == 0x20:
		return desfire.CardTypeISO14443_4_Generic
	default:
		return desfire.CardTypeUnknown
	}
}

// MockDetector is a scripted CardDetector for tests: it returns Info
// verbatim, or Err if set.
type MockDetector struct {
	Info desfire.CardInfo
	Err  error
}

func (m MockDetector) Detect(_ context.Context) (desfire.CardInfo, error) {
	if m.Err != nil {
		return desfire.CardInfo{}, m.Err
	}

	return m.Info, nil
}

// StaticDetector is a production CardDetector for setups where
// anticollision already happened outside this module -- a PC/SC bridge, a
// reader's own InListPassiveTarget call surfaced through its CLI, or an
// operator who already knows the card they're holding. It returns Info
// unconditionally; real ATQA/SAK/ATS heuristics still run through
// classifyCardType on top of it.
type StaticDetector struct {
	Info desfire.CardInfo
}

func (s StaticDetector) Detect(_ context.Context) (desfire.CardInfo, error) {
	return s.Info, nil
}

// errNoCard is returned by CardManager.DetectCard when the detector finds
// nothing present.
func errNoCard() error {
	return desfireerr.New(desfireerr.LayerCardManager, desfireerr.CodeNoCardPresent, "no card present")
}
