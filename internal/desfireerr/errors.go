// Package desfireerr defines the layered error taxonomy shared by every
// component in the DESFire stack: transceiver, wire, secure messaging, and
// the command state machines. Every fallible operation in this module
// returns one of these instead of a bare error string.
package desfireerr

import "fmt"

// Layer identifies which subsystem raised an Error.
type Layer int

const (
	LayerHardware Layer = iota
	LayerLink
	LayerPn532
	LayerRc522
	LayerCardManager
	LayerApdu
	LayerDesfire
)

func (l Layer) String() string {
	switch l {
	case LayerHardware:
		return "Hardware"
	case LayerLink:
		return "Link"
	case LayerPn532:
		return "Pn532"
	case LayerRc522:
		return "Rc522"
	case LayerCardManager:
		return "CardManager"
	case LayerApdu:
		return "Apdu"
	case LayerDesfire:
		return "Desfire"
	default:
		return "Unknown"
	}
}

// Code is a per-layer enumerated error code. Codes are only unique within
// their own layer; always pair a Code with its Layer.
type Code int

const (
	// Hardware layer.
	CodeTimeout Code = iota + 1000
	CodeBusError
	CodeNotConnected

	// Link layer.
	CodeFramingError
	CodeNack
	CodeOverflow
	CodeChecksumError

	// Pn532 layer.
	CodePn532SyntaxError
	CodePn532NoAck

	// Rc522 layer.
	CodeRc522Collision
	CodeRc522Crc

	// CardManager layer.
	CodeNoCardPresent
	CodeMultipleCards
	CodeUnsupportedCardType
	CodeAuthenticationRequired
	CodeOperationFailed
	CodeInvalidParameter

	// Apdu layer (ISO wire only).
	CodeWrongLength
	CodeSecurityStatusNotSatisfied
	CodeConditionsNotSatisfied
	CodeFileNotFoundApdu
	CodeWrongP1P2
	CodeUnknownSw

	// Desfire layer: card status bytes, 1:1.
	CodeNoChanges
	CodeIntegrityError
	CodeNoSuchKey
	CodeLengthError
	CodePermissionDenied
	CodeParameterError
	CodeApplicationNotFound
	CodeAuthenticationError
	CodeAdditionalFrame
	CodeBoundaryError
	CodeCommandAborted
	CodeCountError
	CodeDuplicateError
	CodeFileNotFound
	CodeDiskFull
	CodeEepromError
	CodePiccLocked
	CodeCardIntegrityError

	// Desfire layer: synthetic/internal codes.
	CodeInvalidState
	CodeInvalidResponse
)

var codeNames = map[Code]string{
	CodeTimeout:      "Timeout",
	CodeBusError:     "BusError",
	CodeNotConnected: "NotConnected",

	CodeFramingError:  "FramingError",
	CodeNack:          "Nack",
	CodeOverflow:      "Overflow",
	CodeChecksumError: "ChecksumError",

	CodePn532SyntaxError: "SyntaxError",
	CodePn532NoAck:       "NoAck",

	CodeRc522Collision: "Collision",
	CodeRc522Crc:       "CrcError",

	CodeNoCardPresent:          "NoCardPresent",
	CodeMultipleCards:          "MultipleCards",
	CodeUnsupportedCardType:    "UnsupportedCardType",
	CodeAuthenticationRequired: "AuthenticationRequired",
	CodeOperationFailed:        "OperationFailed",
	CodeInvalidParameter:       "InvalidParameter",

	CodeWrongLength:                "WrongLength",
	CodeSecurityStatusNotSatisfied: "SecurityStatusNotSatisfied",
	CodeConditionsNotSatisfied:     "ConditionsNotSatisfied",
	CodeFileNotFoundApdu:           "FileNotFound",
	CodeWrongP1P2:                  "WrongP1P2",
	CodeUnknownSw:                  "UnknownStatusWord",

	CodeNoChanges:           "NoChanges",
	CodeIntegrityError:      "IntegrityError",
	CodeNoSuchKey:           "NoSuchKey",
	CodeLengthError:         "LengthError",
	CodePermissionDenied:    "PermissionDenied",
	CodeParameterError:      "ParameterError",
	CodeApplicationNotFound: "ApplicationNotFound",
	CodeAuthenticationError: "AuthenticationError",
	CodeAdditionalFrame:     "AdditionalFrame",
	CodeBoundaryError:       "BoundaryError",
	CodeCommandAborted:      "CommandAborted",
	CodeCountError:          "CountError",
	CodeDuplicateError:      "DuplicateError",
	CodeFileNotFound:        "FileNotFound",
	CodeDiskFull:            "DiskFull",
	CodeEepromError:         "EepromError",
	CodePiccLocked:          "PiccLocked",
	CodeCardIntegrityError:  "CardIntegrityError",

	CodeInvalidState:    "InvalidState",
	CodeInvalidResponse: "InvalidResponse",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}

	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the single error type returned by every layer of the stack.
type Error struct {
	layer Layer
	code  Code
	msg   string
}

// New builds an Error for the given layer and code, with an optional
// formatted detail message.
func New(layer Layer, code Code, format string, args ...any) *Error {
	return &Error{layer: layer, code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Layer() Layer { return e.layer }
func (e *Error) Code() Code   { return e.code }

func (e *Error) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("%s Error: %s", e.layer, e.code)
	}

	return fmt.Sprintf("%s Error: %s: %s", e.layer, e.code, e.msg)
}

// Is supports errors.Is comparisons against a sentinel built with the same
// layer and code (message is ignored).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.layer == t.layer && e.code == t.code
}

// statusCodeMap maps a DESFire native status byte to its Code.
var statusCodeMap = map[byte]Code{
	0x00: 0, // success, not an error
	0x0C: CodeNoChanges,
	0x1E: CodeIntegrityError,
	0x40: CodeNoSuchKey,
	0x7E: CodeLengthError,
	0x9D: CodePermissionDenied,
	0x9E: CodeParameterError,
	0xA0: CodeApplicationNotFound,
	0xAE: CodeAuthenticationError,
	0xAF: CodeAdditionalFrame,
	0xBE: CodeBoundaryError,
	0xCA: CodeCommandAborted,
	0xCE: CodeCountError,
	0xDE: CodeDuplicateError,
	0xF0: CodeFileNotFound,
	0x0E: CodeDiskFull,
	0xEE: CodeEepromError,
	0x0D: CodePiccLocked,
	0x1C: CodeCardIntegrityError,
}

// FromStatusByte converts a non-success, non-additional-frame DESFire
// status byte into a layered Desfire Error.
func FromStatusByte(status byte) *Error {
	if code, ok := statusCodeMap[status]; ok && code != 0 {
		return New(LayerDesfire, code, "status byte 0x%02X", status)
	}

	return New(LayerDesfire, CodeInvalidResponse, "unmapped status byte 0x%02X", status)
}
