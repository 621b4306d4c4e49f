package transceiver

import (
	"context"
	"time"

	"github.com/nfc-tools/go_desfire/internal/desfireerr"
	"github.com/nfc-tools/go_desfire/internal/serialport"
)

// FrameCodec assembles/parses PN532 frames (preamble, length, checksum,
// ACK/NACK handling) around an InDataExchange payload. This is the
// byte-level reader driver kept deliberately external to the DESFire core:
// only an injectable interface and a passthrough test double live here.
type FrameCodec interface {
	// EncodeExchange wraps a raw APDU as a PN532 InDataExchange frame.
	EncodeExchange(apdu []byte) ([]byte, error)
	// DecodeExchange extracts the card's response bytes from a raw PN532
	// frame, or returns a Pn532-layer error on framing/ACK failure.
	DecodeExchange(frame []byte) ([]byte, error)
}

// PassthroughCodec performs no PN532 framing; used when the transport below
// already speaks bare APDU bytes (e.g. a PC/SC reader, or a test harness).
type PassthroughCodec struct{}

func (PassthroughCodec) EncodeExchange(apdu []byte) ([]byte, error) { return apdu, nil }
func (PassthroughCodec) DecodeExchange(frame []byte) ([]byte, error) {
	return frame, nil
}

// PN532Transceiver drives an ApduTransceiver over a serial-attached
// PN532-class reader: encode via FrameCodec, write to the port, read back,
// decode via FrameCodec, split trailing SW1/SW2.
type PN532Transceiver struct {
	Port       serialport.Port
	Codec      FrameCodec
	ReadBuffer int
	Timeout    time.Duration
}

// NewPN532Transceiver wires a serial Port and FrameCodec into an
// ApduTransceiver. ReadBuffer defaults to 4096 bytes, comfortably larger
// than any single PN532 frame.
func NewPN532Transceiver(port serialport.Port, codec FrameCodec) *PN532Transceiver {
	return &PN532Transceiver{Port: port, Codec: codec, ReadBuffer: 4096, Timeout: 1 * time.Second}
}

func (t *PN532Transceiver) Transceive(ctx context.Context, apdu []byte) (Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.Port.SetReadTimeout(time.Until(deadline))
	} else if t.Timeout > 0 {
		_ = t.Port.SetReadTimeout(t.Timeout)
	}

	frame, err := t.Codec.EncodeExchange(apdu)
	if err != nil {
		return Response{}, desfireerr.New(desfireerr.LayerPn532, desfireerr.CodePn532SyntaxError, "%v", err)
	}
	if _, err := t.Port.Write(frame); err != nil {
		return Response{}, desfireerr.New(desfireerr.LayerLink, desfireerr.CodeFramingError, "write: %v", err)
	}

	buf := make([]byte, t.ReadBuffer)
	n, err := t.Port.Read(buf)
	if err != nil {
		return Response{}, desfireerr.New(desfireerr.LayerHardware, desfireerr.CodeTimeout, "read: %v", err)
	}

	raw, err := t.Codec.DecodeExchange(buf[:n])
	if err != nil {
		return Response{}, desfireerr.New(desfireerr.LayerPn532, desfireerr.CodePn532NoAck, "%v", err)
	}
	if len(raw) < 2 {
		return Response{}, desfireerr.New(desfireerr.LayerLink, desfireerr.CodeOverflow, "short frame payload")
	}

	return Response{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}, nil
}
