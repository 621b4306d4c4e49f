package transceiver

import (
	"bytes"
	"context"

	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// MockStep is one scripted exchange for Mock: the APDU the test expects to
// see, and the Response (or Err) to hand back.
type MockStep struct {
	ExpectAPDU []byte
	Resp       Response
	Err        error
}

// Mock is a scripted ApduTransceiver for command state-machine tests: it
// replays a fixed sequence of responses, optionally asserting the exact
// APDU bytes the caller sent.
type Mock struct {
	Steps []MockStep
	calls int
	Sent  [][]byte
}

func (m *Mock) Transceive(_ context.Context, apdu []byte) (Response, error) {
	if m.calls >= len(m.Steps) {
		return Response{}, desfireerr.New(
			desfireerr.LayerHardware, desfireerr.CodeNotConnected, "mock exhausted after %d calls", m.calls,
		)
	}
	step := m.Steps[m.calls]
	m.calls++
	m.Sent = append(m.Sent, apdu)

	if step.ExpectAPDU != nil && !bytes.Equal(step.ExpectAPDU, apdu) {
		return Response{}, desfireerr.New(
			desfireerr.LayerHardware, desfireerr.CodeBusError, "mock step %d: unexpected apdu %x", m.calls-1, apdu,
		)
	}
	if step.Err != nil {
		return Response{}, step.Err
	}

	return step.Resp, nil
}
