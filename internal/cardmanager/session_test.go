package cardmanager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
	"github.com/nfc-tools/go_desfire/internal/transceiver"
)

func desfireCardInfo() desfire.CardInfo {
	return desfire.CardInfo{UID: []byte{0x04, 0x11, 0x22, 0x33}, ATQA: 0x0344, SAK: 0x20, ATS: []byte{0x75, 0x77, 0x81, 0x02}}
}

func TestDetectCardClassifiesAndMemoizes(t *testing.T) {
	detector := MockDetector{Info: desfireCardInfo()}
	m := NewCardManager(&transceiver.Mock{}, detector)

	info, err := m.DetectCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, desfire.CardTypeMifareDesfire, info.Type)
	assert.NotNil(t, m.lastInfo)
}

func TestDetectCardRejectsEmptyUID(t *testing.T) {
	m := NewCardManager(&transceiver.Mock{}, MockDetector{Info: desfire.CardInfo{}})

	_, err := m.DetectCard(context.Background())
	require.Error(t, err)

	var derr *desfireerr.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, desfireerr.CodeNoCardPresent, derr.Code())
}

func TestCreateSessionRejectsUnsupportedCardType(t *testing.T) {
	m := NewCardManager(&transceiver.Mock{}, MockDetector{Info: desfire.CardInfo{UID: []byte{1}, SAK: 0x08}})

	_, err := m.CreateSession(context.Background(), false)
	require.Error(t, err)

	var derr *desfireerr.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, desfireerr.CodeUnsupportedCardType, derr.Code())
}

func TestCreateSessionReusesMemoizedDetection(t *testing.T) {
	detector := MockDetector{Info: desfireCardInfo()}
	m := NewCardManager(&transceiver.Mock{}, detector)

	_, err := m.DetectCard(context.Background())
	require.NoError(t, err)

	// Swap the detector for one that errors; CreateSession must not call it
	// again because lastInfo is already memoized.
	m.Detector = MockDetector{Err: errors.New("should not be called")}

	session, err := m.CreateSession(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, desfire.CardTypeMifareDesfire, session.Info().Type)
}

// TestRunDrivesCommandOverIsoWire exercises CardSession.Run end to end
// through the ISO 7816-4 wire, whose SW1/SW2 contract is unambiguous:
// SW1=0x90,SW2=0x00 carries a native status of 0x00 with the rest of the
// APDU as command data.
func TestRunDrivesCommandOverIsoWire(t *testing.T) {
	mock := &transceiver.Mock{
		Steps: []transceiver.MockStep{
			{Resp: transceiver.Response{Data: []byte{0x00, 0x01}, SW1: 0x90, SW2: 0x00}},
		},
	}

	m := NewCardManager(mock, MockDetector{Info: desfireCardInfo()})
	session, err := m.CreateSession(context.Background(), true)
	require.NoError(t, err)

	cmd := &commands.GetFileIDs{}
	_, err = session.Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01}, cmd.FileIDs())

	// ISO wrapping: CLA=0x90, INS=GetFileIDs(0x6F), P1=P2=0x00, Le=0x00.
	require.Len(t, mock.Sent, 1)
	assert.Equal(t, []byte{0x90, 0x6F, 0x00, 0x00, 0x00}, mock.Sent[0])
}

// TestRunSurfacesApduErrorFromIsoWire confirms a non-success SW1 propagates
// as an Apdu-layer error without ever reaching cmd.ParseResponse.
func TestRunSurfacesApduErrorFromIsoWire(t *testing.T) {
	mock := &transceiver.Mock{
		Steps: []transceiver.MockStep{
			{Resp: transceiver.Response{SW1: 0x6A, SW2: 0x82}},
		},
	}

	m := NewCardManager(mock, MockDetector{Info: desfireCardInfo()})
	session, err := m.CreateSession(context.Background(), true)
	require.NoError(t, err)

	_, err = session.Run(context.Background(), &commands.GetFileIDs{})
	require.Error(t, err)

	var derr *desfireerr.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, desfireerr.LayerApdu, derr.Layer())
	assert.Equal(t, desfireerr.CodeFileNotFoundApdu, derr.Code())
}
