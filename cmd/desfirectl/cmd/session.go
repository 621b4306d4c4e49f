package cmd

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/internal/cardmanager"
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/serialport"
	"github.com/nfc-tools/go_desfire/internal/transceiver"
	"github.com/nfc-tools/go_desfire/pkg/desfirecard"
)

// openCard opens the configured serial port, wires a CardManager around it
// with a StaticDetector built from the --uid/--atqa/--sak/--ats flags, and
// returns a Card ready for commands. PN532 byte-level frame assembly is left
// to an external FrameCodec; here we default to the passthrough codec,
// suitable for readers that already speak bare APDU bytes (e.g. a PC/SC
// bridge) on the configured serial port.
func openCard(c *cobra.Command) (*desfirecard.Card, func(), error) {
	port := cfg.Reader.Port
	if p, _ := c.Flags().GetString("port"); p != "" {
		port = p
	}
	baud := cfg.Reader.Baud
	if b, _ := c.Flags().GetInt("baud"); b != 0 {
		baud = b
	}

	p, err := serialport.Open(serialport.Options{PortName: port, BaudRate: baud})
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() { _ = p.Close() }

	t := transceiver.NewPN532Transceiver(p, transceiver.PassthroughCodec{})
	t.Timeout = time.Duration(cfg.Reader.TimeoutMs) * time.Millisecond

	info, err := cardInfoFromFlags(c)
	if err != nil {
		closeFn()

		return nil, func() {}, err
	}

	mgr := cardmanager.NewCardManager(t, cardmanager.StaticDetector{Info: info})
	useIso, _ := c.Flags().GetBool("iso")
	session, err := mgr.CreateSession(context.Background(), useIso)
	if err != nil {
		closeFn()

		return nil, func() {}, err
	}

	return desfirecard.New(session), closeFn, nil
}

func cardInfoFromFlags(c *cobra.Command) (desfire.CardInfo, error) {
	uidHex, _ := c.Flags().GetString("uid")
	atqaHex, _ := c.Flags().GetString("atqa")
	sakHex, _ := c.Flags().GetString("sak")
	atsHex, _ := c.Flags().GetString("ats")

	uid, err := hex.DecodeString(uidHex)
	if err != nil {
		return desfire.CardInfo{}, fmt.Errorf("invalid --uid: %w", err)
	}
	atqaBytes, err := hex.DecodeString(atqaHex)
	if err != nil || len(atqaBytes) != 2 {
		return desfire.CardInfo{}, fmt.Errorf("invalid --atqa: must be 2 hex bytes")
	}
	sakBytes, err := hex.DecodeString(sakHex)
	if err != nil || len(sakBytes) != 1 {
		return desfire.CardInfo{}, fmt.Errorf("invalid --sak: must be 1 hex byte")
	}
	ats, err := hex.DecodeString(atsHex)
	if err != nil {
		return desfire.CardInfo{}, fmt.Errorf("invalid --ats: %w", err)
	}

	return desfire.CardInfo{
		UID:  uid,
		ATQA: binary.LittleEndian.Uint16(atqaBytes),
		SAK:  sakBytes[0],
		ATS:  ats,
	}, nil
}

func parseAID(s string) ([3]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 3 {
		return [3]byte{}, fmt.Errorf("aid must be 3 hex bytes, got %q", s)
	}

	return [3]byte{b[0], b[1], b[2]}, nil
}
