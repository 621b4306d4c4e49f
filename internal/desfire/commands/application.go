package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// KeyType identifies the cipher family of a key slot, as encoded in
// KeySettings2's high nibble (0x00 DES/2K3DES, 0x40 3K3DES, 0x80 AES). DES
// and 2K3DES share a wire nibble but differ in key-material normalization
// (see normalizeKey), hence the distinct constants.
type KeyType int

const (
	KeyTypeDES KeyType = iota
	KeyType2K3DES
	KeyType3K3DES
	KeyTypeAES
	KeyTypeUnknown
)

func (t KeyType) nibble() byte {
	switch t {
	case KeyType3K3DES:
		return 0x40
	case KeyTypeAES:
		return 0x80
	default:
		return 0x00
	}
}

func keyTypeFromNibble(n byte) KeyType {
	switch n & 0xC0 {
	case 0x40:
		return KeyType3K3DES
	case 0x80:
		return KeyTypeAES
	case 0x00:
		return KeyTypeDES
	default:
		return KeyTypeUnknown
	}
}

// oneShot is embedded by every command whose FSM is just Initial->Complete.
type oneShot struct {
	st   state
	resp desfire.Result
}

func (o *oneShot) IsComplete() bool { return o.st == stateComplete }
func (o *oneShot) Reset()           { o.st = stateInitial; o.resp = desfire.Result{} }

func (o *oneShot) finish(raw []byte) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]
	if status != 0x00 {
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}
	o.st = stateComplete
	o.resp = desfire.Result{StatusCode: status, Data: data}

	return o.resp, nil
}

// CreateApplication (INS=0xCA): AID (LSB-first) || KeySettings1 ||
// KeySettings2. KeySettings2 low nibble is key count (1-14); high nibble
// encodes the key family.
type CreateApplication struct {
	oneShot
	AID          [3]byte
	KeySettings1 byte
	KeyCount     int
	KeyType      KeyType
}

func (c *CreateApplication) Name() string { return "CreateApplication" }

func (c *CreateApplication) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "createapplication complete")
	}
	if c.KeyCount < 1 || c.KeyCount > 14 {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "key count %d out of range [1,14]", c.KeyCount)
	}
	if c.KeyType == KeyTypeUnknown {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "unknown key type")
	}
	keySettings2 := byte(c.KeyCount) | c.KeyType.nibble()
	data := append(append([]byte{}, c.AID[:]...), c.KeySettings1, keySettings2)

	return desfire.Request{CommandCode: 0xCA, Data: data}, nil
}

func (c *CreateApplication) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// DeleteApplication (INS=0xDA): AID (LSB-first).
type DeleteApplication struct {
	oneShot
	AID [3]byte
}

func (d *DeleteApplication) Name() string { return "DeleteApplication" }

func (d *DeleteApplication) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if d.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "deleteapplication complete")
	}

	return desfire.Request{CommandCode: 0xDA, Data: append([]byte{}, d.AID[:]...)}, nil
}

func (d *DeleteApplication) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := d.finish(raw)
	if err != nil {
		return res, err
	}
	if ctx.SelectedAID == d.AID {
		ctx.SelectApplication([3]byte{0, 0, 0})
	}

	return res, nil
}

// SelectApplication (INS=0x5A): AID (LSB-first). Clears authentication on
// success, per the DESFire rule that selecting any application ends the
// current session.
type SelectApplication struct {
	oneShot
	AID [3]byte
}

func (s *SelectApplication) Name() string { return "SelectApplication" }

func (s *SelectApplication) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if s.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "selectapplication complete")
	}

	return desfire.Request{CommandCode: 0x5A, Data: append([]byte{}, s.AID[:]...)}, nil
}

func (s *SelectApplication) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := s.finish(raw)
	if err != nil {
		return res, err
	}
	ctx.SelectApplication(s.AID)

	return res, nil
}
