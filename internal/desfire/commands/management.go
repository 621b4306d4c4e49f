package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// FormatPICC (INS=0xFC): empty payload, erases every application and
// resets the PICC master key's session state. The card itself reverts to
// its factory key; the in-memory context is reset to match.
type FormatPICC struct{ oneShot }

func (f *FormatPICC) Name() string { return "FormatPICC" }

func (f *FormatPICC) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if f.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0xFC}, nil
}

func (f *FormatPICC) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := f.finish(raw)
	if err != nil {
		return res, err
	}
	ctx.Reset()
	ctx.SelectedAID = [3]byte{0, 0, 0}

	return res, nil
}

// FreeMemory (INS=0x6E): no request payload, 3-byte LE free-memory count.
type FreeMemory struct {
	oneShot
	bytesFree int
}

func (f *FreeMemory) Name() string { return "FreeMemory" }

func (f *FreeMemory) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if f.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0x6E}, nil
}

func (f *FreeMemory) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	res, err := f.finish(raw)
	if err != nil {
		return res, err
	}
	if len(res.Data) < 3 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "free memory response too short")
	}
	f.bytesFree = int(res.Data[0]) | int(res.Data[1])<<8 | int(res.Data[2])<<16

	return res, nil
}

// BytesFree returns the parsed free-memory count once complete.
func (f *FreeMemory) BytesFree() int { return f.bytesFree }

// GetKeySettings (INS=0x45): returns keySettings1, keySettings2, and (on
// AES applications only) maxKeys.
type GetKeySettings struct {
	oneShot
	KeySettings1 byte
	KeySettings2 byte
	// MaxKeys is only present in the response on AES applications.
	MaxKeys byte
}

func (g *GetKeySettings) Name() string { return "GetKeySettings" }

func (g *GetKeySettings) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if g.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0x45}, nil
}

func (g *GetKeySettings) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	res, err := g.finish(raw)
	if err != nil {
		return res, err
	}
	if len(res.Data) < 2 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "key settings response too short")
	}
	g.KeySettings1 = res.Data[0]
	g.KeySettings2 = res.Data[1]
	if len(res.Data) >= 3 {
		g.MaxKeys = res.Data[2]
	}

	return res, nil
}

// ChangeKeySettings (INS=0x54): carries one byte (the new KeySettings1),
// enciphered under the session cipher exactly like ChangeKey's payload
// (plaintext||CRC, block-padded).
type ChangeKeySettings struct {
	oneShot
	NewKeySettings1 byte
	LegacySeed      securemessaging.LegacyIvSeed

	protected securemessaging.ProtectedPayload
}

func (c *ChangeKeySettings) Name() string { return "ChangeKeySettings" }

func (c *ChangeKeySettings) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	plaintext := appendCrcTrailer(ctx, []byte{0x54}, []byte{c.NewKeySettings1})

	protected, err := securemessaging.ProtectEncryptedPayload(ctx, plaintext, ctx.IsLegacy(), c.LegacySeed)
	if err != nil {
		return desfire.Request{}, err
	}
	c.protected = protected

	return desfire.Request{CommandCode: 0x54, Data: protected.EncryptedPayload}, nil
}

func (c *ChangeKeySettings) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := c.finish(raw)
	if err != nil {
		return res, err
	}
	if c.protected.UpdateContextIv {
		ctx.IV = c.protected.RequestState
	} else {
		securemessaging.ApplyLegacyCommandBoundaryIvPolicy(ctx)
	}

	return res, nil
}

// GetKeyVersion (INS=0x64): keyNo, returns one key-version byte.
type GetKeyVersion struct {
	oneShot
	KeyNo   byte
	version byte
}

func (g *GetKeyVersion) Name() string { return "GetKeyVersion" }

func (g *GetKeyVersion) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if g.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0x64, Data: []byte{g.KeyNo}}, nil
}

func (g *GetKeyVersion) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	res, err := g.finish(raw)
	if err != nil {
		return res, err
	}
	if len(res.Data) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "key version response empty")
	}
	g.version = res.Data[0]

	return res, nil
}

// Version returns the parsed key version byte once complete.
func (g *GetKeyVersion) Version() byte { return g.version }

// SetConfiguration (INS=0x5C): option byte || enciphered payload, the
// shape of which depends on the option (0x00 PICC config, 0x01 default
// key/version, 0x02 ATS). Only authenticated to the PICC master key.
type SetConfiguration struct {
	oneShot
	Option     byte
	Plaintext  []byte
	LegacySeed securemessaging.LegacyIvSeed

	protected securemessaging.ProtectedPayload
}

func (s *SetConfiguration) Name() string { return "SetConfiguration" }

func (s *SetConfiguration) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if s.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	withCrc := appendCrcTrailer(ctx, buildCrcHeader(0x5C, s.Option), s.Plaintext)

	protected, err := securemessaging.ProtectEncryptedPayload(ctx, withCrc, ctx.IsLegacy(), s.LegacySeed)
	if err != nil {
		return desfire.Request{}, err
	}
	s.protected = protected
	data := append([]byte{s.Option}, protected.EncryptedPayload...)

	return desfire.Request{CommandCode: 0x5C, Data: data}, nil
}

func (s *SetConfiguration) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := s.finish(raw)
	if err != nil {
		return res, err
	}
	if s.protected.UpdateContextIv {
		ctx.IV = s.protected.RequestState
	} else {
		securemessaging.ApplyLegacyCommandBoundaryIvPolicy(ctx)
	}

	return res, nil
}

// GetCardUID (INS=0x51): no request payload beyond the command byte.
// Plain (unauthenticated) sessions get the UID in clear; authenticated
// sessions receive an enciphered 7-byte UID that must be trimmed and
// CRC-verified exactly like ReadData's enciphered path.
type GetCardUID struct {
	oneShot
	uid []byte
}

func (g *GetCardUID) Name() string { return "GetCardUID" }

func (g *GetCardUID) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if g.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0x51}, nil
}

func (g *GetCardUID) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]
	if status != 0x00 {
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}

	if !ctx.Authenticated {
		g.uid = data
		g.st = stateComplete

		return desfire.Result{StatusCode: status, Data: data}, nil
	}

	plain, err := decryptEnciphered(ctx, data, 7, []byte{0x51})
	if err != nil {
		return desfire.Result{}, err
	}
	g.uid = plain
	g.st = stateComplete

	return desfire.Result{StatusCode: status, Data: plain}, nil
}

// UID returns the parsed card UID once complete.
func (g *GetCardUID) UID() []byte { return g.uid }
