package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// GetValue (INS=0x6C): fileNo. Returns the signed LE32 value, verified
// under the active commMode the same way ReadData verifies plain data.
type GetValue struct {
	st state

	FileNo       byte
	CommSettings CommSettings

	requestIv []byte
	raw       []byte
	value     int32
}

func NewGetValue(fileNo byte, comm CommSettings) *GetValue {
	return &GetValue{FileNo: fileNo, CommSettings: comm}
}

func (g *GetValue) Name() string    { return "GetValue" }
func (g *GetValue) IsComplete() bool { return g.st == stateComplete }
func (g *GetValue) Reset()          { fileNo, comm := g.FileNo, g.CommSettings; *g = GetValue{FileNo: fileNo, CommSettings: comm} }

func (g *GetValue) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if g.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	if ctx.Authenticated && g.CommSettings == CommSettingsPlain && !ctx.IsLegacy() {
		iv, err := securemessaging.DerivePlainRequestIv(ctx, []byte{0x6C, g.FileNo}, true)
		if err != nil {
			return desfire.Request{}, err
		}
		g.requestIv = iv
	}
	g.st = stateAdditionalFrame

	return desfire.Request{CommandCode: 0x6C, Data: []byte{g.FileNo}}, nil
}

func (g *GetValue) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]
	if status != 0x00 {
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}
	g.raw = data

	var plain []byte
	switch {
	case g.CommSettings == CommSettingsEnciphered && ctx.Authenticated:
		p, err := decryptEnciphered(ctx, data, 4, buildCrcHeader(0x6C, g.FileNo))
		if err != nil {
			return desfire.Result{}, err
		}
		plain = p
	case ctx.Authenticated && !ctx.IsLegacy():
		p, _, err := securemessaging.VerifyAuthenticatedPlainPayloadAutoMac(
			ctx, data, 0x00, g.requestIv, func(payloadLen int) bool { return payloadLen == 4 },
		)
		if err != nil {
			return desfire.Result{}, err
		}
		plain = p
	default:
		plain = data
	}
	if len(plain) < 4 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "value too short")
	}
	u := uint32(plain[0]) | uint32(plain[1])<<8 | uint32(plain[2])<<16 | uint32(plain[3])<<24
	g.value = int32(u)
	g.st = stateComplete

	return desfire.Result{StatusCode: status, Data: plain}, nil
}

// Value returns the parsed signed value once complete.
func (g *GetValue) Value() int32 { return g.value }

// valueOp is the shared body of Credit, Debit, and LimitedCredit: they
// differ only in their command byte.
type valueOp struct {
	oneShot
	cmd byte

	FileNo byte
	Value  int32
}

func (v *valueOp) buildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if v.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	if v.Value < 0 {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "value must be >= 0, got %d", v.Value)
	}
	protected, err := securemessaging.ProtectValueOperationRequest(
		ctx, v.cmd, v.FileNo, v.Value, ctx.IsLegacy(), securemessaging.LegacySeedZero,
	)
	if err != nil {
		return desfire.Request{}, err
	}
	data := append([]byte{v.FileNo}, protected.EncryptedPayload...)
	if protected.UpdateContextIv {
		ctx.IV = protected.RequestState
	}

	return desfire.Request{CommandCode: v.cmd, Data: data}, nil
}

// parseResponse handles the two response shapes: [status] or [status,
// cmac8], progressing the IV per the secure messaging policy.
func (v *valueOp) parseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status := raw[0]
	if status != 0x00 {
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}
	if ctx.IsLegacy() {
		securemessaging.ApplyLegacyCommandBoundaryIvPolicy(ctx)
	} else if ctx.Authenticated {
		macLen := 0
		if len(raw) > 1 {
			macLen = 8
		}
		if _, err := securemessaging.DerivePlainResponseIv(ctx, raw, ctx.IV, macLen); err != nil {
			return desfire.Result{}, err
		}
	}
	v.st = stateComplete

	return desfire.Result{StatusCode: status, Data: raw[1:]}, nil
}

// Credit (INS=0x0C).
type Credit struct{ valueOp }

func NewCredit(fileNo byte, value int32) *Credit {
	c := &Credit{}
	c.cmd, c.FileNo, c.Value = 0x0C, fileNo, value

	return c
}
func (c *Credit) Name() string                                              { return "Credit" }
func (c *Credit) BuildRequest(ctx *desfire.Context) (desfire.Request, error) { return c.buildRequest(ctx) }
func (c *Credit) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	return c.parseResponse(raw, ctx)
}

// Debit (INS=0xDC).
type Debit struct{ valueOp }

func NewDebit(fileNo byte, value int32) *Debit {
	d := &Debit{}
	d.cmd, d.FileNo, d.Value = 0xDC, fileNo, value

	return d
}
func (d *Debit) Name() string                                              { return "Debit" }
func (d *Debit) BuildRequest(ctx *desfire.Context) (desfire.Request, error) { return d.buildRequest(ctx) }
func (d *Debit) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	return d.parseResponse(raw, ctx)
}

// LimitedCredit (INS=0x1C).
type LimitedCredit struct{ valueOp }

func NewLimitedCredit(fileNo byte, value int32) *LimitedCredit {
	l := &LimitedCredit{}
	l.cmd, l.FileNo, l.Value = 0x1C, fileNo, value

	return l
}
func (l *LimitedCredit) Name() string { return "LimitedCredit" }
func (l *LimitedCredit) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	return l.buildRequest(ctx)
}
func (l *LimitedCredit) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	return l.parseResponse(raw, ctx)
}
