package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// GetApplicationIDs (INS=0x6A): chains up to 3 frames (28 AIDs of 3 bytes
// each per frame, up to 84 AIDs total). When authenticated, the final
// frame's trailing CMAC is verified with AutoMac, accepting only candidate
// MAC lengths whose resulting payload length is a multiple of 3.
type GetApplicationIDs struct {
	st        state
	raw       []byte
	requestIv []byte
	aids      [][3]byte
}

func NewGetApplicationIDs() *GetApplicationIDs { return &GetApplicationIDs{} }

func (g *GetApplicationIDs) Name() string    { return "GetApplicationIDs" }
func (g *GetApplicationIDs) IsComplete() bool { return g.st == stateComplete }
func (g *GetApplicationIDs) Reset()           { *g = GetApplicationIDs{} }

func (g *GetApplicationIDs) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	switch g.st {
	case stateInitial:
		if ctx.Authenticated && !ctx.IsLegacy() {
			iv, err := securemessaging.DerivePlainRequestIv(ctx, []byte{0x6A}, true)
			if err != nil {
				return desfire.Request{}, err
			}
			g.requestIv = iv
		}

		return desfire.Request{CommandCode: 0x6A}, nil
	case stateAdditionalFrame:
		return desfire.Request{CommandCode: 0xAF}, nil
	default:
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "getapplicationids complete")
	}
}

func (g *GetApplicationIDs) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]

	switch status {
	case 0xAF:
		g.raw = append(g.raw, data...)
		g.st = stateAdditionalFrame

		return desfire.Result{StatusCode: status, Data: data}, nil
	case 0x00:
		g.raw = append(g.raw, data...)

		var payload []byte
		if ctx.Authenticated && !ctx.IsLegacy() {
			p, _, err := securemessaging.VerifyAuthenticatedPlainPayloadAutoMac(
				ctx, g.raw, 0x00, g.requestIv,
				func(payloadLen int) bool { return payloadLen%3 == 0 },
			)
			if err != nil {
				return desfire.Result{}, err
			}
			payload = p
		} else {
			payload = g.raw
		}

		for i := 0; i+3 <= len(payload); i += 3 {
			var aid [3]byte
			copy(aid[:], payload[i:i+3])
			g.aids = append(g.aids, aid)
		}
		g.st = stateComplete

		return desfire.Result{StatusCode: status, Data: payload}, nil
	default:
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}
}

// AIDs returns the accumulated application identifiers once complete.
func (g *GetApplicationIDs) AIDs() [][3]byte { return g.aids }
