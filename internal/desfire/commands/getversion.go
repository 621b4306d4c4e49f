package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// VersionInfo is the EV1 GetVersion layout: two 7-byte blocks (hardware,
// software) plus a 14-byte production block.
type VersionInfo struct {
	Hardware   [7]byte
	Software   [7]byte
	Production [14]byte
}

// GetVersion (INS=0x60): Initial -> AdditionalFrame -> AdditionalFrame ->
// Complete. Requests 0x60 once, then 0xAF while the card keeps replying
// with status 0xAF, accumulating each frame's payload.
type GetVersion struct {
	st      state
	frame   int
	version []byte
}

func NewGetVersion() *GetVersion { return &GetVersion{} }

func (g *GetVersion) Name() string     { return "GetVersion" }
func (g *GetVersion) IsComplete() bool  { return g.st == stateComplete }
func (g *GetVersion) Reset()           { *g = GetVersion{} }

func (g *GetVersion) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	switch g.st {
	case stateInitial:
		return desfire.Request{CommandCode: 0x60}, nil
	case stateAdditionalFrame:
		return desfire.Request{CommandCode: 0xAF}, nil
	default:
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "getversion complete")
	}
}

func (g *GetVersion) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]

	switch status {
	case 0xAF:
		g.version = append(g.version, data...)
		g.frame++
		g.st = stateAdditionalFrame
	case 0x00:
		g.version = append(g.version, data...)
		g.st = stateComplete
	default:
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}

	return desfire.Result{StatusCode: status, Data: data}, nil
}

// Version returns the accumulated version layout once IsComplete is true.
func (g *GetVersion) Version() (VersionInfo, error) {
	if len(g.version) != 28 {
		return VersionInfo{}, desfireerr.New(
			desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "version data is %d bytes, want 28", len(g.version),
		)
	}
	var v VersionInfo
	copy(v.Hardware[:], g.version[0:7])
	copy(v.Software[:], g.version[7:14])
	copy(v.Production[:], g.version[14:28])

	return v, nil
}
