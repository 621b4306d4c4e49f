package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// ReadRecords (INS=0xBB): record-based fields (recordOffset, recordCount).
// expectedDataLength = recordCount * recordSize locates the CMAC/CRC
// trailer in the accumulated response, same chaining shape as ReadData.
type ReadRecords struct {
	st state

	FileNo       byte
	RecordOffset int
	RecordCount  int
	RecordSize   int
	CommSettings CommSettings

	expectedDataLength int
	raw                []byte
	requestIv          []byte
	out                []byte
}

func NewReadRecords(fileNo byte, recordOffset, recordCount, recordSize int, comm CommSettings) *ReadRecords {
	return &ReadRecords{
		FileNo: fileNo, RecordOffset: recordOffset, RecordCount: recordCount, RecordSize: recordSize,
		CommSettings: comm, expectedDataLength: recordCount * recordSize,
	}
}

func (r *ReadRecords) Name() string    { return "ReadRecords" }
func (r *ReadRecords) IsComplete() bool { return r.st == stateComplete }
func (r *ReadRecords) Reset() {
	fileNo, off, cnt, sz, comm := r.FileNo, r.RecordOffset, r.RecordCount, r.RecordSize, r.CommSettings
	*r = ReadRecords{FileNo: fileNo, RecordOffset: off, RecordCount: cnt, RecordSize: sz, CommSettings: comm, expectedDataLength: cnt * sz}
}

func (r *ReadRecords) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	switch r.st {
	case stateInitial:
		data := append([]byte{r.FileNo}, le24(r.RecordOffset)[:]...)
		data = append(data, le24(r.RecordCount)[:]...)

		if ctx.Authenticated && r.CommSettings == CommSettingsPlain && !ctx.IsLegacy() {
			msg := append([]byte{0xBB}, data...)
			iv, err := securemessaging.DerivePlainRequestIv(ctx, msg, true)
			if err != nil {
				return desfire.Request{}, err
			}
			r.requestIv = iv
		}
		r.st = stateAdditionalFrame

		return desfire.Request{CommandCode: 0xBB, Data: data}, nil
	case stateAdditionalFrame:
		return desfire.Request{CommandCode: 0xAF}, nil
	default:
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "readrecords complete")
	}
}

func (r *ReadRecords) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]

	if status == 0xAF {
		r.raw = append(r.raw, data...)

		return desfire.Result{StatusCode: status, Data: data}, nil
	}
	if status != 0x00 {
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}
	r.raw = append(r.raw, data...)

	var plain []byte
	switch {
	case r.CommSettings == CommSettingsEnciphered && ctx.Authenticated:
		p, err := decryptEnciphered(ctx, r.raw, r.expectedDataLength, buildCrcHeader(0xBB, r.FileNo))
		if err != nil {
			return desfire.Result{}, err
		}
		plain = p
	case ctx.Authenticated && !ctx.IsLegacy():
		p, _, err := securemessaging.VerifyAuthenticatedPlainPayloadAutoMac(
			ctx, r.raw, 0x00, r.requestIv,
			func(payloadLen int) bool { return payloadLen == r.expectedDataLength },
		)
		if err != nil {
			return desfire.Result{}, err
		}
		plain = p
	default:
		plain = r.raw
	}

	r.out = plain
	r.st = stateComplete

	return desfire.Result{StatusCode: status, Data: plain}, nil
}

// Records returns the accumulated record bytes once complete.
func (r *ReadRecords) Records() []byte { return r.out }

// WriteRecords (INS=0x3B): byte-based fields (byteOffset, byteLength).
type WriteRecords struct {
	oneShot

	FileNo       byte
	ByteOffset   int
	CommSettings CommSettings
	Plaintext    []byte

	pendingLegacyUpdate bool
}

func (w *WriteRecords) Name() string { return "WriteRecords" }

func (w *WriteRecords) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if w.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	header := append([]byte{w.FileNo}, le24(w.ByteOffset)[:]...)

	if w.CommSettings == CommSettingsEnciphered && ctx.Authenticated {
		withCrc := appendCrcTrailer(ctx, buildCrcHeader(0x3B, w.FileNo), w.Plaintext)
		protected, err := securemessaging.ProtectEncryptedPayload(ctx, withCrc, ctx.IsLegacy(), securemessaging.LegacySeedZero)
		if err != nil {
			return desfire.Request{}, err
		}
		header = append(header, le24(len(protected.EncryptedPayload))[:]...)
		data := append(header, protected.EncryptedPayload...)
		if protected.UpdateContextIv {
			ctx.IV = protected.RequestState
		} else {
			w.pendingLegacyUpdate = true
		}

		return desfire.Request{CommandCode: 0x3B, Data: data}, nil
	}

	header = append(header, le24(len(w.Plaintext))[:]...)
	data := append(header, w.Plaintext...)

	return desfire.Request{CommandCode: 0x3B, Data: data}, nil
}

func (w *WriteRecords) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := w.finish(raw)
	if err != nil {
		return res, err
	}
	if w.pendingLegacyUpdate {
		securemessaging.ApplyLegacyCommandBoundaryIvPolicy(ctx)
	}

	return res, nil
}
