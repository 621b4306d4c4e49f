package commands

import (
	"github.com/nfc-tools/go_desfire/internal/blockcipher"
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
	"github.com/nfc-tools/go_desfire/internal/desfirecrypto"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

const defaultChunkSize = 240

// ReadData (INS=0xBD) chunks transparently: each iteration requests up to
// chunkSize bytes (default/cap 240), accumulating across any intermediate
// 0xAF frames, then advancing currentOffset for the next chunk.
type ReadData struct {
	st state

	FileNo       byte
	Offset       int
	Length       int
	CommSettings CommSettings
	ChunkSize    int

	currentOffset  int
	remaining      int
	chunkRequested int
	chunkRaw       []byte
	requestIv      []byte
	out            []byte
}

func NewReadData(fileNo byte, offset, length int, comm CommSettings) *ReadData {
	cs := defaultChunkSize
	if length > 0 && length < cs {
		cs = length
	}

	return &ReadData{
		FileNo: fileNo, Offset: offset, Length: length, CommSettings: comm,
		ChunkSize: cs, currentOffset: offset, remaining: length,
	}
}

func (r *ReadData) Name() string    { return "ReadData" }
func (r *ReadData) IsComplete() bool { return r.st == stateComplete }
func (r *ReadData) Reset() {
	offset, length, fileNo, comm, chunk := r.Offset, r.Length, r.FileNo, r.CommSettings, r.ChunkSize
	*r = ReadData{FileNo: fileNo, Offset: offset, Length: length, CommSettings: comm, ChunkSize: chunk, currentOffset: offset, remaining: length}
}

func (r *ReadData) chunkLen() int {
	n := r.ChunkSize
	if n <= 0 || n > defaultChunkSize {
		n = defaultChunkSize
	}
	if r.remaining > 0 && r.remaining < n {
		n = r.remaining
	}

	return n
}

func (r *ReadData) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	switch r.st {
	case stateInitial, stateReadChunk:
		n := r.chunkLen()
		r.chunkRequested = n
		data := append([]byte{r.FileNo}, le24(r.currentOffset)[:]...)
		data = append(data, le24(n)[:]...)

		if ctx.Authenticated && r.CommSettings == CommSettingsPlain && !ctx.IsLegacy() {
			msg := append([]byte{0xBD}, data...)
			iv, err := securemessaging.DerivePlainRequestIv(ctx, msg, true)
			if err != nil {
				return desfire.Request{}, err
			}
			r.requestIv = iv
		}
		r.chunkRaw = nil
		r.st = stateAdditionalFrame

		return desfire.Request{CommandCode: 0xBD, Data: data}, nil
	case stateAdditionalFrame:
		return desfire.Request{CommandCode: 0xAF}, nil
	default:
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "readdata complete")
	}
}

func (r *ReadData) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	if len(raw) < 1 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "empty response")
	}
	status, data := raw[0], raw[1:]

	if status == 0xAF {
		r.chunkRaw = append(r.chunkRaw, data...)

		return desfire.Result{StatusCode: status, Data: data}, nil
	}
	if status != 0x00 {
		return desfire.Result{}, desfireerr.FromStatusByte(status)
	}
	r.chunkRaw = append(r.chunkRaw, data...)

	var plain []byte
	switch {
	case r.CommSettings == CommSettingsEnciphered && ctx.Authenticated:
		p, err := decryptEnciphered(ctx, r.chunkRaw, r.chunkRequested, buildCrcHeader(0xBD, r.FileNo))
		if err != nil {
			return desfire.Result{}, err
		}
		plain = p
	case ctx.Authenticated && !ctx.IsLegacy():
		p, _, err := securemessaging.VerifyAuthenticatedPlainPayloadAutoMac(
			ctx, r.chunkRaw, 0x00, r.requestIv,
			func(payloadLen int) bool { return payloadLen == r.chunkRequested },
		)
		if err != nil {
			return desfire.Result{}, err
		}
		plain = p
	default:
		plain = r.chunkRaw
	}

	r.out = append(r.out, plain...)
	r.currentOffset += len(plain)
	if r.remaining > 0 {
		r.remaining -= len(plain)
	}

	if r.remaining <= 0 {
		r.st = stateComplete
	} else {
		r.st = stateReadChunk
	}

	return desfire.Result{StatusCode: status, Data: plain}, nil
}

// Data returns the accumulated plaintext once complete.
func (r *ReadData) Data() []byte { return r.out }

// buildCrcHeader returns the [INS, fileNo] prefix some enciphered responses
// include under their CRC32.
func buildCrcHeader(ins, fileNo byte) []byte { return []byte{ins, fileNo} }

// trimWindows are the candidate trailing-byte counts trimmed off an
// enciphered ciphertext before decryption is attempted.
var trimWindows = []int{0, 8, 4, 2}

// decryptEnciphered decrypts an accumulated ciphertext for an enciphered
// response, trying each trim window, and validating either a CRC32 (over
// header||plaintext[:payloadLen]) or CRC16 trailer followed by zero padding
// (optionally with a leading 0x80 sentinel).
func decryptEnciphered(ctx *desfire.Context, ciphertext []byte, payloadLen int, header []byte) ([]byte, error) {
	bs := ctx.BlockSize()
	var lastErr error
	for _, trim := range trimWindows {
		if trim > len(ciphertext) {
			continue
		}
		ct := ciphertext[:len(ciphertext)-trim]
		if len(ct) == 0 || len(ct)%bs != 0 {
			continue
		}
		plain, err := decryptBlock(ctx, ct)
		if err != nil {
			lastErr = err

			continue
		}
		if payloadLen > len(plain) {
			continue
		}
		data := plain[:payloadLen]
		rest := plain[payloadLen:]

		if verifyCrc32Trailer(header, data, rest) || verifyCrc16Trailer(data, rest) {
			if err := securemessaging.UpdateContextIvFromEncryptedCiphertext(ctx, ciphertext); err != nil {
				return nil, err
			}

			return data, nil
		}
	}
	if lastErr == nil {
		lastErr = desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeIntegrityError, "no trim window validated")
	}

	return nil, lastErr
}

func decryptBlock(ctx *desfire.Context, ciphertext []byte) ([]byte, error) {
	if ctx.IsLegacy() {
		return securemessaging.DecryptLegacySendMode(ctx, ciphertext, securemessaging.LegacySeedZero)
	}
	switch ctx.CipherFamily() {
	case desfire.CipherAES:
		return blockcipher.AesCbcDecrypt(ciphertext, ctx.SessionKeyEnc, ctx.IV)
	default:
		return blockcipher.Des3CbcDecrypt(ciphertext, ctx.SessionKeyEnc, ctx.IV)
	}
}

func verifyCrc32Trailer(header, data, rest []byte) bool {
	if len(rest) < 4 {
		return false
	}
	msg := append(append([]byte{}, header...), data...)
	crc := desfirecrypto.Crc32Desfire(msg)
	want := []byte{byte(crc), byte(crc >> 8), byte(crc >> 16), byte(crc >> 24)}
	tail := rest[:4]
	if !bytesEqual(want, tail) {
		return false
	}

	return allZeroOrSentinel(rest[4:])
}

func verifyCrc16Trailer(data, rest []byte) bool {
	if len(rest) < 2 {
		return false
	}
	crc := desfirecrypto.Crc16Desfire(data)
	want := []byte{byte(crc), byte(crc >> 8)}
	if !bytesEqual(want, rest[:2]) {
		return false
	}

	return allZeroOrSentinel(rest[2:])
}

func allZeroOrSentinel(tail []byte) bool {
	if len(tail) == 0 {
		return true
	}
	start := 0
	if tail[0] == 0x80 {
		start = 1
	}
	for _, b := range tail[start:] {
		if b != 0 {
			return false
		}
	}

	return true
}

// WriteData (INS=0x3D) mirrors ReadData's protection pipeline: plaintext
// (with CRC appended) is padded and encrypted, then sent as a single frame.
// It does not chunk across frames; a request whose data exceeds the 252-byte
// ceiling is rejected by desfire.Request.Validate.
type WriteData struct {
	oneShot

	FileNo       byte
	Offset       int
	CommSettings CommSettings
	Plaintext    []byte

	pendingLegacyUpdate bool
}

func (w *WriteData) Name() string { return "WriteData" }

func (w *WriteData) BuildRequest(ctx *desfire.Context) (desfire.Request, error) {
	if w.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	header := append([]byte{w.FileNo}, le24(w.Offset)[:]...)

	switch {
	case w.CommSettings == CommSettingsEnciphered && ctx.Authenticated:
		withCrc := appendCrcTrailer(ctx, buildCrcHeader(0x3D, w.FileNo), w.Plaintext)
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

		return desfire.Request{CommandCode: 0x3D, Data: data}, nil
	default:
		header = append(header, le24(len(w.Plaintext))[:]...)
		data := append(header, w.Plaintext...)

		return desfire.Request{CommandCode: 0x3D, Data: data}, nil
	}
}

func (w *WriteData) ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error) {
	res, err := w.finish(raw)
	if err != nil {
		return res, err
	}
	if w.pendingLegacyUpdate {
		securemessaging.ApplyLegacyCommandBoundaryIvPolicy(ctx)
	}

	return res, nil
}

func appendCrcTrailer(ctx *desfire.Context, header, plaintext []byte) []byte {
	if ctx.IsLegacy() {
		crc := desfirecrypto.Crc16Desfire(plaintext)

		return append(append([]byte{}, plaintext...), byte(crc), byte(crc>>8))
	}
	msg := append(append([]byte{}, header...), plaintext...)
	crc := desfirecrypto.Crc32Desfire(msg)

	return append(append([]byte{}, plaintext...), byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
}
