package commands

import (
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// CommSettings is the communication-settings byte carried in file
// creation/settings commands: 0x00 plain, 0x01 MAC, 0x03 enciphered.
type CommSettings byte

const (
	CommSettingsPlain      CommSettings = 0x00
	CommSettingsMAC        CommSettings = 0x01
	CommSettingsEnciphered CommSettings = 0x03
)

// AccessRights packs the two access-rights bytes: access1 =
// (readWrite<<4)|change, access2 = (read<<4)|write. Each nibble is a key
// number 0x0-0xD, 0xE (free), or 0xF (denied).
type AccessRights struct {
	ReadWrite byte
	Change    byte
	Read      byte
	Write     byte
}

func (a AccessRights) bytes() [2]byte {
	return [2]byte{
		(a.ReadWrite << 4) | (a.Change & 0x0F),
		(a.Read << 4) | (a.Write & 0x0F),
	}
}

func le24(v int) []byte {
	u := uint32(v)

	return []byte{byte(u), byte(u >> 8), byte(u >> 16)}
}

// CreateStdDataFile (INS=0xCD).
type CreateStdDataFile struct {
	oneShot
	FileNo       byte
	CommSettings CommSettings
	AccessRights AccessRights
	FileSize     int
}

func (c *CreateStdDataFile) Name() string { return "CreateStdDataFile" }

func (c *CreateStdDataFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	ar := c.AccessRights.bytes()
	size := le24(c.FileSize)
	data := []byte{c.FileNo, byte(c.CommSettings), ar[0], ar[1], size[0], size[1], size[2]}

	return desfire.Request{CommandCode: 0xCD, Data: data}, nil
}

func (c *CreateStdDataFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// CreateBackupDataFile (INS=0xCB), identical payload shape to
// CreateStdDataFile.
type CreateBackupDataFile struct {
	oneShot
	FileNo       byte
	CommSettings CommSettings
	AccessRights AccessRights
	FileSize     int
}

func (c *CreateBackupDataFile) Name() string { return "CreateBackupDataFile" }

func (c *CreateBackupDataFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	ar := c.AccessRights.bytes()
	size := le24(c.FileSize)
	data := []byte{c.FileNo, byte(c.CommSettings), ar[0], ar[1], size[0], size[1], size[2]}

	return desfire.Request{CommandCode: 0xCB, Data: data}, nil
}

func (c *CreateBackupDataFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// CreateValueFile (INS=0xCC): signed LE32 lower/upper limits, LE32 value,
// limited-credit config byte (b0 limitedCreditEnabled, b1 freeGetValue).
type CreateValueFile struct {
	oneShot
	FileNo               byte
	CommSettings         CommSettings
	AccessRights         AccessRights
	LowerLimit           int32
	UpperLimit           int32
	Value                int32
	LimitedCreditEnabled bool
	FreeGetValue         bool
}

func (c *CreateValueFile) Name() string { return "CreateValueFile" }

func (c *CreateValueFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	ar := c.AccessRights.bytes()
	var flags byte
	if c.LimitedCreditEnabled {
		flags |= 0x01
	}
	if c.FreeGetValue {
		flags |= 0x02
	}
	data := []byte{c.FileNo, byte(c.CommSettings), ar[0], ar[1]}
	data = append(data, le32(c.LowerLimit)...)
	data = append(data, le32(c.UpperLimit)...)
	data = append(data, le32(c.Value)...)
	data = append(data, flags)

	return desfire.Request{CommandCode: 0xCC, Data: data}, nil
}

func (c *CreateValueFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

func le32(v int32) []byte {
	u := uint32(v)

	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

// CreateLinearRecordFile (INS=0xC1): recordSize/maxRecords are 24-bit LE.
type CreateLinearRecordFile struct {
	oneShot
	FileNo       byte
	CommSettings CommSettings
	AccessRights AccessRights
	RecordSize   int
	MaxRecords   int
}

func (c *CreateLinearRecordFile) Name() string { return "CreateLinearRecordFile" }

func (c *CreateLinearRecordFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	ar := c.AccessRights.bytes()
	rs := le24(c.RecordSize)
	mr := le24(c.MaxRecords)
	data := []byte{c.FileNo, byte(c.CommSettings), ar[0], ar[1], rs[0], rs[1], rs[2], mr[0], mr[1], mr[2]}

	return desfire.Request{CommandCode: 0xC1, Data: data}, nil
}

func (c *CreateLinearRecordFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// CreateCyclicRecordFile (INS=0xC0), identical payload shape to
// CreateLinearRecordFile.
type CreateCyclicRecordFile struct {
	oneShot
	FileNo       byte
	CommSettings CommSettings
	AccessRights AccessRights
	RecordSize   int
	MaxRecords   int
}

func (c *CreateCyclicRecordFile) Name() string { return "CreateCyclicRecordFile" }

func (c *CreateCyclicRecordFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	ar := c.AccessRights.bytes()
	rs := le24(c.RecordSize)
	mr := le24(c.MaxRecords)
	data := []byte{c.FileNo, byte(c.CommSettings), ar[0], ar[1], rs[0], rs[1], rs[2], mr[0], mr[1], mr[2]}

	return desfire.Request{CommandCode: 0xC0, Data: data}, nil
}

func (c *CreateCyclicRecordFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// DeleteFile (INS=0xDF): fileNo.
type DeleteFile struct {
	oneShot
	FileNo byte
}

func (d *DeleteFile) Name() string { return "DeleteFile" }

func (d *DeleteFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if d.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0xDF, Data: []byte{d.FileNo}}, nil
}

func (d *DeleteFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return d.finish(raw)
}

// GetFileIDs (INS=0x6F): returns one byte per file; any parsed file number
// greater than 0x1F is rejected.
type GetFileIDs struct {
	oneShot
	fileIDs []byte
}

func (g *GetFileIDs) Name() string { return "GetFileIDs" }

func (g *GetFileIDs) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if g.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0x6F}, nil
}

func (g *GetFileIDs) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	res, err := g.finish(raw)
	if err != nil {
		return res, err
	}
	for _, id := range res.Data {
		if id > 0x1F {
			return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeParameterError, "file number 0x%02X out of range", id)
		}
	}
	g.fileIDs = res.Data

	return res, nil
}

// FileIDs returns the accumulated file numbers once complete.
func (g *GetFileIDs) FileIDs() []byte { return g.fileIDs }

// FileType enumerates GetFileSettings' file-type byte.
type FileType byte

const (
	FileTypeStandardData FileType = 0x00
	FileTypeBackupData   FileType = 0x01
	FileTypeValue        FileType = 0x02
	FileTypeLinearRecord FileType = 0x03
	FileTypeCyclicRecord FileType = 0x04
)

// FileSettings is the parsed response of GetFileSettings.
type FileSettings struct {
	FileType     FileType
	CommSettings CommSettings
	AccessRights [2]byte
	Extra        []byte // size, fixed to the file type (size/limits/record layout).
}

// GetFileSettings (INS=0xF5): fileNo.
type GetFileSettings struct {
	oneShot
	FileNo   byte
	settings FileSettings
}

func (g *GetFileSettings) Name() string { return "GetFileSettings" }

func (g *GetFileSettings) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if g.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0xF5, Data: []byte{g.FileNo}}, nil
}

func (g *GetFileSettings) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	res, err := g.finish(raw)
	if err != nil {
		return res, err
	}
	if len(res.Data) < 4 {
		return desfire.Result{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidResponse, "file settings too short")
	}
	g.settings = FileSettings{
		FileType:     FileType(res.Data[0]),
		CommSettings: CommSettings(res.Data[1]),
		AccessRights: [2]byte{res.Data[2], res.Data[3]},
		Extra:        res.Data[4:],
	}

	return res, nil
}

// Settings returns the parsed file settings once complete.
func (g *GetFileSettings) Settings() FileSettings { return g.settings }

// ChangeFileSettings (INS=0x5F): fileNo || commSettings || access1 || access2.
// When authenticated and commSettings requires protection, payload must be
// wrapped by the caller per the secure messaging policy before this command
// is driven; this command itself only frames the plaintext fields.
type ChangeFileSettings struct {
	oneShot
	FileNo       byte
	CommSettings CommSettings
	AccessRights AccessRights
}

func (c *ChangeFileSettings) Name() string { return "ChangeFileSettings" }

func (c *ChangeFileSettings) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}
	ar := c.AccessRights.bytes()
	data := []byte{c.FileNo, byte(c.CommSettings), ar[0], ar[1]}

	return desfire.Request{CommandCode: 0x5F, Data: data}, nil
}

func (c *ChangeFileSettings) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// ClearRecordFile (INS=0xEB): fileNo.
type ClearRecordFile struct {
	oneShot
	FileNo byte
}

func (c *ClearRecordFile) Name() string { return "ClearRecordFile" }

func (c *ClearRecordFile) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0xEB, Data: []byte{c.FileNo}}, nil
}

func (c *ClearRecordFile) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}

// CommitTransaction (INS=0xC7): empty payload.
type CommitTransaction struct{ oneShot }

func (c *CommitTransaction) Name() string { return "CommitTransaction" }

func (c *CommitTransaction) BuildRequest(_ *desfire.Context) (desfire.Request, error) {
	if c.st != stateInitial {
		return desfire.Request{}, desfireerr.New(desfireerr.LayerDesfire, desfireerr.CodeInvalidState, "complete")
	}

	return desfire.Request{CommandCode: 0xC7}, nil
}

func (c *CommitTransaction) ParseResponse(raw []byte, _ *desfire.Context) (desfire.Result, error) {
	return c.finish(raw)
}
