// Package desfirecard is the public high-level API: ergonomic methods over
// a CardSession that hide the buildRequest/wrap/transceive/unwrap/
// parseResponse loop behind one call per DESFire operation.
package desfirecard

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nfc-tools/go_desfire/internal/cardmanager"
	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/internal/desfire/securemessaging"
)

// Card is the façade over one CardSession. It is the type application code
// is expected to hold and call methods on; every method runs exactly one
// command to completion.
type Card struct {
	session *cardmanager.CardSession
}

// New wraps an existing CardSession.
func New(session *cardmanager.CardSession) *Card {
	return &Card{session: session}
}

// Info returns the card identification captured at detection time.
func (c *Card) Info() desfire.CardInfo { return c.session.Info() }

// Authenticate runs the full challenge/response exchange for keyNo under
// the given key and mode.
func (c *Card) Authenticate(ctx context.Context, mode commands.AuthMode, keyNo byte, key []byte) error {
	cmd := commands.NewAuthenticate(mode, keyNo, key)
	_, err := c.session.Run(ctx, cmd)

	return err
}

// SelectApplication selects aid, ending any prior authenticated session.
func (c *Card) SelectApplication(ctx context.Context, aid [3]byte) error {
	cmd := &commands.SelectApplication{AID: aid}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// CreateApplication creates a new application with the given key settings.
func (c *Card) CreateApplication(
	ctx context.Context, aid [3]byte, keySettings1 byte, keyCount int, keyType commands.KeyType,
) error {
	cmd := &commands.CreateApplication{AID: aid, KeySettings1: keySettings1, KeyCount: keyCount, KeyType: keyType}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// DeleteApplication deletes aid.
func (c *Card) DeleteApplication(ctx context.Context, aid [3]byte) error {
	cmd := &commands.DeleteApplication{AID: aid}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// GetApplicationIDs lists every application on the PICC.
func (c *Card) GetApplicationIDs(ctx context.Context) ([][3]byte, error) {
	cmd := &commands.GetApplicationIDs{}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return nil, err
	}

	return cmd.AIDs(), nil
}

// GetVersion reads the card's hardware/software/production version info.
func (c *Card) GetVersion(ctx context.Context) (commands.VersionInfo, error) {
	cmd := commands.NewGetVersion()
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return commands.VersionInfo{}, err
	}

	return cmd.Version()
}

// GetCardUID reads the 7-byte card UID, decrypting it if authenticated.
func (c *Card) GetCardUID(ctx context.Context) ([]byte, error) {
	cmd := &commands.GetCardUID{}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return nil, err
	}

	return cmd.UID(), nil
}

// FreeMemory reads the PICC's remaining EEPROM byte count.
func (c *Card) FreeMemory(ctx context.Context) (int, error) {
	cmd := &commands.FreeMemory{}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return 0, err
	}

	return cmd.BytesFree(), nil
}

// FormatPICC erases every application on the card.
func (c *Card) FormatPICC(ctx context.Context) error {
	cmd := &commands.FormatPICC{}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// ReadData reads length bytes from fileNo starting at offset, under the
// given communication settings.
func (c *Card) ReadData(ctx context.Context, fileNo byte, offset, length int, comm commands.CommSettings) ([]byte, error) {
	cmd := commands.NewReadData(fileNo, offset, length, comm)
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return nil, err
	}

	return cmd.Data(), nil
}

// WriteData writes plaintext to fileNo starting at offset, under the given
// communication settings.
func (c *Card) WriteData(
	ctx context.Context, fileNo byte, offset int, plaintext []byte, comm commands.CommSettings,
) error {
	cmd := &commands.WriteData{FileNo: fileNo, Offset: offset, CommSettings: comm, Plaintext: plaintext}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// ReadRecords reads recordCount records of recordSize bytes starting at
// recordOffset from fileNo.
func (c *Card) ReadRecords(
	ctx context.Context, fileNo byte, recordOffset, recordCount, recordSize int, comm commands.CommSettings,
) ([]byte, error) {
	cmd := commands.NewReadRecords(fileNo, recordOffset, recordCount, recordSize, comm)
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return nil, err
	}

	return cmd.Records(), nil
}

// GetValue reads the signed value stored in a value file.
func (c *Card) GetValue(ctx context.Context, fileNo byte, comm commands.CommSettings) (int32, error) {
	cmd := commands.NewGetValue(fileNo, comm)
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return 0, err
	}

	return cmd.Value(), nil
}

// Credit increases a value file's balance by value.
func (c *Card) Credit(ctx context.Context, fileNo byte, value int32) error {
	_, err := c.session.Run(ctx, commands.NewCredit(fileNo, value))

	return err
}

// Debit decreases a value file's balance by value.
func (c *Card) Debit(ctx context.Context, fileNo byte, value int32) error {
	_, err := c.session.Run(ctx, commands.NewDebit(fileNo, value))

	return err
}

// LimitedCredit increases a value file's balance by value, bypassing the
// configured credit limit's requirement for prior authorization.
func (c *Card) LimitedCredit(ctx context.Context, fileNo byte, value int32) error {
	_, err := c.session.Run(ctx, commands.NewLimitedCredit(fileNo, value))

	return err
}

// CommitTransaction commits any pending value/record file changes.
func (c *Card) CommitTransaction(ctx context.Context) error {
	_, err := c.session.Run(ctx, &commands.CommitTransaction{})

	return err
}

// ChangeKey replaces a key slot. newKeyType/newKeyVersion/oldKey/legacySeed
// mirror commands.ChangeKey's fields, which carry out the full
// effective-key-number and same-slot-vs-different-slot XOR procedure.
func (c *Card) ChangeKey(
	ctx context.Context,
	targetKeyNo byte,
	newKey []byte,
	newKeyType commands.KeyType,
	newKeyVersion byte,
	oldKey []byte,
	legacySeed securemessaging.LegacyIvSeed,
) error {
	cmd := &commands.ChangeKey{
		TargetKeyNo: targetKeyNo, NewKey: newKey, NewKeyType: newKeyType,
		NewKeyVersion: newKeyVersion, OldKey: oldKey, LegacySeed: legacySeed,
	}
	_, err := c.session.Run(ctx, cmd)
	if err != nil {
		log.Debug().Str("event", "change_key_error").Err(err).Msg("change key failed")
	}

	return err
}

// GetKeySettings reads the selected application's key settings.
func (c *Card) GetKeySettings(ctx context.Context) (commands.GetKeySettings, error) {
	cmd := &commands.GetKeySettings{}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return commands.GetKeySettings{}, err
	}

	return *cmd, nil
}

// GetKeyVersion reads a key slot's version byte.
func (c *Card) GetKeyVersion(ctx context.Context, keyNo byte) (byte, error) {
	cmd := &commands.GetKeyVersion{KeyNo: keyNo}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return 0, err
	}

	return cmd.Version(), nil
}

// ChangeKeySettings replaces the selected application's KeySettings1 byte.
func (c *Card) ChangeKeySettings(ctx context.Context, newKeySettings1 byte, legacySeed securemessaging.LegacyIvSeed) error {
	cmd := &commands.ChangeKeySettings{NewKeySettings1: newKeySettings1, LegacySeed: legacySeed}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// SetConfiguration writes one of the PICC-level configuration options
// (0x00 PICC config, 0x01 default key/version, 0x02 ATS). Only valid when
// authenticated to the PICC master key.
func (c *Card) SetConfiguration(ctx context.Context, option byte, plaintext []byte, legacySeed securemessaging.LegacyIvSeed) error {
	cmd := &commands.SetConfiguration{Option: option, Plaintext: plaintext, LegacySeed: legacySeed}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// CreateStdDataFile creates a standard data file with a fixed size.
func (c *Card) CreateStdDataFile(
	ctx context.Context, fileNo byte, comm commands.CommSettings, ar commands.AccessRights, fileSize int,
) error {
	cmd := &commands.CreateStdDataFile{FileNo: fileNo, CommSettings: comm, AccessRights: ar, FileSize: fileSize}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// CreateBackupDataFile creates a backup data file with a fixed size.
func (c *Card) CreateBackupDataFile(
	ctx context.Context, fileNo byte, comm commands.CommSettings, ar commands.AccessRights, fileSize int,
) error {
	cmd := &commands.CreateBackupDataFile{FileNo: fileNo, CommSettings: comm, AccessRights: ar, FileSize: fileSize}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// CreateValueFile creates a value file with the given limits and initial
// balance.
func (c *Card) CreateValueFile(
	ctx context.Context, fileNo byte, comm commands.CommSettings, ar commands.AccessRights,
	lowerLimit, upperLimit, value int32, limitedCreditEnabled, freeGetValue bool,
) error {
	cmd := &commands.CreateValueFile{
		FileNo: fileNo, CommSettings: comm, AccessRights: ar,
		LowerLimit: lowerLimit, UpperLimit: upperLimit, Value: value,
		LimitedCreditEnabled: limitedCreditEnabled, FreeGetValue: freeGetValue,
	}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// CreateLinearRecordFile creates a non-wrapping record file.
func (c *Card) CreateLinearRecordFile(
	ctx context.Context, fileNo byte, comm commands.CommSettings, ar commands.AccessRights, recordSize, maxRecords int,
) error {
	cmd := &commands.CreateLinearRecordFile{
		FileNo: fileNo, CommSettings: comm, AccessRights: ar, RecordSize: recordSize, MaxRecords: maxRecords,
	}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// CreateCyclicRecordFile creates a wrapping (ring-buffer) record file.
func (c *Card) CreateCyclicRecordFile(
	ctx context.Context, fileNo byte, comm commands.CommSettings, ar commands.AccessRights, recordSize, maxRecords int,
) error {
	cmd := &commands.CreateCyclicRecordFile{
		FileNo: fileNo, CommSettings: comm, AccessRights: ar, RecordSize: recordSize, MaxRecords: maxRecords,
	}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// DeleteFile deletes fileNo from the selected application.
func (c *Card) DeleteFile(ctx context.Context, fileNo byte) error {
	cmd := &commands.DeleteFile{FileNo: fileNo}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// GetFileIDs lists the file numbers present in the selected application.
func (c *Card) GetFileIDs(ctx context.Context) ([]byte, error) {
	cmd := &commands.GetFileIDs{}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return nil, err
	}

	return cmd.FileIDs(), nil
}

// GetFileSettings reads fileNo's type, communication settings, access
// rights, and type-specific layout.
func (c *Card) GetFileSettings(ctx context.Context, fileNo byte) (commands.FileSettings, error) {
	cmd := &commands.GetFileSettings{FileNo: fileNo}
	if _, err := c.session.Run(ctx, cmd); err != nil {
		return commands.FileSettings{}, err
	}

	return cmd.Settings(), nil
}

// ChangeFileSettings updates fileNo's communication settings and access
// rights.
func (c *Card) ChangeFileSettings(
	ctx context.Context, fileNo byte, comm commands.CommSettings, ar commands.AccessRights,
) error {
	cmd := &commands.ChangeFileSettings{FileNo: fileNo, CommSettings: comm, AccessRights: ar}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// ClearRecordFile resets a cyclic/linear record file to empty.
func (c *Card) ClearRecordFile(ctx context.Context, fileNo byte) error {
	cmd := &commands.ClearRecordFile{FileNo: fileNo}
	_, err := c.session.Run(ctx, cmd)

	return err
}

// WriteRecords appends plaintext as a new record to fileNo.
func (c *Card) WriteRecords(
	ctx context.Context, fileNo byte, byteOffset int, plaintext []byte, comm commands.CommSettings,
) error {
	cmd := &commands.WriteRecords{FileNo: fileNo, ByteOffset: byteOffset, CommSettings: comm, Plaintext: plaintext}
	_, err := c.session.Run(ctx, cmd)

	return err
}
