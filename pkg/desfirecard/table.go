package desfirecard

import (
	"encoding/hex"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
)

var (
	colorHeader = text.Colors{text.FgCyan, text.Bold}
	colorLabel  = text.Colors{text.FgYellow}
	colorValue  = text.Colors{text.FgWhite}
)

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Options.SeparateRows = false
	t.SetStyle(style)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 18},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})

	return t
}

// DumpCardInfo renders CardInfo as a two-column table.
func DumpCardInfo(info desfire.CardInfo) {
	t := newTable("CARD INFORMATION")
	t.AppendRow(table.Row{"UID", hex.EncodeToString(info.UID)})
	// ATQA is stored little-endian (as received over the air) but displayed
	// byte-swapped, the conventional big-endian notation.
	t.AppendRow(table.Row{"ATQA", hex.EncodeToString([]byte{byte(info.ATQA >> 8), byte(info.ATQA)})})
	t.AppendRow(table.Row{"SAK", hex.EncodeToString([]byte{info.SAK})})
	if len(info.ATS) > 0 {
		t.AppendRow(table.Row{"ATS", hex.EncodeToString(info.ATS)})
	}
	t.AppendRow(table.Row{"Type", info.Type.String()})
	t.Render()
}

// DumpVersion renders a GetVersion result as a three-row table.
func DumpVersion(v commands.VersionInfo) {
	t := newTable("CARD VERSION")
	t.AppendRow(table.Row{"Hardware", hex.EncodeToString(v.Hardware[:])})
	t.AppendRow(table.Row{"Software", hex.EncodeToString(v.Software[:])})
	t.AppendRow(table.Row{"Production", hex.EncodeToString(v.Production[:])})
	t.Render()
}

// DumpApplicationIDs renders a list of AIDs, one per row.
func DumpApplicationIDs(aids [][3]byte) {
	t := newTable("APPLICATIONS")
	t.AppendHeader(table.Row{"AID"})
	for _, aid := range aids {
		t.AppendRow(table.Row{hex.EncodeToString(aid[:])})
	}
	t.Render()
}

// DumpFileSettings renders one file's settings as a two-column table.
func DumpFileSettings(fileNo byte, s commands.FileSettings) {
	t := newTable("FILE SETTINGS")
	t.AppendRow(table.Row{"File No", fileNo})
	t.AppendRow(table.Row{"Type", s.FileType})
	t.AppendRow(table.Row{"Comm", s.CommSettings})
	t.AppendRow(table.Row{"Access Rights", hex.EncodeToString(s.AccessRights[:])})
	t.AppendRow(table.Row{"Extra", hex.EncodeToString(s.Extra)})
	t.Render()
}
