package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/pkg/desfirecard"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "File management: list, create, settings, delete",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the file IDs in the selected application",
	RunE: func(c *cobra.Command, _ []string) error {
		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		ids, err := card.GetFileIDs(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(ids))

		return nil
	},
}

var filesSettingsCmd = &cobra.Command{
	Use:   "settings <file-no>",
	Short: "Print a file's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, err := parseFileNo(args[0])
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		settings, err := card.GetFileSettings(context.Background(), fileNo)
		if err != nil {
			return err
		}
		desfirecard.DumpFileSettings(fileNo, settings)

		return nil
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <file-no>",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, err := parseFileNo(args[0])
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.DeleteFile(context.Background(), fileNo); err != nil {
			return err
		}
		fmt.Println("deleted")

		return nil
	},
}

var filesClearRecordsCmd = &cobra.Command{
	Use:   "clear-records <file-no>",
	Short: "Clear a record file back to zero records",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, err := parseFileNo(args[0])
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.ClearRecordFile(context.Background(), fileNo); err != nil {
			return err
		}
		fmt.Println("cleared")

		return nil
	},
}

// accessRightsFromFlags builds an AccessRights from a 4-nibble hex string
// such as "e1e1", read left to right as ReadWrite|Change, Read|Write.
func accessRightsFromFlags(c *cobra.Command) (commands.AccessRights, error) {
	s, _ := c.Flags().GetString("ar")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 2 {
		return commands.AccessRights{}, fmt.Errorf("invalid --ar %q, want 4 hex digits (e.g. e1ee)", s)
	}

	return commands.AccessRights{
		ReadWrite: raw[0] >> 4,
		Change:    raw[0] & 0x0F,
		Read:      raw[1] >> 4,
		Write:     raw[1] & 0x0F,
	}, nil
}

var filesCreateStdCmd = &cobra.Command{
	Use:   "create-std <file-no> <size>",
	Short: "Create a standard data file",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, size, comm, ar, err := fileCreateArgs(c, args)
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.CreateStdDataFile(context.Background(), fileNo, comm, ar, size); err != nil {
			return err
		}
		fmt.Println("created")

		return nil
	},
}

var filesCreateBackupCmd = &cobra.Command{
	Use:   "create-backup <file-no> <size>",
	Short: "Create a backup data file",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, size, comm, ar, err := fileCreateArgs(c, args)
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.CreateBackupDataFile(context.Background(), fileNo, comm, ar, size); err != nil {
			return err
		}
		fmt.Println("created")

		return nil
	},
}

func fileCreateArgs(c *cobra.Command, args []string) (fileNo byte, size int, comm commands.CommSettings, ar commands.AccessRights, err error) {
	fileNo, err = parseFileNo(args[0])
	if err != nil {
		return
	}
	if _, err = fmt.Sscanf(args[1], "%d", &size); err != nil {
		err = fmt.Errorf("invalid size %q: %w", args[1], err)

		return
	}

	commStr, _ := c.Flags().GetString("comm")
	comm, err = commSettingsFromFlag(commStr)
	if err != nil {
		return
	}

	ar, err = accessRightsFromFlags(c)

	return
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(
		filesListCmd, filesSettingsCmd, filesDeleteCmd, filesClearRecordsCmd,
		filesCreateStdCmd, filesCreateBackupCmd,
	)

	for _, c := range []*cobra.Command{filesCreateStdCmd, filesCreateBackupCmd} {
		c.Flags().String("comm", "plain", "communication mode: plain, mac, or enc")
		c.Flags().String("ar", "e1ee", "access rights as 4 hex digits: RW|Change, Read|Write")
	}
}
