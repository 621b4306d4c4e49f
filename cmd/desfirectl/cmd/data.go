package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
)

func commSettingsFromFlag(s string) (commands.CommSettings, error) {
	switch s {
	case "plain":
		return commands.CommSettingsPlain, nil
	case "mac":
		return commands.CommSettingsMAC, nil
	case "enc", "enciphered":
		return commands.CommSettingsEnciphered, nil
	default:
		return 0, fmt.Errorf("unknown comm mode %q (want plain, mac, or enc)", s)
	}
}

var readCmd = &cobra.Command{
	Use:   "read <file-no>",
	Short: "Read a standard or backup data file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, offset, length, comm, err := dataFlags(c, args[0])
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		data, err := card.ReadData(context.Background(), fileNo, offset, length, comm)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(data))

		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <file-no> <hex-data>",
	Short: "Write a standard or backup data file",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		fileNo, offset, _, comm, err := dataFlags(c, args[0])
		if err != nil {
			return err
		}
		plaintext, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("invalid hex data: %w", err)
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.WriteData(context.Background(), fileNo, offset, plaintext, comm); err != nil {
			return err
		}
		fmt.Println("wrote", len(plaintext), "bytes")

		return nil
	},
}

func dataFlags(c *cobra.Command, fileArg string) (fileNo byte, offset, length int, comm commands.CommSettings, err error) {
	var fn int
	if _, err = fmt.Sscanf(fileArg, "%d", &fn); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid file number %q: %w", fileArg, err)
	}
	offset, _ = c.Flags().GetInt("offset")
	length, _ = c.Flags().GetInt("length")
	commStr, _ := c.Flags().GetString("comm")
	comm, err = commSettingsFromFlag(commStr)

	return byte(fn), offset, length, comm, err
}

func init() {
	rootCmd.AddCommand(readCmd, writeCmd)

	for _, c := range []*cobra.Command{readCmd, writeCmd} {
		c.Flags().Int("offset", 0, "byte offset")
		c.Flags().String("comm", "plain", "communication mode: plain, mac, or enc")
	}
	readCmd.Flags().Int("length", 32, "number of bytes to read")
}
