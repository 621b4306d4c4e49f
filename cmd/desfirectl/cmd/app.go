package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/pkg/desfirecard"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Application (AID) management",
}

var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every application ID on the card",
	RunE: func(c *cobra.Command, _ []string) error {
		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		aids, err := card.GetApplicationIDs(context.Background())
		if err != nil {
			return err
		}
		desfirecard.DumpApplicationIDs(aids)

		return nil
	},
}

var appSelectCmd = &cobra.Command{
	Use:   "select <aid>",
	Short: "Select an application by 3-byte hex AID",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		aid, err := parseAID(args[0])
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.SelectApplication(context.Background(), aid); err != nil {
			return err
		}
		fmt.Printf("selected %x\n", aid)

		return nil
	},
}

var appCreateCmd = &cobra.Command{
	Use:   "create <aid>",
	Short: "Create an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		aid, err := parseAID(args[0])
		if err != nil {
			return err
		}
		keySettings1, _ := c.Flags().GetUint8("key-settings1")
		keyCount, _ := c.Flags().GetInt("key-count")
		keyTypeStr, _ := c.Flags().GetString("key-type")

		keyType, err := keyTypeFromFlag(keyTypeStr)
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.CreateApplication(context.Background(), aid, keySettings1, keyCount, keyType); err != nil {
			return err
		}
		fmt.Printf("created application %x\n", aid)

		return nil
	},
}

var appDeleteCmd = &cobra.Command{
	Use:   "delete <aid>",
	Short: "Delete an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		aid, err := parseAID(args[0])
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.DeleteApplication(context.Background(), aid); err != nil {
			return err
		}
		fmt.Printf("deleted application %x\n", aid)

		return nil
	},
}

func keyTypeFromFlag(s string) (commands.KeyType, error) {
	switch s {
	case "des":
		return commands.KeyTypeDES, nil
	case "3k3des":
		return commands.KeyType3K3DES, nil
	case "aes":
		return commands.KeyTypeAES, nil
	default:
		return 0, fmt.Errorf("unknown key type %q (want des, 3k3des, or aes)", s)
	}
}

func init() {
	rootCmd.AddCommand(appCmd)
	appCmd.AddCommand(appListCmd, appSelectCmd, appCreateCmd, appDeleteCmd)

	appCreateCmd.Flags().Uint8("key-settings1", 0x0F, "KeySettings1 byte")
	appCreateCmd.Flags().Int("key-count", 1, "number of key slots (1-14)")
	appCreateCmd.Flags().String("key-type", "aes", "key type: des, 3k3des, or aes")
}
