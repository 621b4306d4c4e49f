package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate to a key slot",
	RunE: func(c *cobra.Command, _ []string) error {
		keyNo, _ := c.Flags().GetInt("key-no")
		keyHex, _ := c.Flags().GetString("key")
		scheme, _ := c.Flags().GetString("scheme")

		key := mustParseKey(keyHex, scheme)
		if key == nil {
			key, _ = hex.DecodeString(cfg.Keys.DefaultKeyHex)
		}

		mode, err := authModeFromScheme(scheme)
		if err != nil {
			return err
		}

		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.Authenticate(context.Background(), mode, byte(keyNo), key); err != nil {
			return err
		}
		fmt.Println("authenticated")

		return nil
	},
}

func mustParseKey(keyHex, _ string) []byte {
	if keyHex == "" {
		return nil
	}
	b, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil
	}

	return b
}

func authModeFromScheme(scheme string) (commands.AuthMode, error) {
	switch scheme {
	case "legacy", "des":
		return commands.AuthModeLegacy, nil
	case "iso", "2k3des", "3k3des":
		return commands.AuthModeIso, nil
	case "aes", "":
		return commands.AuthModeAes, nil
	default:
		return 0, fmt.Errorf("unknown scheme %q (want legacy, iso, or aes)", scheme)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().Int("key-no", 0, "key slot number")
	authCmd.Flags().String("key", "", "hex key (defaults to the configured default key)")
	authCmd.Flags().String("scheme", "aes", "authentication scheme: legacy, iso, or aes")
}
