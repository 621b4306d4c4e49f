package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/pkg/desfirecard"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Detect a card and print its identification and version",
	RunE: func(c *cobra.Command, _ []string) error {
		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		desfirecard.DumpCardInfo(card.Info())

		version, err := card.GetVersion(context.Background())
		if err != nil {
			return err
		}
		desfirecard.DumpVersion(version)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
