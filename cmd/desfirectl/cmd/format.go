package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format the PICC, erasing every application",
	RunE: func(c *cobra.Command, _ []string) error {
		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.FormatPICC(context.Background()); err != nil {
			return err
		}
		fmt.Println("formatted")

		return nil
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit a pending value or record-file transaction",
	RunE: func(c *cobra.Command, _ []string) error {
		card, closeFn, err := openCard(c)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := card.CommitTransaction(context.Background()); err != nil {
			return err
		}
		fmt.Println("committed")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(formatCmd, commitCmd)
}
