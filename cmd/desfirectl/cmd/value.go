package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/pkg/desfirecard"
)

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Value file operations: get, credit, debit, limited-credit",
}

var valueGetCmd = &cobra.Command{
	Use:   "get <file-no>",
	Short: "Read a value file's balance",
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

		v, err := card.GetValue(context.Background(), fileNo, commands.CommSettingsEnciphered)
		if err != nil {
			return err
		}
		fmt.Println(v)

		return nil
	},
}

func valueTxnCmd(use, short string, run func(*desfirecard.Card, context.Context, byte, int32) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file-no> <value>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			fileNo, err := parseFileNo(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseInt(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}

			card, closeFn, err := openCard(c)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := run(card, context.Background(), fileNo, int32(value)); err != nil {
				return err
			}
			fmt.Println("ok")

			return nil
		},
	}
}

var valueCreditCmd = valueTxnCmd("credit", "Increase a value file's balance",
	(*desfirecard.Card).Credit)

var valueDebitCmd = valueTxnCmd("debit", "Decrease a value file's balance",
	(*desfirecard.Card).Debit)

var valueLimitedCreditCmd = valueTxnCmd("limited-credit", "Apply a limited credit (requires the file's limited-credit flag)",
	(*desfirecard.Card).LimitedCredit)

func parseFileNo(s string) (byte, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 0x1F {
		return 0, fmt.Errorf("invalid file number %q", s)
	}

	return byte(n), nil
}

func init() {
	rootCmd.AddCommand(valueCmd)
	valueCmd.AddCommand(valueGetCmd, valueCreditCmd, valueDebitCmd, valueLimitedCreditCmd)
}
