// Package cmd provides the CLI commands for desfirectl.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nfc-tools/go_desfire/internal/config"
	"github.com/nfc-tools/go_desfire/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "desfirectl",
	Short: "DESFire contactless smart card driver CLI",
	Long: `desfirectl drives NXP MIFARE DESFire cards over a PN532-class NFC
reader: authenticate, select applications, read/write files and value
files, manage keys, and inspect cards.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(c *cobra.Command, _ []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		cfg = config.Get()
		if cfgFile != "" {
			v := config.GetViper()
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
			if err := v.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to decode config file %s: %w", cfgFile, err)
			}
		}

		debug, _ := c.Flags().GetBool("debug")
		human := cfg.Log.Format != "json"
		logging.InitLogger(debug, human)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.go_desfire/config.yaml)")
	rootCmd.PersistentFlags().String("port", "", "reader serial port (overrides config)")
	rootCmd.PersistentFlags().Int("baud", 0, "reader baud rate (overrides config)")
	rootCmd.PersistentFlags().Bool("iso", false, "wrap commands as ISO 7816-4 APDUs instead of native DESFire framing")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging, including hex-encoded apdu traces")
	rootCmd.PersistentFlags().String("uid", "", "hex card UID (for readers where anticollision already ran externally)")
	rootCmd.PersistentFlags().String("atqa", "0344", "hex ATQA, little-endian as received")
	rootCmd.PersistentFlags().String("sak", "20", "hex SAK")
	rootCmd.PersistentFlags().String("ats", "", "hex ATS")

	viper.BindPFlag("reader.port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("reader.baud", rootCmd.PersistentFlags().Lookup("baud"))
}
