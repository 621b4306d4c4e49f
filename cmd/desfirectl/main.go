// Command desfirectl is a thin CLI over the go_desfire driver library:
// authenticate, read/write files and value files, manage applications and
// keys, and dump card/version information.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/nfc-tools/go_desfire/cmd/desfirectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
