package logging

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
func InitLogger(debug, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano                 // always initialize base logger with timestamp.
	base := zerolog.New(os.Stdout).With().Timestamp().Logger() // initialize base logger.
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339Nano,
		}) // select output format.
	} else {
		log.Logger = base // use JSON logger.
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel) // set debug level.
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel) // set info level.
	}
}

// LogApdu logs one transceived native/ISO frame at debug level, so the
// wire trace is visible with --debug without cluttering info-level output.
func LogApdu(direction string, correlationID string, frame []byte) {
	log.Debug().
		Str("event", "apdu").
		Str("direction", direction).
		Str("correlation_id", correlationID).
		Str("frame_hex", hex.EncodeToString(frame)).
		Msg("apdu frame")
}

// LogCommandResult logs one completed command at info level: name,
// duration, and status only -- key material and payload bytes stay at
// debug level.
func LogCommandResult(command string, correlationID string, duration time.Duration, status byte) {
	log.Info().
		Str("event", "command_complete").
		Str("command", command).
		Str("correlation_id", correlationID).
		Dur("duration", duration).
		Str("status", hex.EncodeToString([]byte{status})).
		Msg("command finished")
}
