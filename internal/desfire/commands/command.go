// Package commands implements one state machine per DESFire command code.
// Every command is a small Command, driven by the caller (pkg/desfirecard)
// through BuildRequest -> wire.Wrap -> transceiver.Transceive -> wire.Unwrap
// -> ParseResponse, repeated until IsComplete returns true.
package commands

import "github.com/nfc-tools/go_desfire/internal/desfire"

// Command is the trait every DESFire command implements: a tiny FSM with at
// least {Initial, Complete} states, plus {AdditionalFrame, Writing,
// ReadChunk} for the commands that chain across multiple card exchanges.
type Command interface {
	// Name returns the command's human-readable name for logging.
	Name() string
	// BuildRequest produces the next outgoing request given the current
	// session context and this command's internal state.
	BuildRequest(ctx *desfire.Context) (desfire.Request, error)
	// ParseResponse consumes one raw native response ([status, data...])
	// and advances the command's internal state, mutating ctx as the
	// secure messaging policy requires.
	ParseResponse(raw []byte, ctx *desfire.Context) (desfire.Result, error)
	// IsComplete reports whether the command has reached a terminal state.
	IsComplete() bool
	// Reset returns the command to its initial state so it can be reused.
	Reset()
}

// state is the shared FSM stage enumeration used by every command in this
// package; not every command uses every stage.
type state int

const (
	stateInitial state = iota
	stateAdditionalFrame
	stateReadChunk
	stateWriting
	stateComplete
)
