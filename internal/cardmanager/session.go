package cardmanager

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nfc-tools/go_desfire/internal/desfire"
	"github.com/nfc-tools/go_desfire/internal/desfire/commands"
	"github.com/nfc-tools/go_desfire/internal/desfireerr"
	"github.com/nfc-tools/go_desfire/internal/logging"
	"github.com/nfc-tools/go_desfire/internal/transceiver"
	"github.com/nfc-tools/go_desfire/internal/wire"
)

// CardManager owns the transceiver and detector for one reader and
// produces CardSessions against whatever card is currently present.
// Scheduling is single-threaded cooperative: a CardManager never loans its
// transceiver to two sessions at once.
type CardManager struct {
	Transceiver  transceiver.ApduTransceiver
	Detector     CardDetector
	Capabilities ReaderCapabilities

	lastInfo *desfire.CardInfo
}

// NewCardManager wires a transceiver and detector behind a CardManager,
// defaulting ReaderCapabilities to DefaultReaderCapabilities.
func NewCardManager(t transceiver.ApduTransceiver, d CardDetector) *CardManager {
	return &CardManager{Transceiver: t, Detector: d, Capabilities: DefaultReaderCapabilities}
}

// DetectCard probes the reader, classifies the card present, and memoizes
// the result for CreateSession.
func (m *CardManager) DetectCard(ctx context.Context) (desfire.CardInfo, error) {
	info, err := m.Detector.Detect(ctx)
	if err != nil {
		log.Debug().Str("event", "detect_card_error").Err(err).Msg("card detection failed")

		return desfire.CardInfo{}, err
	}
	if len(info.UID) == 0 {
		return desfire.CardInfo{}, errNoCard()
	}
	info.Type = classifyCardType(info)
	m.lastInfo = &info

	log.Debug().
		Str("event", "detect_card").
		Str("card_type", info.Type.String()).
		Str("sak", byteHex(info.SAK)).
		Msg("card detected")

	return info, nil
}

// CreateSession lazily detects a card (if not already memoized) and
// returns a CardSession bound to the requested Wire variant. Only
// MifareDesfire is supported by this session type; other classified card
// types are reported as a CardManager-layer error.
func (m *CardManager) CreateSession(ctx context.Context, useIso bool) (*CardSession, error) {
	info := m.lastInfo
	if info == nil {
		detected, err := m.DetectCard(ctx)
		if err != nil {
			return nil, err
		}
		info = &detected
	}
	if info.Type != desfire.CardTypeMifareDesfire {
		return nil, desfireerr.New(
			desfireerr.LayerCardManager, desfireerr.CodeUnsupportedCardType, "card type %s not supported", info.Type,
		)
	}

	var w wire.Wire = wire.Native{}
	if useIso {
		w = wire.Iso{}
	}

	return &CardSession{
		transceiver: m.Transceiver,
		wire:        w,
		ctx:         desfire.NewContext(),
		info:        *info,
	}, nil
}

// CardSession is the exclusive owner of one authenticated-or-not DESFire
// conversation: it holds the session Context and drives any Command's
// buildRequest -> wrap -> transceive -> unwrap -> parseResponse loop to
// completion. Not safe for concurrent use -- callers must assume a single
// cooperative owner.
type CardSession struct {
	transceiver transceiver.ApduTransceiver
	wire        wire.Wire
	ctx         *desfire.Context
	info        desfire.CardInfo
}

// Context exposes the session's DesfireContext for callers that need to
// inspect (not mutate) authentication state.
func (s *CardSession) Context() *desfire.Context { return s.ctx }

// Info returns the card identification captured at detection time.
func (s *CardSession) Info() desfire.CardInfo { return s.info }

// Run drives cmd to completion: each iteration builds a native request,
// wraps it per the session's wire variant, transceives it, unwraps the
// response, and feeds it back to cmd, until cmd reports complete or an
// error propagates. Errors from any layer (Hardware/Link/Pn532/Apdu/
// Desfire) are returned unchanged.
func (s *CardSession) Run(ctx context.Context, cmd commands.Command) (desfire.Result, error) {
	correlationID := uuid.NewString()
	started := time.Now()
	log.Debug().
		Str("event", "command_start").
		Str("command", cmd.Name()).
		Str("correlation_id", correlationID).
		Msg("running command")

	var last desfire.Result
	for !cmd.IsComplete() {
		req, err := cmd.BuildRequest(s.ctx)
		if err != nil {
			log.Debug().Str("event", "command_build_error").Str("command", cmd.Name()).Err(err).Msg("build request failed")

			return desfire.Result{}, err
		}
		if err := req.Validate(); err != nil {
			return desfire.Result{}, err
		}

		pdu := append([]byte{req.CommandCode}, req.Data...)
		apdu, err := s.wire.Wrap(pdu)
		if err != nil {
			return desfire.Result{}, err
		}
		logging.LogApdu("tx", correlationID, apdu)

		resp, err := s.transceiver.Transceive(ctx, apdu)
		if err != nil {
			log.Debug().Str("event", "transceive_error").Str("command", cmd.Name()).Err(err).Msg("transceive failed")

			return desfire.Result{}, err
		}

		raw := make([]byte, 0, len(resp.Data)+2)
		raw = append(raw, resp.Data...)
		raw = append(raw, resp.SW1, resp.SW2)
		logging.LogApdu("rx", correlationID, raw)

		native, err := s.wire.Unwrap(raw)
		if err != nil {
			return desfire.Result{}, err
		}

		last, err = cmd.ParseResponse(native, s.ctx)
		if err != nil {
			log.Debug().
				Str("event", "command_parse_error").
				Str("command", cmd.Name()).
				Str("correlation_id", correlationID).
				Err(err).
				Msg("parse response failed")

			return desfire.Result{}, err
		}
	}

	logging.LogCommandResult(cmd.Name(), correlationID, time.Since(started), last.StatusCode)

	return last, nil
}

func byteHex(b byte) string {
	const hexDigits = "0123456789abcdef"

	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
