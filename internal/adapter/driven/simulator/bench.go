package simulator

import (
	"encoding/hex"
	"log/slog"
	"strings"
)

// Bench routes "sim ..." operator lines to the simulated peripherals:
//
//	sim card <hex uid>     present a card
//	sim finger <print>     touch the sensor once with the given print
//	sim offline|online     take the fingerprint module off or on the link
type Bench struct {
	Card   *CardReader
	Finger *FingerprintSensor
	logger *slog.Logger
}

// NewBench creates a Bench over the given peripherals.
func NewBench(card *CardReader, finger *FingerprintSensor, logger *slog.Logger) *Bench {
	return &Bench{Card: card, Finger: finger, logger: logger}
}

// HandleLine consumes line if it is a simulator command and reports whether
// it did. Malformed simulator commands are consumed and logged.
func (b *Bench) HandleLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "sim") {
		return false
	}
	if len(fields) < 2 {
		b.logger.Warn("sim: missing subcommand", "line", line)
		return true
	}

	switch strings.ToLower(fields[1]) {
	case "card":
		if len(fields) != 3 {
			b.logger.Warn("sim card: expected one hex uid", "line", line)
			return true
		}
		uid, err := hex.DecodeString(fields[2])
		if err != nil || len(uid) == 0 {
			b.logger.Warn("sim card: invalid uid", "uid", fields[2], "error", err)
			return true
		}
		b.Card.Present(uid)
		b.logger.Debug("sim card presented", "uid", fields[2])

	case "finger":
		if len(fields) != 3 {
			b.logger.Warn("sim finger: expected one print label", "line", line)
			return true
		}
		b.Finger.Touch(fields[2])
		b.logger.Debug("sim finger touched", "print", fields[2])

	case "offline":
		b.Finger.SetOnline(false)
	case "online":
		b.Finger.SetOnline(true)

	default:
		b.logger.Warn("sim: unknown subcommand", "subcommand", fields[1])
	}
	return true
}
