package model

import "strings"

// Modality identifies the kind of credential a record holds.
type Modality string

const (
	ModalityRFID        Modality = "rfid"
	ModalityFingerprint Modality = "fingerprint"
)

// Valid reports whether m is one of the known modalities.
func (m Modality) Valid() bool {
	return m == ModalityRFID || m == ModalityFingerprint
}

// EventKind classifies an outbound telemetry/audit event.
type EventKind string

const (
	EventEnrolled   EventKind = "enrolled"
	EventGranted    EventKind = "granted"
	EventDenied     EventKind = "denied"
	EventRemoteOpen EventKind = "remote_open"
	EventCleared    EventKind = "cleared"
)

// Command is an inbound remote command.
type Command string

const (
	CommandOpen    Command = "open"
	CommandList    Command = "list"
	CommandClear   Command = "clear"
	CommandUnknown Command = ""
)

// ParseCommand maps a raw payload to a Command. Matching is case-insensitive
// and ignores surrounding whitespace; anything else yields CommandUnknown.
func ParseCommand(raw string) Command {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		return CommandOpen
	case "list":
		return CommandList
	case "clear":
		return CommandClear
	default:
		return CommandUnknown
	}
}
