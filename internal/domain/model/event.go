package model

import "time"

// Event is a single audit/telemetry record. Method is the credential modality
// for local decisions and "remote" for commands received over the network.
type Event struct {
	ID     string
	Kind   EventKind
	Method string
	Key    string
	Name   string
	At     time.Time
}

// Event.Method values for events not tied to a credential modality.
const (
	MethodRemote = "remote"
	MethodLocal  = "local"
)
