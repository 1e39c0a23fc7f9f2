package driven

import (
	"context"
	"errors"
)

// ErrTransportOffline is returned by RemoteTransport publish methods when the
// transport has no live connection.
var ErrTransportOffline = errors.New("remote transport offline")

// RemoteTransport is the optional command/telemetry channel to a message
// broker.
type RemoteTransport interface {
	// EnsureConnected attempts a reconnect when the link is down. It may block
	// for the transport's connect timeout.
	EnsureConnected(ctx context.Context) error

	// Connected reports whether the link is currently up.
	Connected() bool

	// Receive returns the next buffered inbound command payload, if any.
	Receive() (string, bool)

	// PublishEvent sends a structured event payload.
	PublishEvent(payload []byte) error

	// PublishStatus sends a short literal status string.
	PublishStatus(status string) error
}
