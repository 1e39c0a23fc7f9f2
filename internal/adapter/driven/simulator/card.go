// Package simulator provides in-memory peripherals for running the
// controller on a workstation: a card reader, a fingerprint sensor, and
// log-backed display and servo. A Bench ties them to operator input lines.
package simulator

import (
	"sync"

	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

var _ driven.CardReader = (*CardReader)(nil)

// CardReader is a simulated proximity reader. Presented identifiers are
// queued and each is read exactly once.
type CardReader struct {
	mu      sync.Mutex
	pending [][]byte
	halts   int
}

// NewCardReader creates an empty CardReader.
func NewCardReader() *CardReader {
	return &CardReader{}
}

// Present queues a card presentation.
func (r *CardReader) Present(uid []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, append([]byte(nil), uid...))
}

// PollPresent reports whether a card is waiting to be read.
func (r *CardReader) PollPresent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// ReadIdentifier returns the oldest queued identifier, or nil if none.
func (r *CardReader) ReadIdentifier() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil, nil
	}
	uid := r.pending[0]
	r.pending = r.pending[1:]
	return uid, nil
}

// Halt records that the current card was put to sleep.
func (r *CardReader) Halt() {
	r.mu.Lock()
	r.halts++
	r.mu.Unlock()
}

// Halts returns how many times Halt was called.
func (r *CardReader) Halts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halts
}
