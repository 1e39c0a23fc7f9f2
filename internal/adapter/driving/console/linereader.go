// Package console adapts an operator terminal into the LineSource port.
package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

var _ driven.LineSource = (*LineReader)(nil)

// Filter inspects a line before it reaches the control loop and reports
// whether it consumed it.
type Filter func(line string) bool

// LineReader scans lines from an io.Reader on its own goroutine and hands
// them to the control loop one poll at a time.
type LineReader struct {
	lines   chan string
	filters []Filter
	logger  *slog.Logger
}

// NewLineReader creates a LineReader. Lines consumed by any filter are never
// returned from PollLine.
func NewLineReader(logger *slog.Logger, filters ...Filter) *LineReader {
	return &LineReader{
		lines:   make(chan string, 32),
		filters: filters,
		logger:  logger,
	}
}

// Start scans r until EOF, a read error or ctx cancellation. It blocks while
// the buffer is full, so input is never dropped.
func (l *LineReader) Start(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case l.lines <- strings.TrimRight(scanner.Text(), "\r"):
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Error("console read failed", "error", err)
		return
	}
	l.logger.Debug("console input closed")
}

// PollLine returns the next buffered line not consumed by a filter, without
// blocking.
func (l *LineReader) PollLine() (string, bool) {
	for {
		select {
		case line := <-l.lines:
			if l.filtered(line) {
				continue
			}
			return line, true
		default:
			return "", false
		}
	}
}

func (l *LineReader) filtered(line string) bool {
	for _, f := range l.filters {
		if f(line) {
			return true
		}
	}
	return false
}
