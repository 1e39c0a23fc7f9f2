package simulator

import (
	"log/slog"
	"sync"

	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

var (
	_ driven.Display = (*Display)(nil)
	_ driven.Servo   = (*Servo)(nil)
)

// Display logs every screen and remembers the last one.
type Display struct {
	logger *slog.Logger
	mu     sync.Mutex
	lines  [2]string
}

// NewDisplay creates a Display that logs to logger.
func NewDisplay(logger *slog.Logger) *Display {
	return &Display{logger: logger}
}

// ShowTwoLines replaces the screen contents.
func (d *Display) ShowTwoLines(line1, line2 string) {
	d.mu.Lock()
	d.lines = [2]string{line1, line2}
	d.mu.Unlock()
	d.logger.Info("display", "line1", line1, "line2", line2)
}

// Lines returns the current screen contents.
func (d *Display) Lines() (string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lines[0], d.lines[1]
}

// Servo logs every position change and remembers the current angle.
type Servo struct {
	logger *slog.Logger
	mu     sync.Mutex
	angle  int
	moves  int
}

// NewServo creates a Servo that logs to logger.
func NewServo(logger *slog.Logger) *Servo {
	return &Servo{logger: logger}
}

// SetPosition moves the servo.
func (s *Servo) SetPosition(angle int) {
	s.mu.Lock()
	s.angle = angle
	s.moves++
	s.mu.Unlock()
	s.logger.Info("servo", "angle", angle)
}

// Angle returns the current position.
func (s *Servo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Moves returns how many positions have been written.
func (s *Servo) Moves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}
