package application

import (
	"log/slog"
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// LockConfig holds the actuator geometry and timing.
type LockConfig struct {
	OpenAngle   int
	ClosedAngle int
	Dwell       time.Duration
}

// DefaultLockConfig returns a 90 degree open position held for 800ms.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		OpenAngle:   90,
		ClosedAngle: 0,
		Dwell:       800 * time.Millisecond,
	}
}

// LockActuator drives the lock through its open/close pulse. It is only ever
// called from the control loop goroutine, so pulses never overlap and every
// Unlock returns with the lock closed.
type LockActuator struct {
	servo  driven.Servo
	clock  Clock
	cfg    LockConfig
	logger *slog.Logger
}

// NewLockActuator creates a LockActuator.
func NewLockActuator(servo driven.Servo, clock Clock, cfg LockConfig, logger *slog.Logger) *LockActuator {
	return &LockActuator{
		servo:  servo,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Reset drives the lock to the closed position.
func (l *LockActuator) Reset() {
	l.servo.SetPosition(l.cfg.ClosedAngle)
}

// Unlock opens the lock, holds it for the dwell time and closes it again.
func (l *LockActuator) Unlock() {
	l.logger.Debug("lock pulse", "open_angle", l.cfg.OpenAngle, "dwell", l.cfg.Dwell)
	l.servo.SetPosition(l.cfg.OpenAngle)
	l.clock.Sleep(l.cfg.Dwell)
	l.servo.SetPosition(l.cfg.ClosedAngle)
}
