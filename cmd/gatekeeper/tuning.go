package main

import (
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/application"
	"github.com/ericfisherdev/gatekeeper/internal/config"
)

// lockConfig overlays the lock tuning onto the default servo geometry.
func lockConfig(t config.Tuning) application.LockConfig {
	cfg := application.DefaultLockConfig()
	if t.Lock.OpenAngle != nil {
		cfg.OpenAngle = *t.Lock.OpenAngle
	}
	if t.Lock.ClosedAngle != nil {
		cfg.ClosedAngle = *t.Lock.ClosedAngle
	}
	if t.Lock.Dwell > 0 {
		cfg.Dwell = t.Lock.Dwell
	}
	return cfg
}

// enrollmentConfig overlays the enrollment tuning onto the default timing.
// Zero fields keep the default.
func enrollmentConfig(t config.Tuning) application.EnrollmentConfig {
	cfg := application.DefaultEnrollmentConfig()
	e := t.Enrollment
	overlay(&cfg.CardTimeout, e.CardTimeout)
	overlay(&cfg.CardNameTimeout, e.CardNameTimeout)
	overlay(&cfg.ImageTimeout, e.ImageTimeout)
	overlay(&cfg.RemovalPause, e.RemovalPause)
	overlay(&cfg.FingerNameTimeout, e.FingerNameTimeout)
	overlay(&cfg.Tick, e.Tick)
	if e.MaxSlotAttempts > 0 {
		cfg.MaxSlotAttempts = e.MaxSlotAttempts
	}
	return cfg
}

func loopConfig(t config.Tuning, pollInterval time.Duration) application.LoopConfig {
	cfg := application.DefaultLoopConfig()
	cfg.PollInterval = pollInterval
	overlay(&cfg.DisplayHold, t.Display.Hold)
	return cfg
}

func overlay(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
