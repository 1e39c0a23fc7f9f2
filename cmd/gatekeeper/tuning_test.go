package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/gatekeeper/internal/application"
	"github.com/ericfisherdev/gatekeeper/internal/config"
)

func intPtr(v int) *int { return &v }

func TestTuningOverlays_EmptyKeepsDefaults(t *testing.T) {
	var tuning config.Tuning

	assert.Equal(t, application.DefaultLockConfig(), lockConfig(tuning))
	assert.Equal(t, application.DefaultEnrollmentConfig(), enrollmentConfig(tuning))

	loop := loopConfig(tuning, 250*time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, loop.PollInterval)
	assert.Equal(t, application.DefaultLoopConfig().DisplayHold, loop.DisplayHold)
}

func TestLockConfig_ZeroAngleIsHonored(t *testing.T) {
	tuning := config.Tuning{Lock: config.LockTuning{OpenAngle: intPtr(120), ClosedAngle: intPtr(0), Dwell: time.Second}}

	assert.Equal(t, application.LockConfig{OpenAngle: 120, ClosedAngle: 0, Dwell: time.Second}, lockConfig(tuning))
}

func TestEnrollmentConfig_PartialOverlay(t *testing.T) {
	tuning := config.Tuning{Enrollment: config.EnrollmentTuning{ImageTimeout: 15 * time.Second, MaxSlotAttempts: 50}}

	cfg := enrollmentConfig(tuning)

	assert.Equal(t, 15*time.Second, cfg.ImageTimeout)
	assert.Equal(t, 50, cfg.MaxSlotAttempts)
	assert.Equal(t, 20*time.Second, cfg.CardTimeout, "unset fields keep defaults")
}

func TestLoopConfig_DisplayHold(t *testing.T) {
	tuning := config.Tuning{Display: config.DisplayTuning{Hold: 2 * time.Second}}

	assert.Equal(t, 2*time.Second, loopConfig(tuning, time.Second).DisplayHold)
}
