package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning is the optional YAML file overriding hardware geometry and
// enrollment timing. Zero or absent fields keep the built-in defaults.
//
//	lock:
//	  open_angle: 90
//	  closed_angle: 0
//	  dwell: 800ms
//	enrollment:
//	  card_timeout: 20s
//	  card_name_timeout: 30s
//	  image_timeout: 20s
//	  removal_pause: 1200ms
//	  finger_name_timeout: 10s
//	  max_slot_attempts: 200
//	  tick: 50ms
//	sensor:
//	  capacity: 200
//	display:
//	  hold: 1500ms
type Tuning struct {
	Lock       LockTuning       `yaml:"lock"`
	Enrollment EnrollmentTuning `yaml:"enrollment"`
	Sensor     SensorTuning     `yaml:"sensor"`
	Display    DisplayTuning    `yaml:"display"`
}

// LockTuning overrides the servo geometry. Angles are pointers because 0 is
// a valid position.
type LockTuning struct {
	OpenAngle   *int          `yaml:"open_angle"`
	ClosedAngle *int          `yaml:"closed_angle"`
	Dwell       time.Duration `yaml:"dwell"`
}

// EnrollmentTuning overrides enrollment timeouts and retry bounds.
type EnrollmentTuning struct {
	CardTimeout       time.Duration `yaml:"card_timeout"`
	CardNameTimeout   time.Duration `yaml:"card_name_timeout"`
	ImageTimeout      time.Duration `yaml:"image_timeout"`
	RemovalPause      time.Duration `yaml:"removal_pause"`
	FingerNameTimeout time.Duration `yaml:"finger_name_timeout"`
	MaxSlotAttempts   int           `yaml:"max_slot_attempts"`
	Tick              time.Duration `yaml:"tick"`
}

// SensorTuning describes the fingerprint module.
type SensorTuning struct {
	Capacity uint16 `yaml:"capacity"`
}

// DisplayTuning overrides how long a decision stays on screen.
type DisplayTuning struct {
	Hold time.Duration `yaml:"hold"`
}

// LoadTuning reads and validates the YAML tuning file at path. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var t Tuning
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := t.validate(); err != nil {
		return Tuning{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) validate() error {
	for name, angle := range map[string]*int{
		"lock.open_angle":   t.Lock.OpenAngle,
		"lock.closed_angle": t.Lock.ClosedAngle,
	} {
		if angle != nil && (*angle < 0 || *angle > 180) {
			return fmt.Errorf("%s must be within 0..180, got %d", name, *angle)
		}
	}

	for name, d := range map[string]time.Duration{
		"lock.dwell":                     t.Lock.Dwell,
		"enrollment.card_timeout":        t.Enrollment.CardTimeout,
		"enrollment.card_name_timeout":   t.Enrollment.CardNameTimeout,
		"enrollment.image_timeout":       t.Enrollment.ImageTimeout,
		"enrollment.removal_pause":       t.Enrollment.RemovalPause,
		"enrollment.finger_name_timeout": t.Enrollment.FingerNameTimeout,
		"enrollment.tick":                t.Enrollment.Tick,
		"display.hold":                   t.Display.Hold,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	if t.Enrollment.MaxSlotAttempts < 0 {
		return fmt.Errorf("enrollment.max_slot_attempts must not be negative, got %d", t.Enrollment.MaxSlotAttempts)
	}
	return nil
}
