package application

import "time"

// Clock is the time source shared by the control loop, the enrollment
// scheduler and the lock actuator. Tests substitute a clock whose Sleep only
// advances Now.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
