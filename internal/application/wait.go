package application

import "time"

// StepStatus is the outcome of advancing a wait state by one tick.
type StepStatus int

const (
	StepContinue StepStatus = iota
	StepSuccess
	StepTimeout
)

// Step is returned by Wait.Tick. Value is meaningful only for StepSuccess.
type Step[T any] struct {
	Status StepStatus
	Value  T
}

// Wait is a bounded wait-with-timeout. Each Tick polls once; a successful
// poll wins even on the tick that would otherwise expire the wait.
type Wait[T any] struct {
	timeout time.Duration
	elapsed time.Duration
	poll    func() (T, bool)
}

// NewWait returns a wait that polls until poll reports true or the
// accumulated elapsed time reaches timeout.
func NewWait[T any](timeout time.Duration, poll func() (T, bool)) *Wait[T] {
	return &Wait[T]{timeout: timeout, poll: poll}
}

// Tick polls once and accounts elapsed time against the timeout.
func (w *Wait[T]) Tick(elapsed time.Duration) Step[T] {
	if v, ok := w.poll(); ok {
		return Step[T]{Status: StepSuccess, Value: v}
	}

	w.elapsed += elapsed
	if w.elapsed >= w.timeout {
		return Step[T]{Status: StepTimeout}
	}
	return Step[T]{Status: StepContinue}
}

// Elapsed returns the time accounted so far.
func (w *Wait[T]) Elapsed() time.Duration {
	return w.elapsed
}

// Pause is a fixed delay expressed as a wait state. It succeeds once the
// accumulated elapsed time reaches its duration.
type Pause struct {
	wait *Wait[struct{}]
}

// NewPause returns a pause of duration d.
func NewPause(d time.Duration) *Pause {
	return &Pause{wait: NewWait(d, func() (struct{}, bool) { return struct{}{}, false })}
}

// Tick reports whether the pause has finished.
func (p *Pause) Tick(elapsed time.Duration) bool {
	return p.wait.Tick(elapsed).Status == StepTimeout
}
