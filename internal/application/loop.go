// Package application contains the access-control use cases and the
// cooperative control loop that schedules them.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// ErrLoopBusy is returned by Submit when the loop does not pick a command up
// before the context ends. The command has not run.
var ErrLoopBusy = errors.New("control loop busy")

// commandRequest is a remote command submitted from outside the loop
// goroutine, e.g. by the HTTP admin API.
type commandRequest struct {
	raw  string
	done chan commandReply
}

type commandReply struct {
	cmd model.Command
	err error
}

// LoopConfig holds the control loop timing.
type LoopConfig struct {
	// PollInterval is the pause at the end of every iteration.
	PollInterval time.Duration
	// DisplayHold is how long a decision stays on the display before the
	// idle screen returns.
	DisplayHold time.Duration
}

// DefaultLoopConfig returns the standard loop timing.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		PollInterval: 100 * time.Millisecond,
		DisplayHold:  1500 * time.Millisecond,
	}
}

// ControlLoop is the single thread of control. Every iteration refreshes the
// transport, then polls the remote commands, the console, the card reader and
// the fingerprint sensor, in that order. Everything that touches the registry
// or the lock runs on the loop goroutine.
type ControlLoop struct {
	transport driven.RemoteTransport
	router    *CommandRouter
	console   *Console
	lines     driven.LineSource
	card      driven.CardReader
	finger    driven.FingerprintSensor
	match     *MatchEngine
	lock      *LockActuator
	sink      *EventSink
	display   driven.Display
	clock     Clock
	cfg       LoopConfig
	logger    *slog.Logger
	submitCh  chan commandRequest
	online    bool
}

// NewControlLoop creates a ControlLoop with all required dependencies.
func NewControlLoop(
	transport driven.RemoteTransport,
	router *CommandRouter,
	console *Console,
	lines driven.LineSource,
	card driven.CardReader,
	finger driven.FingerprintSensor,
	match *MatchEngine,
	lock *LockActuator,
	sink *EventSink,
	display driven.Display,
	clock Clock,
	cfg LoopConfig,
	logger *slog.Logger,
) *ControlLoop {
	return &ControlLoop{
		transport: transport,
		router:    router,
		console:   console,
		lines:     lines,
		card:      card,
		finger:    finger,
		match:     match,
		lock:      lock,
		sink:      sink,
		display:   display,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		submitCh:  make(chan commandRequest),
	}
}

// Run closes the lock, checks the sensor link and then iterates until the
// context is canceled.
func (l *ControlLoop) Run(ctx context.Context) {
	l.lock.Reset()
	if l.finger.VerifyLink() {
		l.logger.Info("fingerprint sensor ok")
	} else {
		l.logger.Warn("fingerprint sensor not responding")
	}
	l.showIdle()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped")
			return
		default:
		}

		l.RunOnce(ctx)
		l.clock.Sleep(l.cfg.PollInterval)
	}
}

// RunOnce performs a single loop iteration.
func (l *ControlLoop) RunOnce(ctx context.Context) {
	l.refreshTransport(ctx)
	l.pollRemote(ctx)
	l.pollConsole(ctx)
	l.pollCard(ctx)
	l.pollFingerprint(ctx)
}

// Submit hands a raw command to the loop and waits for it to execute. If ctx
// ends before the loop picks the command up, Submit returns an error wrapping
// ErrLoopBusy and ctx.Err(). Once picked up the command runs to completion on
// the loop and Submit waits for its reply regardless of ctx.
func (l *ControlLoop) Submit(ctx context.Context, raw string) (model.Command, error) {
	req := commandRequest{raw: raw, done: make(chan commandReply, 1)}

	select {
	case l.submitCh <- req:
	case <-ctx.Done():
		return model.CommandUnknown, fmt.Errorf("%w: %w", ErrLoopBusy, ctx.Err())
	}

	reply := <-req.done
	return reply.cmd, reply.err
}

func (l *ControlLoop) refreshTransport(ctx context.Context) {
	if err := l.transport.EnsureConnected(ctx); err != nil {
		l.logger.Debug("transport reconnect failed", "error", err)
	}

	connected := l.transport.Connected()
	if connected && !l.online {
		l.logger.Info("remote transport connected")
		l.sink.PublishStatus(StatusConnected)
	} else if !connected && l.online {
		l.logger.Warn("remote transport lost")
	}
	l.online = connected
}

func (l *ControlLoop) pollRemote(ctx context.Context) {
	for {
		raw, ok := l.transport.Receive()
		if !ok {
			break
		}
		if _, err := l.router.Handle(ctx, raw); err != nil {
			l.logger.Error("remote command failed", "raw", raw, "error", err)
		}
	}

	for {
		select {
		case req := <-l.submitCh:
			cmd, err := l.router.Handle(ctx, req.raw)
			if err != nil {
				l.logger.Error("submitted command failed", "raw", req.raw, "error", err)
			}
			req.done <- commandReply{cmd: cmd, err: err}
		default:
			return
		}
	}
}

func (l *ControlLoop) pollConsole(ctx context.Context) {
	line, ok := l.lines.PollLine()
	if !ok {
		return
	}
	l.console.Execute(ctx, line)
	l.showIdle()
}

func (l *ControlLoop) pollCard(ctx context.Context) {
	if !l.card.PollPresent() {
		return
	}
	defer l.card.Halt()

	uid, err := l.card.ReadIdentifier()
	if err != nil || len(uid) == 0 {
		l.logger.Debug("card read failed", "error", err)
		return
	}

	l.match.HandleCard(ctx, uid)
	l.hold()
}

func (l *ControlLoop) pollFingerprint(ctx context.Context) {
	switch status := l.finger.CaptureImage(); status {
	case model.SensorOK:
	case model.SensorNoFinger:
		return
	default:
		l.logger.Debug("fingerprint image failed", "status", status)
		return
	}

	if status := l.finger.ExtractFeatures(1); status != model.SensorOK {
		l.logger.Debug("fingerprint features failed", "status", status)
		return
	}

	res, status := l.finger.Search()
	switch status {
	case model.SensorOK:
	case model.SensorNotFound:
		res = model.SearchResult{}
	default:
		l.logger.Warn("fingerprint search failed", "status", status)
		return
	}

	l.match.HandleFingerprint(ctx, res)
	l.hold()
}

func (l *ControlLoop) hold() {
	l.clock.Sleep(l.cfg.DisplayHold)
	l.showIdle()
}

func (l *ControlLoop) showIdle() {
	l.display.ShowTwoLines("Ready", "Card or finger")
}
