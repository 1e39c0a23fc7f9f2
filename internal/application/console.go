package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

const consoleHelp = `commands:
  r       enroll a card
  f       enroll a fingerprint
  list    list registered credentials
  clear   erase every registry record
  delmod  erase the fingerprint sensor template database
  help    show this help
`

// Console executes operator line commands from the local console.
type Console struct {
	enroll *EnrollmentController
	store  driven.CredentialStore
	finger driven.FingerprintSensor
	sink   *EventSink
	out    io.Writer
	logger *slog.Logger
}

// NewConsole creates a Console writing its replies to out.
func NewConsole(
	enroll *EnrollmentController,
	store driven.CredentialStore,
	finger driven.FingerprintSensor,
	sink *EventSink,
	out io.Writer,
	logger *slog.Logger,
) *Console {
	return &Console{
		enroll: enroll,
		store:  store,
		finger: finger,
		sink:   sink,
		out:    out,
		logger: logger,
	}
}

// Execute runs one console line. Blank lines are ignored.
func (c *Console) Execute(ctx context.Context, line string) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	if cmd == "" {
		return
	}
	c.logger.Debug("console command", "command", cmd)

	switch cmd {
	case "r":
		res, err := c.enroll.EnrollCard(ctx)
		c.reportEnrollment(res, err)

	case "f":
		res, err := c.enroll.EnrollFingerprint(ctx)
		c.reportEnrollment(res, err)

	case "list":
		c.list(ctx)

	case "clear":
		if err := c.store.ClearAll(ctx); err != nil {
			c.logger.Error("console clear failed", "error", err)
			c.printf("clear failed: %v\n", err)
			return
		}
		c.sink.Publish(ctx, model.EventCleared, model.MethodLocal, "", "")
		c.printf("registry cleared\n")

	case "delmod":
		if status := c.finger.EraseDatabase(); status != model.SensorOK {
			c.logger.Warn("sensor erase failed", "status", status)
			c.printf("sensor erase failed: %s\n", status)
			return
		}
		c.printf("sensor template database erased\n")

	case "help":
		c.printf("%s", consoleHelp)

	default:
		c.printf("unknown command %q, type help\n", cmd)
	}
}

func (c *Console) list(ctx context.Context) {
	records, err := c.store.List(ctx)
	if err != nil {
		c.logger.Error("console list failed", "error", err)
		c.printf("list failed: %v\n", err)
		return
	}

	c.printf("%d record(s)\n", len(records))
	for _, rec := range records {
		c.printf("  %3d  %-11s  %-16s  %s\n", rec.Slot, rec.Modality, rec.Key, rec.Name)
	}
}

func (c *Console) reportEnrollment(res EnrollmentResult, err error) {
	if err != nil {
		c.printf("enrollment failed: %v\n", err)
		return
	}
	c.printf("enrolled %s slot %d key %s as %q\n", res.Modality, res.Slot, res.Key, res.Name)
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
