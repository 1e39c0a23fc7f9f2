package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// Terminal enrollment errors. Each ends only the current enrollment.
var (
	ErrCardTimeout   = errors.New("no card presented")
	ErrImageTimeout  = errors.New("no finger presented")
	ErrNameTimeout   = errors.New("no name entered")
	ErrCaptureFailed = errors.New("fingerprint capture failed")
	ErrModelFailed   = errors.New("fingerprint captures do not match")
	ErrNoSlot        = errors.New("no free fingerprint template slot")
	ErrStorageFault  = errors.New("fingerprint template storage fault")
	ErrCommFault     = errors.New("fingerprint sensor communication fault")
	ErrSensorOffline = errors.New("fingerprint sensor not responding")
)

// EnrollmentState names a step of an enrollment workflow.
type EnrollmentState string

const (
	StateWaitCard    EnrollmentState = "WAIT_CARD"
	StateWaitImage1  EnrollmentState = "WAIT_IMAGE_1"
	StateWaitRemoval EnrollmentState = "WAIT_REMOVAL"
	StateWaitImage2  EnrollmentState = "WAIT_IMAGE_2"
	StateWaitName    EnrollmentState = "WAIT_NAME"
	StateDone        EnrollmentState = "DONE"
)

// EnrollmentConfig holds the enrollment timeouts and retry bounds.
type EnrollmentConfig struct {
	CardTimeout       time.Duration
	CardNameTimeout   time.Duration
	ImageTimeout      time.Duration
	RemovalPause      time.Duration
	FingerNameTimeout time.Duration
	MaxSlotAttempts   int
	// Tick is how long the scheduler sleeps between workflow ticks.
	Tick time.Duration
}

// DefaultEnrollmentConfig returns the standard enrollment timing.
func DefaultEnrollmentConfig() EnrollmentConfig {
	return EnrollmentConfig{
		CardTimeout:       20 * time.Second,
		CardNameTimeout:   30 * time.Second,
		ImageTimeout:      20 * time.Second,
		RemovalPause:      1200 * time.Millisecond,
		FingerNameTimeout: 10 * time.Second,
		MaxSlotAttempts:   200,
		Tick:              50 * time.Millisecond,
	}
}

// EnrollmentResult describes a committed registry record. Named is false when
// the record kept its auto-generated name.
type EnrollmentResult struct {
	Modality model.Modality
	Slot     uint16
	Key      string
	Name     string
	Named    bool
}

// EnrollmentController runs the card and fingerprint enrollment workflows.
// A workflow owns the control loop for its whole duration: Enroll* calls do
// not return until the workflow succeeds, times out or hits a sensor fault.
type EnrollmentController struct {
	store   driven.CredentialStore
	card    driven.CardReader
	finger  driven.FingerprintSensor
	display driven.Display
	names   driven.LineSource
	sink    *EventSink
	clock   Clock
	cfg     EnrollmentConfig
	logger  *slog.Logger
}

// NewEnrollmentController creates an EnrollmentController.
func NewEnrollmentController(
	store driven.CredentialStore,
	card driven.CardReader,
	finger driven.FingerprintSensor,
	display driven.Display,
	names driven.LineSource,
	sink *EventSink,
	clock Clock,
	cfg EnrollmentConfig,
	logger *slog.Logger,
) *EnrollmentController {
	return &EnrollmentController{
		store:   store,
		card:    card,
		finger:  finger,
		display: display,
		names:   names,
		sink:    sink,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// workflow is a tick-driven enrollment state machine.
type workflow interface {
	Tick(ctx context.Context, elapsed time.Duration) bool
	Outcome() (EnrollmentResult, error)
}

// EnrollCard runs card enrollment to completion.
func (c *EnrollmentController) EnrollCard(ctx context.Context) (EnrollmentResult, error) {
	c.logger.Info("card enrollment started")
	res, err := c.run(ctx, c.BeginCard())
	c.finish(ctx, model.ModalityRFID, res, err)
	return res, err
}

// EnrollFingerprint runs fingerprint enrollment to completion.
func (c *EnrollmentController) EnrollFingerprint(ctx context.Context) (EnrollmentResult, error) {
	c.logger.Info("fingerprint enrollment started")
	if !c.finger.VerifyLink() {
		c.finish(ctx, model.ModalityFingerprint, EnrollmentResult{}, ErrSensorOffline)
		return EnrollmentResult{}, ErrSensorOffline
	}
	res, err := c.run(ctx, c.BeginFingerprint())
	c.finish(ctx, model.ModalityFingerprint, res, err)
	return res, err
}

// run advances wf until it finishes, sleeping cfg.Tick between ticks and
// passing the measured elapsed time to each tick.
func (c *EnrollmentController) run(ctx context.Context, wf workflow) (EnrollmentResult, error) {
	last := c.clock.Now()
	done := wf.Tick(ctx, 0)
	for !done {
		c.clock.Sleep(c.cfg.Tick)
		now := c.clock.Now()
		elapsed := now.Sub(last)
		last = now
		done = wf.Tick(ctx, elapsed)
	}
	return wf.Outcome()
}

func (c *EnrollmentController) finish(ctx context.Context, modality model.Modality, res EnrollmentResult, err error) {
	if err != nil {
		c.logger.Warn("enrollment aborted", "modality", modality, "error", err)
		c.display.ShowTwoLines("Enroll failed", failureLine(err))
		return
	}

	c.logger.Info("credential enrolled",
		"modality", res.Modality,
		"slot", res.Slot,
		"key", res.Key,
		"name", res.Name,
		"named", res.Named,
	)
	c.display.ShowTwoLines("Enrolled", res.Name)
	c.sink.Publish(ctx, model.EventEnrolled, string(res.Modality), res.Key, res.Name)
}

// AllocateTemplateSlot stores the sensor's current model at the first free
// template id, starting from the persisted counter. Occupied ids, and ids
// already registered to a fingerprint record, are skipped; each skip counts
// as one of MaxSlotAttempts. On success the counter moves past the stored id.
func (c *EnrollmentController) AllocateTemplateSlot(ctx context.Context) (uint16, error) {
	id, err := c.store.NextTemplateID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate template slot: %w", err)
	}
	if id == 0 {
		id = model.InitialTemplateID
	}

	for attempt := 1; attempt <= c.cfg.MaxSlotAttempts; attempt++ {
		_, held, err := c.store.FindByKey(ctx, model.ModalityFingerprint, model.FingerprintKey(id))
		if err != nil {
			return 0, fmt.Errorf("allocate template slot: %w", err)
		}

		if !held {
			switch status := c.finger.StoreModel(id); status {
			case model.SensorOK:
				if err := c.store.SetNextTemplateID(ctx, id+1); err != nil {
					// The template is already on the sensor; keep going so it
					// still gets a registry record.
					c.logger.Error("persist next template id failed", "stored_id", id, "error", err)
				}
				c.logger.Debug("template stored", "id", id, "attempts", attempt)
				return id, nil
			case model.SensorOccupied:
				// next candidate
			case model.SensorCommFault:
				return 0, fmt.Errorf("store template %d: %w", id, ErrCommFault)
			default:
				return 0, fmt.Errorf("store template %d (%s): %w", id, status, ErrStorageFault)
			}
		}

		id++
		if id == 0 {
			id = model.InitialTemplateID
		}
	}

	return 0, ErrNoSlot
}

func (c *EnrollmentController) pollName() (string, bool) {
	line, ok := c.names.PollLine()
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(line)
	return name, name != ""
}

func (c *EnrollmentController) pollImage() (model.SensorStatus, bool) {
	status := c.finger.CaptureImage()
	return status, status != model.SensorNoFinger
}

func (c *EnrollmentController) pollCard() ([]byte, bool) {
	if !c.card.PollPresent() {
		return nil, false
	}
	uid, err := c.card.ReadIdentifier()
	if err != nil || len(uid) == 0 {
		c.logger.Debug("card read failed, waiting", "error", err)
		return nil, false
	}
	return uid, true
}

// captureError maps a capture or feature-extraction status to an error.
func captureError(status model.SensorStatus) error {
	switch status {
	case model.SensorOK:
		return nil
	case model.SensorCommFault:
		return ErrCommFault
	default:
		return fmt.Errorf("%w: %s", ErrCaptureFailed, status)
	}
}

// failureLine returns a display-width reason for err.
func failureLine(err error) string {
	switch {
	case errors.Is(err, ErrCardTimeout), errors.Is(err, ErrImageTimeout):
		return "Timeout"
	case errors.Is(err, ErrNameTimeout):
		return "Name timeout"
	case errors.Is(err, ErrNoSlot):
		return "No free slot"
	case errors.Is(err, ErrStorageFault):
		return "Storage fault"
	case errors.Is(err, ErrCommFault):
		return "Sensor comm err"
	case errors.Is(err, ErrSensorOffline):
		return "Sensor offline"
	case errors.Is(err, ErrCaptureFailed):
		return "Capture failed"
	case errors.Is(err, ErrModelFailed):
		return "Prints differ"
	default:
		return "Error"
	}
}

// CardEnrollment is the card workflow: WAIT_CARD then WAIT_NAME, committing
// only once a name arrives.
type CardEnrollment struct {
	c        *EnrollmentController
	state    EnrollmentState
	cardWait *Wait[[]byte]
	nameWait *Wait[string]
	result   EnrollmentResult
	err      error
}

// BeginCard starts a card workflow without running it.
func (c *EnrollmentController) BeginCard() *CardEnrollment {
	c.display.ShowTwoLines("Enroll card", "Present card")
	return &CardEnrollment{
		c:        c,
		state:    StateWaitCard,
		cardWait: NewWait(c.cfg.CardTimeout, c.pollCard),
		result:   EnrollmentResult{Modality: model.ModalityRFID},
	}
}

// State returns the current workflow step.
func (e *CardEnrollment) State() EnrollmentState { return e.state }

// Outcome returns the committed record or the terminal error.
func (e *CardEnrollment) Outcome() (EnrollmentResult, error) { return e.result, e.err }

// Tick advances the workflow and reports whether it has finished.
func (e *CardEnrollment) Tick(ctx context.Context, elapsed time.Duration) bool {
	switch e.state {
	case StateWaitCard:
		step := e.cardWait.Tick(elapsed)
		switch step.Status {
		case StepTimeout:
			return e.fail(ErrCardTimeout)
		case StepSuccess:
			e.c.card.Halt()
			e.result.Key = model.CardKey(step.Value)
			e.c.logger.Info("card captured", "key", e.result.Key)
			e.c.display.ShowTwoLines("Card "+e.result.Key, "Enter name")
			e.nameWait = NewWait(e.c.cfg.CardNameTimeout, e.c.pollName)
			e.state = StateWaitName
		}
		return false

	case StateWaitName:
		step := e.nameWait.Tick(elapsed)
		switch step.Status {
		case StepTimeout:
			return e.fail(ErrNameTimeout)
		case StepSuccess:
			slot, err := e.c.store.Append(ctx, model.ModalityRFID, e.result.Key, step.Value)
			if err != nil {
				return e.fail(fmt.Errorf("commit card %s: %w", e.result.Key, err))
			}
			e.result.Slot = slot
			e.result.Name = step.Value
			e.result.Named = true
			e.state = StateDone
			return true
		}
		return false
	}

	return true
}

func (e *CardEnrollment) fail(err error) bool {
	e.err = err
	e.state = StateDone
	return true
}

// FingerprintEnrollment is the fingerprint workflow. The template is stored
// on the sensor and a placeholder record appended before the operator is
// asked for a name, so a stored template always has a registry entry.
type FingerprintEnrollment struct {
	c           *EnrollmentController
	state       EnrollmentState
	imageWait   *Wait[model.SensorStatus]
	removal     *Pause
	nameWait    *Wait[string]
	placeholder string
	result      EnrollmentResult
	err         error
}

// BeginFingerprint starts a fingerprint workflow without running it.
func (c *EnrollmentController) BeginFingerprint() *FingerprintEnrollment {
	c.display.ShowTwoLines("Enroll finger", "Place finger")
	return &FingerprintEnrollment{
		c:         c,
		state:     StateWaitImage1,
		imageWait: NewWait(c.cfg.ImageTimeout, c.pollImage),
		result:    EnrollmentResult{Modality: model.ModalityFingerprint},
	}
}

// State returns the current workflow step.
func (e *FingerprintEnrollment) State() EnrollmentState { return e.state }

// Outcome returns the committed record or the terminal error.
func (e *FingerprintEnrollment) Outcome() (EnrollmentResult, error) { return e.result, e.err }

// Tick advances the workflow and reports whether it has finished.
func (e *FingerprintEnrollment) Tick(ctx context.Context, elapsed time.Duration) bool {
	switch e.state {
	case StateWaitImage1:
		step := e.imageWait.Tick(elapsed)
		switch step.Status {
		case StepTimeout:
			return e.fail(ErrImageTimeout)
		case StepSuccess:
			if err := e.capture(step.Value, 1); err != nil {
				return e.fail(err)
			}
			e.c.display.ShowTwoLines("Remove finger", "")
			e.removal = NewPause(e.c.cfg.RemovalPause)
			e.state = StateWaitRemoval
		}
		return false

	case StateWaitRemoval:
		if e.removal.Tick(elapsed) {
			e.c.display.ShowTwoLines("Same finger", "again")
			e.imageWait = NewWait(e.c.cfg.ImageTimeout, e.c.pollImage)
			e.state = StateWaitImage2
		}
		return false

	case StateWaitImage2:
		step := e.imageWait.Tick(elapsed)
		switch step.Status {
		case StepTimeout:
			return e.fail(ErrImageTimeout)
		case StepSuccess:
			if err := e.capture(step.Value, 2); err != nil {
				return e.fail(err)
			}
			return e.commitPlaceholder(ctx)
		}
		return false

	case StateWaitName:
		step := e.nameWait.Tick(elapsed)
		switch step.Status {
		case StepTimeout:
			e.c.logger.Info("name entry timed out, keeping default", "slot", e.result.Slot, "name", e.placeholder)
			e.rename(ctx, e.placeholder, false)
			return true
		case StepSuccess:
			e.rename(ctx, step.Value, true)
			return true
		}
		return false
	}

	return true
}

func (e *FingerprintEnrollment) capture(imageStatus model.SensorStatus, slot int) error {
	if err := captureError(imageStatus); err != nil {
		return fmt.Errorf("image %d: %w", slot, err)
	}
	if err := captureError(e.c.finger.ExtractFeatures(slot)); err != nil {
		return fmt.Errorf("features %d: %w", slot, err)
	}
	return nil
}

// commitPlaceholder builds the model, stores it on the sensor and appends a
// record under the default name, then moves on to naming.
func (e *FingerprintEnrollment) commitPlaceholder(ctx context.Context) bool {
	switch status := e.c.finger.BuildModel(); status {
	case model.SensorOK:
	case model.SensorCommFault:
		return e.fail(fmt.Errorf("build model: %w", ErrCommFault))
	default:
		return e.fail(fmt.Errorf("build model (%s): %w", status, ErrModelFailed))
	}

	id, err := e.c.AllocateTemplateSlot(ctx)
	if err != nil {
		return e.fail(err)
	}

	key := model.FingerprintKey(id)
	e.placeholder = model.DefaultName(model.ModalityFingerprint, id)
	slot, err := e.c.store.Append(ctx, model.ModalityFingerprint, key, e.placeholder)
	if err != nil {
		e.c.logger.Error("template stored without registry record", "template_id", id, "error", err)
		return e.fail(fmt.Errorf("commit fingerprint %d: %w", id, err))
	}

	e.result.Slot = slot
	e.result.Key = key
	e.result.Name = e.placeholder
	e.c.display.ShowTwoLines("Stored ID "+key, "Enter name")
	e.nameWait = NewWait(e.c.cfg.FingerNameTimeout, e.c.pollName)
	e.state = StateWaitName
	return false
}

func (e *FingerprintEnrollment) rename(ctx context.Context, name string, named bool) {
	e.state = StateDone
	if err := e.c.store.UpdateName(ctx, e.result.Slot, name); err != nil {
		// The placeholder record stays; the template is never rolled back.
		e.c.logger.Error("rename fingerprint record failed", "slot", e.result.Slot, "error", err)
		return
	}
	e.result.Name = name
	e.result.Named = named
}

func (e *FingerprintEnrollment) fail(err error) bool {
	e.err = err
	e.state = StateDone
	return true
}
