package application_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gatekeeper/internal/application"
	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// --- Fake implementations ---

// fakeClock only moves when Sleep is called.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// memStore is an in-memory CredentialStore with the same first-match and
// counter semantics as the SQLite repository.
type memStore struct {
	records   []model.CredentialRecord
	next      uint16
	appendErr error
	findErr   error
}

var _ driven.CredentialStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{next: model.InitialTemplateID}
}

func (s *memStore) Count(_ context.Context) (uint16, error) {
	return uint16(len(s.records)), nil
}

func (s *memStore) Append(_ context.Context, m model.Modality, key, name string) (uint16, error) {
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	slot := uint16(len(s.records))
	s.records = append(s.records, model.CredentialRecord{Slot: slot, Modality: m, Key: key, Name: name})
	return slot, nil
}

func (s *memStore) UpdateName(_ context.Context, slot uint16, name string) error {
	if int(slot) >= len(s.records) {
		return driven.ErrSlotNotFound
	}
	s.records[slot].Name = name
	return nil
}

func (s *memStore) FindByKey(_ context.Context, m model.Modality, key string) (string, bool, error) {
	if s.findErr != nil {
		return "", false, s.findErr
	}
	for _, rec := range s.records {
		if rec.Modality == m && rec.Key == key {
			return rec.Name, true, nil
		}
	}
	return "", false, nil
}

func (s *memStore) List(_ context.Context) ([]model.CredentialRecord, error) {
	out := make([]model.CredentialRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *memStore) ClearAll(_ context.Context) error {
	s.records = nil
	s.next = model.InitialTemplateID
	return nil
}

func (s *memStore) NextTemplateID(_ context.Context) (uint16, error) { return s.next, nil }

func (s *memStore) SetNextTemplateID(_ context.Context, id uint16) error {
	s.next = id
	return nil
}

type fakeServo struct {
	positions []int
}

func (s *fakeServo) SetPosition(angle int) { s.positions = append(s.positions, angle) }

type fakeDisplay struct {
	screens [][2]string
}

func (d *fakeDisplay) ShowTwoLines(line1, line2 string) {
	d.screens = append(d.screens, [2]string{line1, line2})
}

// fakeLines yields queued lines one per poll. A nil entry means "nothing this
// poll", which lets tests place input at a given tick.
type fakeLines struct {
	queue []*string
}

func (l *fakeLines) push(lines ...string) {
	for _, line := range lines {
		l.queue = append(l.queue, &line)
	}
}

func (l *fakeLines) idle(n int) {
	for range n {
		l.queue = append(l.queue, nil)
	}
}

func (l *fakeLines) PollLine() (string, bool) {
	if len(l.queue) == 0 {
		return "", false
	}
	next := l.queue[0]
	l.queue = l.queue[1:]
	if next == nil {
		return "", false
	}
	return *next, true
}

type fakeCard struct {
	uids  [][]byte
	halts int
}

func (c *fakeCard) PollPresent() bool { return len(c.uids) > 0 }

func (c *fakeCard) ReadIdentifier() ([]byte, error) {
	uid := c.uids[0]
	c.uids = c.uids[1:]
	return uid, nil
}

func (c *fakeCard) Halt() { c.halts++ }

// fakeSensor scripts fingerprint module responses.
type fakeSensor struct {
	link         bool
	captures     []model.SensorStatus // consumed per CaptureImage; empty means no finger
	features     map[int]model.SensorStatus
	build        model.SensorStatus
	occupied     map[uint16]bool
	storeStatus  map[uint16]model.SensorStatus
	storeCalls   []uint16
	stored       []uint16
	searchResult model.SearchResult
	searchStatus model.SensorStatus
	erases       int
}

func newFakeSensor() *fakeSensor {
	return &fakeSensor{
		link:        true,
		features:    map[int]model.SensorStatus{},
		occupied:    map[uint16]bool{},
		storeStatus: map[uint16]model.SensorStatus{},
	}
}

func (s *fakeSensor) VerifyLink() bool { return s.link }

func (s *fakeSensor) CaptureImage() model.SensorStatus {
	if len(s.captures) == 0 {
		return model.SensorNoFinger
	}
	st := s.captures[0]
	s.captures = s.captures[1:]
	return st
}

func (s *fakeSensor) ExtractFeatures(slot int) model.SensorStatus {
	if st, ok := s.features[slot]; ok {
		return st
	}
	return model.SensorOK
}

func (s *fakeSensor) BuildModel() model.SensorStatus { return s.build }

func (s *fakeSensor) StoreModel(id uint16) model.SensorStatus {
	s.storeCalls = append(s.storeCalls, id)
	if st, ok := s.storeStatus[id]; ok {
		return st
	}
	if s.occupied[id] {
		return model.SensorOccupied
	}
	s.occupied[id] = true
	s.stored = append(s.stored, id)
	return model.SensorOK
}

func (s *fakeSensor) Search() (model.SearchResult, model.SensorStatus) {
	return s.searchResult, s.searchStatus
}

func (s *fakeSensor) EraseDatabase() model.SensorStatus {
	s.erases++
	s.occupied = map[uint16]bool{}
	return model.SensorOK
}

type fakeTransport struct {
	connected  bool
	inbound    []string
	events     [][]byte
	statuses   []string
	ensures    int
	publishErr error
}

func (t *fakeTransport) EnsureConnected(_ context.Context) error {
	t.ensures++
	return nil
}

func (t *fakeTransport) Connected() bool { return t.connected }

func (t *fakeTransport) Receive() (string, bool) {
	if len(t.inbound) == 0 {
		return "", false
	}
	raw := t.inbound[0]
	t.inbound = t.inbound[1:]
	return raw, true
}

func (t *fakeTransport) PublishEvent(payload []byte) error {
	if t.publishErr != nil {
		return t.publishErr
	}
	t.events = append(t.events, payload)
	return nil
}

func (t *fakeTransport) PublishStatus(status string) error {
	if t.publishErr != nil {
		return t.publishErr
	}
	t.statuses = append(t.statuses, status)
	return nil
}

// decodeEvents unmarshals every published payload into a generic map.
func (t *fakeTransport) decodeEvents(tb testing.TB) []map[string]any {
	tb.Helper()
	out := make([]map[string]any, 0, len(t.events))
	for _, raw := range t.events {
		var m map[string]any
		require.NoError(tb, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

type fakeAudit struct {
	events   []model.Event
	onRecord func()
}

func (a *fakeAudit) Record(_ context.Context, e model.Event) error {
	a.events = append(a.events, e)
	if a.onRecord != nil {
		a.onRecord()
	}
	return nil
}

func (a *fakeAudit) Recent(_ context.Context, limit int) ([]model.Event, error) {
	if limit > len(a.events) {
		limit = len(a.events)
	}
	return a.events[:limit], nil
}

func (a *fakeAudit) kinds() []model.EventKind {
	out := make([]model.EventKind, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Kind)
	}
	return out
}

// --- Harness ---

// harness wires every application component over fakes.
type harness struct {
	clock     *fakeClock
	store     *memStore
	servo     *fakeServo
	display   *fakeDisplay
	lines     *fakeLines
	card      *fakeCard
	sensor    *fakeSensor
	transport *fakeTransport
	audit     *fakeAudit
	console   *bytes.Buffer

	lock   *application.LockActuator
	sink   *application.EventSink
	match  *application.MatchEngine
	enroll *application.EnrollmentController
	router *application.CommandRouter
	cons   *application.Console
	loop   *application.ControlLoop
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness() *harness {
	h := &harness{
		clock:     newFakeClock(),
		store:     newMemStore(),
		servo:     &fakeServo{},
		display:   &fakeDisplay{},
		lines:     &fakeLines{},
		card:      &fakeCard{},
		sensor:    newFakeSensor(),
		transport: &fakeTransport{connected: true},
		audit:     &fakeAudit{},
		console:   &bytes.Buffer{},
	}
	logger := discardLogger()

	h.lock = application.NewLockActuator(h.servo, h.clock, application.DefaultLockConfig(), logger)
	h.sink = application.NewEventSink(h.transport, h.audit, h.clock, logger)
	h.match = application.NewMatchEngine(h.store, h.lock, h.sink, h.display, logger)
	h.enroll = application.NewEnrollmentController(
		h.store, h.card, h.sensor, h.display, h.lines, h.sink, h.clock,
		application.DefaultEnrollmentConfig(), logger,
	)
	h.router = application.NewCommandRouter(h.store, h.lock, h.sink, h.display, logger)
	h.cons = application.NewConsole(h.enroll, h.store, h.sensor, h.sink, h.console, logger)
	h.loop = application.NewControlLoop(
		h.transport, h.router, h.cons, h.lines, h.card, h.sensor, h.match,
		h.lock, h.sink, h.display, h.clock, application.DefaultLoopConfig(), logger,
	)
	return h
}

// lockPulses counts open positions written to the servo.
func (h *harness) lockPulses() int {
	n := 0
	for _, p := range h.servo.positions {
		if p == application.DefaultLockConfig().OpenAngle {
			n++
		}
	}
	return n
}
