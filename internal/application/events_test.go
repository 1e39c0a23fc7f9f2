package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
)

func TestEventSink_PublishPayloadAndAudit(t *testing.T) {
	h := newHarness()

	h.sink.Publish(context.Background(), model.EventGranted, "rfid", "AABBCC", "Alice")

	events := h.transport.decodeEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{
		"result": "granted",
		"method": "rfid",
		"key":    "AABBCC",
		"name":   "Alice",
		"ts":     float64(h.clock.now.UnixMilli()),
	}, events[0])

	require.Len(t, h.audit.events, 1)
	got := h.audit.events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, model.EventGranted, got.Kind)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, h.clock.now, got.At)
}

func TestEventSink_OfflineDropsButStillAudits(t *testing.T) {
	h := newHarness()
	h.transport.connected = false

	h.sink.Publish(context.Background(), model.EventDenied, "rfid", "01", "")
	h.sink.PublishStatus("connected")
	h.sink.PublishClearAck()

	assert.Empty(t, h.transport.events)
	assert.Empty(t, h.transport.statuses)
	assert.Len(t, h.audit.events, 1)
}

func TestEventSink_PublishErrorIsSwallowed(t *testing.T) {
	h := newHarness()
	h.transport.publishErr = errors.New("broker gone")

	assert.NotPanics(t, func() {
		h.sink.Publish(context.Background(), model.EventDenied, "rfid", "01", "")
		h.sink.PublishStatus("connected")
	})
	assert.Len(t, h.audit.events, 1)
}

func TestEventSink_UniqueIDs(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.sink.Publish(ctx, model.EventDenied, "rfid", "01", "")
	h.sink.Publish(ctx, model.EventDenied, "rfid", "01", "")

	require.Len(t, h.audit.events, 2)
	assert.NotEqual(t, h.audit.events[0].ID, h.audit.events[1].ID)
}
