package application

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// Status strings published on the remote status channel.
const (
	StatusConnected      = "connected"
	StatusUnknownCommand = "unknown_cmd"
)

// eventPayload is the wire shape of a single access event.
type eventPayload struct {
	Result string `json:"result"`
	Method string `json:"method"`
	Key    string `json:"key"`
	Name   string `json:"name,omitempty"`
	TS     int64  `json:"ts"`
}

// listUser is one registry entry in a LIST reply.
type listUser struct {
	Index uint16 `json:"i"`
	Type  string `json:"type"`
	Key   string `json:"key"`
	Name  string `json:"name"`
}

// listPayload is the wire shape of a LIST reply.
type listPayload struct {
	Cmd   string     `json:"cmd"`
	Count int        `json:"count"`
	Users []listUser `json:"users"`
}

// ackPayload is the wire shape of a command acknowledgement.
type ackPayload struct {
	Cmd    string `json:"cmd"`
	Result string `json:"result"`
}

// EventSink publishes telemetry to the remote transport and appends it to the
// local audit log. Both paths are best-effort: failures are logged and
// dropped, never retried, and never returned to the caller.
type EventSink struct {
	transport driven.RemoteTransport
	audit     driven.AuditStore
	clock     Clock
	logger    *slog.Logger
}

// NewEventSink creates an EventSink. audit may be nil to disable the local log.
func NewEventSink(transport driven.RemoteTransport, audit driven.AuditStore, clock Clock, logger *slog.Logger) *EventSink {
	return &EventSink{
		transport: transport,
		audit:     audit,
		clock:     clock,
		logger:    logger,
	}
}

// Publish emits one event of the given kind. method is the credential
// modality for local decisions, or model.MethodRemote / model.MethodLocal.
func (s *EventSink) Publish(ctx context.Context, kind model.EventKind, method, key, name string) {
	event := model.Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Method: method,
		Key:    key,
		Name:   name,
		At:     s.clock.Now(),
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, event); err != nil {
			s.logger.Warn("audit record failed", "kind", kind, "error", err)
		}
	}

	s.send(eventPayload{
		Result: string(kind),
		Method: method,
		Key:    key,
		Name:   name,
		TS:     event.At.UnixMilli(),
	})
}

// PublishList emits a full registry dump in reply to a LIST command.
func (s *EventSink) PublishList(records []model.CredentialRecord) {
	users := make([]listUser, 0, len(records))
	for _, rec := range records {
		users = append(users, listUser{
			Index: rec.Slot,
			Type:  string(rec.Modality),
			Key:   rec.Key,
			Name:  rec.Name,
		})
	}

	s.send(listPayload{Cmd: string(model.CommandList), Count: len(users), Users: users})
}

// PublishClearAck emits the confirmation for a CLEAR command.
func (s *EventSink) PublishClearAck() {
	s.send(ackPayload{Cmd: string(model.CommandClear), Result: "ok"})
}

// PublishStatus emits a short status string.
func (s *EventSink) PublishStatus(status string) {
	if !s.transport.Connected() {
		s.logger.Debug("status dropped, transport offline", "status", status)
		return
	}
	if err := s.transport.PublishStatus(status); err != nil {
		s.logger.Debug("status dropped", "status", status, "error", err)
	}
}

func (s *EventSink) send(v any) {
	if !s.transport.Connected() {
		s.logger.Debug("event dropped, transport offline")
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal event payload", "error", err)
		return
	}

	if err := s.transport.PublishEvent(data); err != nil {
		s.logger.Debug("event dropped", "error", err)
	}
}
