package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// CommandRouter executes remote commands against the same registry and lock
// the local paths use, then publishes the reply.
type CommandRouter struct {
	store   driven.CredentialStore
	lock    *LockActuator
	sink    *EventSink
	display driven.Display
	logger  *slog.Logger
}

// NewCommandRouter creates a CommandRouter.
func NewCommandRouter(
	store driven.CredentialStore,
	lock *LockActuator,
	sink *EventSink,
	display driven.Display,
	logger *slog.Logger,
) *CommandRouter {
	return &CommandRouter{
		store:   store,
		lock:    lock,
		sink:    sink,
		display: display,
		logger:  logger,
	}
}

// Handle parses and executes one raw command payload. Unrecognized payloads
// produce an unknown_cmd status and return model.CommandUnknown with no
// error and no state change.
func (r *CommandRouter) Handle(ctx context.Context, raw string) (model.Command, error) {
	cmd := model.ParseCommand(raw)
	r.logger.Info("remote command", "command", cmd, "raw", raw)

	switch cmd {
	case model.CommandOpen:
		r.display.ShowTwoLines("Remote open", "")
		r.lock.Unlock()
		r.sink.Publish(ctx, model.EventRemoteOpen, model.MethodRemote, "", "")
		return cmd, nil

	case model.CommandList:
		records, err := r.store.List(ctx)
		if err != nil {
			return cmd, fmt.Errorf("list credentials: %w", err)
		}
		r.sink.PublishList(records)
		return cmd, nil

	case model.CommandClear:
		if err := r.store.ClearAll(ctx); err != nil {
			return cmd, fmt.Errorf("clear credentials: %w", err)
		}
		r.display.ShowTwoLines("Registry cleared", "")
		r.sink.PublishClearAck()
		r.sink.Publish(ctx, model.EventCleared, model.MethodRemote, "", "")
		return cmd, nil

	default:
		r.sink.PublishStatus(StatusUnknownCommand)
		return model.CommandUnknown, nil
	}
}
