package driven

import (
	"context"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
)

// AuditStore persists access and administration events as an append-only log.
type AuditStore interface {
	Record(ctx context.Context, event model.Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]model.Event, error)
}
