package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrSlotNotFound is returned by UpdateName when no record occupies the slot.
	ErrSlotNotFound = errors.New("credential slot not found")

	// ErrRegistryFull is returned by Append when every slot index is in use.
	ErrRegistryFull = errors.New("credential registry full")
)

// CredentialStore defines the driven port for the persistent credential
// registry. The registry is append-only: records are never deleted one by
// one, only all at once through ClearAll.
type CredentialStore interface {
	// Count returns the persisted record count.
	Count(ctx context.Context) (uint16, error)

	// Append writes a new record at slot Count() and then advances the count.
	// It returns the assigned slot.
	Append(ctx context.Context, modality model.Modality, key, name string) (uint16, error)

	// UpdateName renames the record at slot. Returns ErrSlotNotFound if the
	// slot is beyond the current count.
	UpdateName(ctx context.Context, slot uint16, name string) error

	// FindByKey returns the name of the lowest-slot record matching modality
	// and key. found is false when no record matches.
	FindByKey(ctx context.Context, modality model.Modality, key string) (name string, found bool, err error)

	// List returns every record in slot order.
	List(ctx context.Context) ([]model.CredentialRecord, error)

	// ClearAll discards every record and resets the record count to 0 and the
	// next fingerprint template id to model.InitialTemplateID. Idempotent.
	ClearAll(ctx context.Context) error

	// NextTemplateID returns the persisted fingerprint slot counter.
	NextTemplateID(ctx context.Context) (uint16, error)

	// SetNextTemplateID persists the fingerprint slot counter.
	SetNextTemplateID(ctx context.Context, id uint16) error
}
