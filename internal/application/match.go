package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

// MatchEngine turns a single credential presentation into a grant/deny
// decision, actuates the lock on a grant and reports every decision.
type MatchEngine struct {
	store   driven.CredentialStore
	lock    *LockActuator
	sink    *EventSink
	display driven.Display
	logger  *slog.Logger
}

// NewMatchEngine creates a MatchEngine.
func NewMatchEngine(
	store driven.CredentialStore,
	lock *LockActuator,
	sink *EventSink,
	display driven.Display,
	logger *slog.Logger,
) *MatchEngine {
	return &MatchEngine{
		store:   store,
		lock:    lock,
		sink:    sink,
		display: display,
		logger:  logger,
	}
}

// HandleCard decides on a card presentation given its raw identifier bytes.
func (m *MatchEngine) HandleCard(ctx context.Context, uid []byte) model.Decision {
	return m.decide(ctx, model.ModalityRFID, model.CardKey(uid))
}

// HandleFingerprint decides on a fingerprint search result. A search the
// sensor itself reported as unmatched is denied with an empty key.
func (m *MatchEngine) HandleFingerprint(ctx context.Context, res model.SearchResult) model.Decision {
	if !res.Matched {
		return m.report(ctx, model.Denied(model.ModalityFingerprint, ""))
	}
	return m.decide(ctx, model.ModalityFingerprint, model.FingerprintKey(res.ID))
}

func (m *MatchEngine) decide(ctx context.Context, modality model.Modality, key string) model.Decision {
	name, found, err := m.store.FindByKey(ctx, modality, key)
	if err != nil {
		// Fail closed: a registry that cannot be read grants nothing.
		m.logger.Error("credential lookup failed", "modality", modality, "key", key, "error", err)
		found = false
	}

	if !found {
		return m.report(ctx, model.Denied(modality, key))
	}
	return m.report(ctx, model.Granted(modality, key, name))
}

func (m *MatchEngine) report(ctx context.Context, d model.Decision) model.Decision {
	if d.Granted {
		m.logger.Info("access granted", "modality", d.Modality, "key", d.Key, "name", d.Name)
		m.display.ShowTwoLines("Access granted", d.Name)
		m.lock.Unlock()
		m.sink.Publish(ctx, model.EventGranted, string(d.Modality), d.Key, d.Name)
		return d
	}

	m.logger.Info("access denied", "modality", d.Modality, "key", d.Key)
	m.display.ShowTwoLines("Access denied", d.Key)
	m.sink.Publish(ctx, model.EventDenied, string(d.Modality), d.Key, "")
	return d
}
