// Package httphandler is the HTTP driving adapter serving the JSON admin API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/application"
	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
	"github.com/ericfisherdev/gatekeeper/internal/domain/port/driven"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// CommandSubmitter runs a raw remote command on the control loop and waits
// for it to finish.
type CommandSubmitter interface {
	Submit(ctx context.Context, raw string) (model.Command, error)
}

// LinkStatus reports whether the remote transport is up.
type LinkStatus interface {
	Connected() bool
}

// Handler is the HTTP driving adapter that serves the admin API. Reads go
// straight to the stores; commands are submitted to the control loop so that
// every registry write and lock pulse happens on its goroutine.
type Handler struct {
	store         driven.CredentialStore
	audit         driven.AuditStore
	loop          CommandSubmitter
	link          LinkStatus
	submitTimeout time.Duration
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. submitTimeout
// bounds how long a command request waits for the loop, which may be busy
// with an enrollment.
func NewHandler(
	store driven.CredentialStore,
	audit driven.AuditStore,
	loop CommandSubmitter,
	link LinkStatus,
	submitTimeout time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:         store,
		audit:         audit,
		loop:          loop,
		link:          link,
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("POST /api/v1/commands", h.SubmitCommand)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports liveness, the registry size and the transport state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Time:      time.Now().UTC().Format(time.RFC3339),
		Transport: "offline",
	}
	if h.link.Connected() {
		resp.Transport = "connected"
	}

	count, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("health: count credentials", "error", err)
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Records = int(count)

	writeJSON(w, http.StatusOK, resp)
}

// ListCredentials returns every visible registry record in slot order.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]CredentialResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toCredentialResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListEvents returns the most recent audit events, newest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "limit", limit, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubmitCommand runs OPEN, LIST or CLEAR on the control loop. LIST and CLEAR
// replies are published on the remote transport exactly as for a broker
// command; use GET /api/v1/credentials to read the registry over HTTP.
func (h *Handler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if model.ParseCommand(req.Command) == model.CommandUnknown {
		writeError(w, http.StatusBadRequest, "unknown command: expected OPEN, LIST or CLEAR")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.submitTimeout)
	defer cancel()

	cmd, err := h.loop.Submit(ctx, req.Command)
	if err != nil {
		if errors.Is(err, application.ErrLoopBusy) {
			h.logger.Warn("command not accepted", "request_id", requestID(r.Context()), "command", req.Command, "error", err)
			writeError(w, http.StatusServiceUnavailable, "control loop busy")
			return
		}
		h.logger.Error("command failed", "request_id", requestID(r.Context()), "command", req.Command, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("command executed", "request_id", requestID(r.Context()), "command", string(cmd))
	writeJSON(w, http.StatusOK, CommandResponse{Command: string(cmd), Accepted: true})
}
