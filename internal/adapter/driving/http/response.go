package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/gatekeeper/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Records   int    `json:"records"`
	Transport string `json:"transport"`
}

// CredentialResponse is the JSON representation of one registry record.
type CredentialResponse struct {
	Slot     uint16 `json:"slot"`
	Modality string `json:"modality"`
	Key      string `json:"key"`
	Name     string `json:"name"`
}

// EventResponse is the JSON representation of one audit log entry.
type EventResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Method string `json:"method"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	At     string `json:"at"`
}

// CommandRequest is the JSON body for the command endpoint.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse confirms that a command ran on the control loop.
type CommandResponse struct {
	Command  string `json:"command"`
	Accepted bool   `json:"accepted"`
}

// toCredentialResponse converts a domain CredentialRecord to its JSON representation.
func toCredentialResponse(rec model.CredentialRecord) CredentialResponse {
	return CredentialResponse{
		Slot:     rec.Slot,
		Modality: string(rec.Modality),
		Key:      rec.Key,
		Name:     rec.Name,
	}
}

// toEventResponse converts a domain Event to its JSON representation.
func toEventResponse(e model.Event) EventResponse {
	return EventResponse{
		ID:     e.ID,
		Kind:   string(e.Kind),
		Method: e.Method,
		Key:    e.Key,
		Name:   e.Name,
		At:     e.At.UTC().Format(time.RFC3339Nano),
	}
}
