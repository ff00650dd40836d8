package handler

import (
	"encoding/json"
	"net/http"

	"github.com/notify-gateway/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HistoryEnvelope wraps paginated notification history responses.
type HistoryEnvelope struct {
	Data       []domain.NotificationRecord `json:"data"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

// MaintenanceEnvelope reports the outcome of an internal maintenance action.
type MaintenanceEnvelope struct {
	Action     string `json:"action"`
	Affected   int    `json:"affected"`
	Successful int    `json:"successful,omitempty"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

// VerifiedEnvelope reports ledger state for (email, purpose).
type VerifiedEnvelope struct {
	Email    string `json:"email"`
	Purpose  string `json:"purpose"`
	Verified bool   `json:"verified"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
