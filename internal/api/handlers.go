package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

const maxNotificationBytes = 1 << 20

type Handlers struct {
	gate *ingest.Gate
}

func NewHandlers(gate *ingest.Gate) *Handlers {
	return &Handlers{gate: gate}
}

// IngestNotification accepts an upstream change notification. It responds
// 202 once the event is enqueued; processing happens later, on the tick.
func (h *Handlers) IngestNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		http.Error(w, "unreadable request body", http.StatusBadRequest)
		return
	}

	eventID, err := h.gate.Accept(body, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrMissingSignature), errors.Is(err, ingest.ErrBadSignature):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, ingest.ErrInvalidPayload):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "queued",
		"event_id": eventID,
	})
}
