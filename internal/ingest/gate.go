package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/event"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
)

var (
	// ErrMissingSignature is returned when no signature accompanies the
	// payload. There is no optional-verification mode.
	ErrMissingSignature = errors.New("missing signature")
	ErrBadSignature     = errors.New("signature mismatch")
	ErrInvalidPayload   = errors.New("payload is not a change notification")
)

// Gate verifies the authenticity of inbound change notifications and
// enqueues them. It never touches the cache or the store of record; Accept
// returns as soon as the event is in the queue.
type Gate struct {
	secret []byte
	queue  *queue.Queue
	log    *slog.Logger
}

func NewGate(secret string, q *queue.Queue, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		secret: []byte(secret),
		queue:  q,
		log:    log,
	}
}

// Accept verifies signature (hex HMAC-SHA256 over rawPayload) and, on
// success, enqueues a ChangeEvent with a fresh id, returning the id.
func (g *Gate) Accept(rawPayload []byte, signature string) (string, error) {
	if err := g.Verify(rawPayload, signature); err != nil {
		g.reject(err)
		return "", err
	}

	var note event.Notification
	if err := json.Unmarshal(rawPayload, &note); err != nil || note.Kind == "" {
		g.reject(ErrInvalidPayload)
		return "", ErrInvalidPayload
	}

	ev := &event.ChangeEvent{
		ID:         uuid.New().String(),
		Kind:       note.Kind,
		Payload:    append(json.RawMessage(nil), rawPayload...),
		ReceivedAt: time.Now().UTC(),
	}
	g.queue.Enqueue(ev)

	metrics.NotificationsAccepted.Inc()
	g.log.Info("notification accepted", "event_id", ev.ID, "kind", ev.Kind)
	return ev.ID, nil
}

// Verify checks signature against the shared secret using a constant-time
// comparison. An absent signature is always a rejection.
func (g *Gate) Verify(rawPayload []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(rawPayload)

	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

func (g *Gate) reject(err error) {
	reason := "invalid_payload"
	switch {
	case errors.Is(err, ErrMissingSignature):
		reason = "missing_signature"
	case errors.Is(err, ErrBadSignature):
		reason = "bad_signature"
	}
	metrics.NotificationsRejected.WithLabelValues(reason).Inc()
	g.log.Warn("notification rejected", "reason", reason)
}

// Sign computes the hex HMAC-SHA256 signature for a payload. Shared with
// the simulator and tests so the signing scheme lives in one place.
func Sign(secret string, rawPayload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawPayload)
	return hex.EncodeToString(mac.Sum(nil))
}
