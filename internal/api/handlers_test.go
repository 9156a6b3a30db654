package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/api"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
)

const secret = "test-secret"

func newServer(t *testing.T) (http.Handler, *queue.Queue) {
	t.Helper()
	q := queue.New()
	gate := ingest.NewGate(secret, q, nil)
	ws := func(w http.ResponseWriter, r *http.Request) {} // not under test
	return api.NewRouter(api.NewHandlers(gate), ws), q
}

func post(t *testing.T, h http.Handler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set(api.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIngestAcceptedNotification(t *testing.T) {
	h, q := newServer(t)
	body := `{"kind":"stock.update","facilityId":"fac-1","productId":"opv","quantity":9}`

	rec := post(t, h, body, ingest.Sign(secret, []byte(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want 202", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp["status"] != "queued" || resp["event_id"] == "" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if q.Len() != 1 {
		t.Fatal("acceptance must mean the event is enqueued")
	}
}

func TestIngestMissingSignature(t *testing.T) {
	h, q := newServer(t)

	rec := post(t, h, `{"kind":"stock.update"}`, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
	if q.Len() != 0 {
		t.Fatal("rejected request must not enqueue")
	}
}

func TestIngestBadSignature(t *testing.T) {
	h, q := newServer(t)
	body := `{"kind":"stock.update"}`

	rec := post(t, h, body, ingest.Sign("other-secret", []byte(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
	if q.Len() != 0 {
		t.Fatal("rejected request must not enqueue")
	}
}

func TestIngestMalformedBody(t *testing.T) {
	h, _ := newServer(t)
	body := `this is not a notification`

	rec := post(t, h, body, ingest.Sign(secret, []byte(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}
