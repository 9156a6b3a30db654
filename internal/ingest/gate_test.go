package ingest_test

import (
	"errors"
	"testing"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
)

const secret = "test-secret"

func newGate(t *testing.T) (*ingest.Gate, *queue.Queue) {
	t.Helper()
	q := queue.New()
	return ingest.NewGate(secret, q, nil), q
}

func TestAcceptValidSignature(t *testing.T) {
	gate, q := newGate(t)
	body := []byte(`{"kind":"stock.update","facilityId":"fac-1","productId":"opv","quantity":5}`)

	id, err := gate.Accept(body, ingest.Sign(secret, body))
	if err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if id == "" {
		t.Fatal("accepted notification must get an event id")
	}
	if q.Len() != 1 {
		t.Fatalf("expected exactly one enqueued event, got %d", q.Len())
	}

	ev := q.Snapshot()[0]
	if ev.Kind != "stock.update" {
		t.Fatalf("wrong kind: %s", ev.Kind)
	}
	if string(ev.Payload) != string(body) {
		t.Fatal("payload must ride along unmodified")
	}
	if ev.Attempts != 0 {
		t.Fatalf("fresh event must have zero attempts, got %d", ev.Attempts)
	}
}

func TestAcceptAssignsUniqueIDs(t *testing.T) {
	gate, q := newGate(t)
	body := []byte(`{"kind":"stock.update","facilityId":"fac-1"}`)
	sig := ingest.Sign(secret, body)

	id1, err1 := gate.Accept(body, sig)
	id2, err2 := gate.Accept(body, sig)
	if err1 != nil || err2 != nil {
		t.Fatalf("accepts failed: %v %v", err1, err2)
	}
	if id1 == id2 {
		t.Fatal("every accepted notification must get a fresh id")
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", q.Len())
	}
}

func TestRejectMissingSignature(t *testing.T) {
	gate, q := newGate(t)

	_, err := gate.Accept([]byte(`{"kind":"stock.update"}`), "")
	if !errors.Is(err, ingest.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if q.Len() != 0 {
		t.Fatal("rejected notification must not be enqueued")
	}
}

func TestRejectBadSignature(t *testing.T) {
	gate, q := newGate(t)
	body := []byte(`{"kind":"stock.update"}`)

	cases := []string{
		"deadbeef",
		ingest.Sign("wrong-secret", body),
		"not-hex!!",
	}
	for _, sig := range cases {
		if _, err := gate.Accept(body, sig); !errors.Is(err, ingest.ErrBadSignature) {
			t.Fatalf("signature %q: expected ErrBadSignature, got %v", sig, err)
		}
	}
	if q.Len() != 0 {
		t.Fatal("rejected notifications must not be enqueued")
	}
}

func TestRejectNonNotificationPayload(t *testing.T) {
	gate, q := newGate(t)

	for _, body := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"facilityId":"fac-1"}`), // no kind
	} {
		if _, err := gate.Accept(body, ingest.Sign(secret, body)); !errors.Is(err, ingest.ErrInvalidPayload) {
			t.Fatalf("body %q: expected ErrInvalidPayload, got %v", body, err)
		}
	}
	if q.Len() != 0 {
		t.Fatal("malformed notifications must not be enqueued")
	}
}

func TestVerifyIsConstantTimeAPI(t *testing.T) {
	// Verify is exposed separately for the kafka bridge; a tampered byte
	// anywhere in the payload must invalidate the signature.
	gate, _ := newGate(t)
	body := []byte(`{"kind":"stock.update","quantity":1}`)
	sig := ingest.Sign(secret, body)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = '9'

	if err := gate.Verify(body, sig); err != nil {
		t.Fatalf("genuine payload must verify: %v", err)
	}
	if err := gate.Verify(tampered, sig); !errors.Is(err, ingest.ErrBadSignature) {
		t.Fatalf("tampered payload must fail verification, got %v", err)
	}
}
