package cache

import (
	"context"
	"fmt"
	"time"
)

// Pub/sub topics, one per domain area.
const (
	TopicStock       = "stock"
	TopicRequisition = "requisition"
	TopicFacility    = "facility"
	TopicAlert       = "alert"
)

// Store is a TTL-bounded key/value store with pattern deletion and a
// publish/subscribe channel. Every operation is best-effort: a Store is a
// pure optimization and never a source of truth. Implementations log
// failures instead of returning them; Get on an absent, expired or
// unreachable store reports absent. A ttl <= 0 means no expiry.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// SetNX stores value only if key is absent and reports whether it did.
	// On an unreachable store it reports false.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) bool
	Get(ctx context.Context, key string) (string, bool)
	Delete(ctx context.Context, keys ...string)
	// DeleteByPattern removes every key matching a redis-style glob,
	// e.g. "stock:facility:*".
	DeleteByPattern(ctx context.Context, pattern string)
	Publish(ctx context.Context, topic string, payload []byte)
	// Subscribe registers handler for messages on topic and returns an
	// unsubscribe func. Handlers run on the store's dispatch goroutine and
	// must not block.
	Subscribe(topic string, handler func(topic string, payload []byte)) (unsubscribe func())
}

// Key builders for the ns:entity:id[:sub] namespace convention.

func StockFacilityKey(facilityID string) string {
	return fmt.Sprintf("stock:facility:%s", facilityID)
}

func StockLGAKey(lga string) string {
	return fmt.Sprintf("stock:lga:%s", lga)
}

func StockStateKey(state string) string {
	return fmt.Sprintf("stock:state:%s", state)
}

func RequisitionKey(requisitionID string) string {
	return fmt.Sprintf("requisition:%s", requisitionID)
}

func RequisitionFacilityKey(facilityID string) string {
	return fmt.Sprintf("requisition:facility:%s", facilityID)
}

func FacilityKey(facilityID string) string {
	return fmt.Sprintf("facility:%s", facilityID)
}

func AlertKey(dedupKey string) string {
	return fmt.Sprintf("alert:%s", dedupKey)
}

func AlertLatestKey(subjectRef string) string {
	return fmt.Sprintf("alert:latest:%s", subjectRef)
}

// MapNodesKey holds the rendered map aggregate; invalidated conservatively
// whenever stock or facility data moves.
const MapNodesKey = "map:nodes"
