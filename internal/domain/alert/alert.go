package alert

import (
	"fmt"
	"time"
)

const (
	KindStockout = "stockout"

	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Alert is a derived domain condition, e.g. a facility running out of a
// product. Alerts live in the cache under their dedup key and age out with
// its TTL; there is no separate lifecycle.
type Alert struct {
	DedupKey   string    `json:"dedup_key"`
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	SubjectRef string    `json:"subject_ref"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Resolved   bool      `json:"resolved"`
}

// DedupKey is the deterministic identity of an alert condition. At most one
// unresolved alert per key may exist within the dedup TTL window.
func DedupKey(kind, subjectRef string) string {
	return fmt.Sprintf("%s:%s", kind, subjectRef)
}
