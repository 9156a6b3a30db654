// Package record fronts the transactional store of record. The pipeline
// treats a change as durable once Apply returns nil, and only then may
// cache invalidation begin.
package record

import (
	"context"
	"encoding/json"
)

type Recorder interface {
	Apply(ctx context.Context, kind string, payload json.RawMessage) error
}

// Func adapts a function to the Recorder interface; used in tests.
type Func func(ctx context.Context, kind string, payload json.RawMessage) error

func (f Func) Apply(ctx context.Context, kind string, payload json.RawMessage) error {
	return f(ctx, kind, payload)
}
