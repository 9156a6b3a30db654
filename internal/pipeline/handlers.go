package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/alerts"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/alert"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/event"
)

// Every handler follows the same shape: persist to the store of record
// first, and only once that write is durable drop the stale cache keys and
// publish the invalidation notice.

func (p *Processor) handleStockChange(ctx context.Context, ev *event.ChangeEvent) error {
	var change event.StockChange
	if err := json.Unmarshal(ev.Payload, &change); err != nil {
		return fmt.Errorf("decode stock change: %w", err)
	}

	if err := p.recorder.Apply(ctx, ev.Kind, ev.Payload); err != nil {
		return fmt.Errorf("apply stock change: %w", err)
	}

	// Entity key plus conservative hierarchical rollups.
	keys := []string{cache.StockFacilityKey(change.FacilityID), cache.MapNodesKey}
	if change.LGA != "" {
		keys = append(keys, cache.StockLGAKey(change.LGA))
	}
	if change.State != "" {
		keys = append(keys, cache.StockStateKey(change.State))
	}
	p.store.Delete(ctx, keys...)
	// Per-product subresource keys under the facility, if any were cached.
	p.store.DeleteByPattern(ctx, cache.StockFacilityKey(change.FacilityID)+":*")

	p.publisher.Publish(ctx, cache.TopicStock, cache.StockFacilityKey(change.FacilityID))

	if ev.Kind == event.KindStockout || change.Quantity <= 0 {
		subject := fmt.Sprintf("%s:%s", change.FacilityID, change.ProductID)
		detail := fmt.Sprintf("facility %s is out of stock of %s", change.FacilityID, change.ProductID)
		if p.alerts.Raise(ctx, alert.KindStockout, subject, detail) == alerts.Created {
			dedupKey := alert.DedupKey(alert.KindStockout, subject)
			p.publisher.Publish(ctx, cache.TopicAlert, cache.AlertKey(dedupKey))
		}
	}

	return nil
}

func (p *Processor) handleRequisitionChange(ctx context.Context, ev *event.ChangeEvent) error {
	var change event.RequisitionChange
	if err := json.Unmarshal(ev.Payload, &change); err != nil {
		return fmt.Errorf("decode requisition change: %w", err)
	}

	if err := p.recorder.Apply(ctx, ev.Kind, ev.Payload); err != nil {
		return fmt.Errorf("apply requisition change: %w", err)
	}

	p.store.Delete(ctx,
		cache.RequisitionKey(change.RequisitionID),
		cache.RequisitionFacilityKey(change.FacilityID),
	)

	p.publisher.Publish(ctx, cache.TopicRequisition, cache.RequisitionFacilityKey(change.FacilityID))

	return nil
}

func (p *Processor) handleFacilityChange(ctx context.Context, ev *event.ChangeEvent) error {
	var change event.FacilityChange
	if err := json.Unmarshal(ev.Payload, &change); err != nil {
		return fmt.Errorf("decode facility change: %w", err)
	}

	if err := p.recorder.Apply(ctx, ev.Kind, ev.Payload); err != nil {
		return fmt.Errorf("apply facility change: %w", err)
	}

	p.store.Delete(ctx, cache.FacilityKey(change.FacilityID), cache.MapNodesKey)

	p.publisher.Publish(ctx, cache.TopicFacility, cache.FacilityKey(change.FacilityID))

	return nil
}
