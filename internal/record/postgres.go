package record

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/event"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/postgres"
)

// Postgres applies change notifications to the relational store of record.
// Each Apply runs in its own transaction.
type Postgres struct {
	tx           postgres.Transactor
	stocks       *postgres.StockRepository
	requisitions *postgres.RequisitionRepository
	facilities   *postgres.FacilityRepository
}

func NewPostgres(
	tx postgres.Transactor,
	stocks *postgres.StockRepository,
	requisitions *postgres.RequisitionRepository,
	facilities *postgres.FacilityRepository,
) *Postgres {
	return &Postgres{
		tx:           tx,
		stocks:       stocks,
		requisitions: requisitions,
		facilities:   facilities,
	}
}

func (p *Postgres) Apply(ctx context.Context, kind string, payload json.RawMessage) error {
	switch kind {
	case event.KindStockUpdate, event.KindStockout:
		var change event.StockChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return fmt.Errorf("decode stock change: %w", err)
		}
		return p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return p.stocks.UpsertLevel(ctx, change.FacilityID, change.ProductID, change.Quantity)
		})

	case event.KindRequisitionUpdate:
		var change event.RequisitionChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return fmt.Errorf("decode requisition change: %w", err)
		}
		return p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return p.requisitions.UpsertStatus(ctx, change.RequisitionID, change.FacilityID, change.Status)
		})

	case event.KindFacilityUpdate:
		var change event.FacilityChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return fmt.Errorf("decode facility change: %w", err)
		}
		return p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return p.facilities.Upsert(ctx, change.FacilityID, change.Name, change.LGA, change.State)
		})
	}

	return fmt.Errorf("no recorder for kind %q", kind)
}
