package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequisitionRepository struct {
	pool *pgxpool.Pool
}

func NewRequisitionRepository(pool *pgxpool.Pool) *RequisitionRepository {
	return &RequisitionRepository{pool: pool}
}

func (r *RequisitionRepository) UpsertStatus(ctx context.Context, requisitionID, facilityID, status string) error {
	const sql = `
		INSERT INTO requisitions (id, facility_id, status, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
	`

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	if _, err := executor.Exec(ctx, sql, requisitionID, facilityID, status); err != nil {
		return fmt.Errorf("upsert requisition: %w", err)
	}

	return nil
}
