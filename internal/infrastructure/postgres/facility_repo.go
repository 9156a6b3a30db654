package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FacilityRepository struct {
	pool *pgxpool.Pool
}

func NewFacilityRepository(pool *pgxpool.Pool) *FacilityRepository {
	return &FacilityRepository{pool: pool}
}

func (r *FacilityRepository) Upsert(ctx context.Context, facilityID, name, lga, state string) error {
	const sql = `
		INSERT INTO facilities (id, name, lga, state, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			name = COALESCE(EXCLUDED.name, facilities.name),
			lga = COALESCE(EXCLUDED.lga, facilities.lga),
			state = COALESCE(EXCLUDED.state, facilities.state),
			updated_at = NOW()
	`

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	if _, err := executor.Exec(ctx, sql,
		facilityID, nullIfEmpty(name), nullIfEmpty(lga), nullIfEmpty(state)); err != nil {
		return fmt.Errorf("upsert facility: %w", err)
	}

	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
