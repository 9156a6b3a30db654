package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StockRepository struct {
	pool *pgxpool.Pool
}

func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

func (r *StockRepository) UpsertLevel(ctx context.Context, facilityID, productID string, quantity int) error {
	const sql = `
		INSERT INTO stock_levels (facility_id, product_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (facility_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	if _, err := executor.Exec(ctx, sql, facilityID, productID, quantity); err != nil {
		return fmt.Errorf("upsert stock level: %w", err)
	}

	return nil
}

func (r *StockRepository) GetLevel(ctx context.Context, facilityID, productID string) (int, error) {
	const sql = `
		SELECT quantity FROM stock_levels
		WHERE facility_id = $1 AND product_id = $2
	`

	var quantity int
	if err := r.pool.QueryRow(ctx, sql, facilityID, productID).Scan(&quantity); err != nil {
		return 0, fmt.Errorf("get stock level: %w", err)
	}

	return quantity, nil
}
