package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockIntegrityJob scans the inventory ledger for rows whose stored real
// stock no longer equals currentStock - reserved, and for products that
// fell below their minimum. Transactions maintain the identity; the scan
// exists to surface drift caused by out-of-band writes.
type StockIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewStockIntegrityJob initialises the stock scan handler.
func NewStockIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *StockIntegrityJob {
	return &StockIntegrityJob{Pool: pool, Logger: logger}
}

// Handle executes one stock scan.
func (j *StockIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock integrity: handler not configured")
	}
	var payload StockIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	query := `SELECT product_id, current_stock, reserved, real_stock
FROM inventory_items
WHERE real_stock <> current_stock - reserved
ORDER BY product_id ASC`
	args := []any{}
	if payload.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, payload.Limit)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	drifted := 0
	for rows.Next() {
		var productID, current, reserved, real int64
		if err := rows.Scan(&productID, &current, &reserved, &real); err != nil {
			return err
		}
		drifted++
		j.Logger.Warn("stock identity drift",
			slog.Int64("product_id", productID),
			slog.Int64("current_stock", current),
			slog.Int64("reserved", reserved),
			slog.Int64("real_stock", real))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var belowMin int64
	if err := j.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items
WHERE min_stock IS NOT NULL AND real_stock < min_stock`).Scan(&belowMin); err != nil {
		return err
	}

	j.Logger.Info("stock integrity scan complete",
		slog.Int("drifted_rows", drifted),
		slog.Int64("below_min_stock", belowMin))
	return nil
}
