package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerIntegrityJob scans the credit accounts for balances outside
// [0, credit_limit] and the sales for amount columns that no longer add
// up. Cancelled sales are exempt from the amount identity because
// cancellation freezes the paid amount.
type LedgerIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewLedgerIntegrityJob initialises the ledger scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger}
}

// Handle executes one ledger scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := j.Pool.Query(ctx, `SELECT account_id, kind, credit_limit, available_credit
FROM credit_accounts
WHERE available_credit < 0 OR available_credit > credit_limit
ORDER BY kind, account_id ASC
LIMIT $1`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	outOfBounds := 0
	for rows.Next() {
		var id int64
		var kind, limitStr, available string
		if err := rows.Scan(&id, &kind, &limitStr, &available); err != nil {
			return err
		}
		outOfBounds++
		j.Logger.Warn("credit balance out of bounds",
			slog.Int64("account_id", id),
			slog.String("kind", kind),
			slog.String("credit_limit", limitStr),
			slog.String("available_credit", available))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var brokenSales int64
	if err := j.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales
WHERE payment_status <> 'CANCELLED'
  AND (amount_pending <> total_amount - amount_paid
   OR amount_paid < 0 OR amount_paid > total_amount)`).Scan(&brokenSales); err != nil {
		return err
	}

	j.Logger.Info("ledger integrity scan complete",
		slog.Int("accounts_out_of_bounds", outOfBounds),
		slog.Int64("sales_amount_mismatch", brokenSales))
	return nil
}
