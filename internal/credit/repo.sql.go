package credit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads credit accounts outside of sale transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get reads one account without locking it.
func (r *Repository) Get(ctx context.Context, kind AccountKind, id int64) (*Account, error) {
	if r == nil {
		return nil, errors.New("credit repository not initialised")
	}
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT account_id, kind, credit_limit, available_credit, updated_by, updated_at
FROM credit_accounts WHERE account_id = $1 AND kind = $2`, id, kind).
		Scan(&a.ID, &a.Kind, &a.CreditLimit, &a.AvailableCredit, &a.UpdatedBy, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List reads every account of one kind, for the periodic ledger scan.
func (r *Repository) List(ctx context.Context, kind AccountKind) ([]Account, error) {
	if r == nil {
		return nil, errors.New("credit repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT account_id, kind, credit_limit, available_credit, updated_by, updated_at
FROM credit_accounts WHERE kind = $1 ORDER BY account_id ASC`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := []Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Kind, &a.CreditLimit, &a.AvailableCredit, &a.UpdatedBy, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// LockAccount locks one credit account row for update. Shared with the
// sale, payment and credit note transactions.
func LockAccount(ctx context.Context, tx pgx.Tx, kind AccountKind, id int64) (*Account, error) {
	var a Account
	err := tx.QueryRow(ctx, `SELECT account_id, kind, credit_limit, available_credit, updated_by, updated_at
FROM credit_accounts WHERE account_id = $1 AND kind = $2 FOR UPDATE`, id, kind).
		Scan(&a.ID, &a.Kind, &a.CreditLimit, &a.AvailableCredit, &a.UpdatedBy, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount writes one locked account row back.
func SaveAccount(ctx context.Context, tx pgx.Tx, account *Account) error {
	_, err := tx.Exec(ctx, `UPDATE credit_accounts
SET available_credit=$3, updated_by=$4, updated_at=$5
WHERE account_id=$1 AND kind=$2`,
		account.ID, account.Kind, account.AvailableCredit, account.UpdatedBy, account.UpdatedAt)
	return err
}
