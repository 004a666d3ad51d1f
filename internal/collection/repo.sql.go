package collection

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/platform/db"
	"github.com/meridian-dist/meridian/internal/sales"
)

// Repository persists payment data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("collection repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListBySale reads the payment trail of one sale, oldest first.
func (r *Repository) ListBySale(ctx context.Context, saleID int64) ([]Payment, error) {
	if r == nil {
		return nil, errors.New("collection repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, reference, sale_id, amount, method, third_party_supplier_id, paid_at, created_by, created_at
FROM payments WHERE sale_id = $1 ORDER BY paid_at ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Reference, &p.SaleID, &p.Amount, &p.Method, &p.ThirdPartySupplierID, &p.PaidAt, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const receivableSelect = `SELECT s.id, s.client_id, c.business_name, u.full_name, d.full_name,
s.sale_status, s.payment_status, s.total_amount, s.amount_paid, s.amount_pending, s.sale_date
FROM sales s
JOIN clients c ON c.id = s.client_id
JOIN users u ON u.id = s.seller_id
LEFT JOIN users d ON d.id = s.delivery_user_id`

// ListReceivables lists sales in a date window from the collections point
// of view, optionally narrowed by client, seller, sale status and a fixed
// set of payment statuses.
func (r *Repository) ListReceivables(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error) {
	if r == nil {
		return nil, errors.New("collection repository not initialised")
	}
	var sb strings.Builder
	sb.WriteString(receivableSelect)
	sb.WriteString(` WHERE s.sale_date >= $1 AND s.sale_date < $2`)
	args := []any{filter.StartDate, filter.EndDate}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		sb.WriteString(` AND s.client_id = $` + strconv.Itoa(len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		sb.WriteString(` AND s.seller_id = $` + strconv.Itoa(len(args)))
	}
	if filter.SaleStatus != nil {
		args = append(args, *filter.SaleStatus)
		sb.WriteString(` AND s.sale_status = $` + strconv.Itoa(len(args)))
	}
	if len(filter.PaymentStatuses) > 0 {
		marks := make([]string, 0, len(filter.PaymentStatuses))
		for _, ps := range filter.PaymentStatuses {
			args = append(args, ps)
			marks = append(marks, "$"+strconv.Itoa(len(args)))
		}
		sb.WriteString(` AND s.payment_status IN (` + strings.Join(marks, ",") + `)`)
	}
	sb.WriteString(` ORDER BY s.sale_date DESC`)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []sales.Summary{}
	for rows.Next() {
		var s sales.Summary
		if err := rows.Scan(&s.SaleID, &s.ClientID, &s.BusinessName, &s.SellerName, &s.DeliveryName,
			&s.SaleStatus, &s.PaymentStatus, &s.TotalAmount, &s.AmountPaid, &s.AmountPending, &s.SaleDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SummaryByMethod aggregates collected amounts per payment method inside a
// date window, end exclusive.
func (r *Repository) SummaryByMethod(ctx context.Context, start, end time.Time) ([]MethodTotal, error) {
	if r == nil {
		return nil, errors.New("collection repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT method, COUNT(*), COALESCE(SUM(amount), 0)
FROM payments WHERE paid_at >= $1 AND paid_at < $2
GROUP BY method ORDER BY method ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := []MethodTotal{}
	for rows.Next() {
		var t MethodTotal
		if err := rows.Scan(&t.Method, &t.Count, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments
(reference, sale_id, amount, method, third_party_supplier_id, paid_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		payment.Reference, payment.SaleID, payment.Amount, payment.Method,
		payment.ThirdPartySupplierID, payment.PaidAt, payment.CreatedBy, payment.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (*sales.Sale, error) {
	return sales.LockSale(ctx, r.tx, saleID)
}

func (r *txRepository) UpdateSale(ctx context.Context, sale *sales.Sale) error {
	return sales.SaveSale(ctx, r.tx, sale)
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error) {
	return credit.LockAccount(ctx, r.tx, kind, id)
}

func (r *txRepository) UpdateAccount(ctx context.Context, account *credit.Account) error {
	return credit.SaveAccount(ctx, r.tx, account)
}

func (r *txRepository) GetSupplierBalanceForUpdate(ctx context.Context, supplierID int64) (*SupplierBalance, error) {
	var b SupplierBalance
	err := r.tx.QueryRow(ctx, `SELECT supplier_id, third_party_balance, updated_by, updated_at
FROM supplier_balances WHERE supplier_id = $1 FOR UPDATE`, supplierID).
		Scan(&b.SupplierID, &b.ThirdPartyBalance, &b.UpdatedBy, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *txRepository) UpdateSupplierBalance(ctx context.Context, balance *SupplierBalance) error {
	_, err := r.tx.Exec(ctx, `UPDATE supplier_balances
SET third_party_balance=$2, updated_by=$3, updated_at=$4
WHERE supplier_id=$1`,
		balance.SupplierID, balance.ThirdPartyBalance, balance.UpdatedBy, balance.UpdatedAt)
	return err
}
