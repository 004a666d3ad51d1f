package sales

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/inventory"
	"github.com/meridian-dist/meridian/internal/platform/db"
)

// Repository persists sale data in PostgreSQL.
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
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const summarySelect = `SELECT s.id, s.client_id, c.business_name, u.full_name, d.full_name,
s.sale_status, s.payment_status, s.total_amount, s.amount_paid, s.amount_pending, s.sale_date
FROM sales s
JOIN clients c ON c.id = s.client_id
JOIN users u ON u.id = s.seller_id
LEFT JOIN users d ON d.id = s.delivery_user_id`

// ListByStatus lists sales in one lifecycle stage, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Summary, error) {
	return r.listSummaries(ctx, summarySelect+` WHERE s.sale_status = $1 ORDER BY s.sale_date ASC`, status)
}

// ListByDeliveryUser lists the delivery user's sales in one stage dated
// on or after since.
func (r *Repository) ListByDeliveryUser(ctx context.Context, deliveryUserID int64, status Status, since time.Time) ([]Summary, error) {
	return r.listSummaries(ctx,
		summarySelect+` WHERE s.delivery_user_id = $1 AND s.sale_status = $2 AND s.sale_date >= $3 ORDER BY s.sale_date ASC`,
		deliveryUserID, status, since)
}

// ListBySeller lists a seller's sales in a date window with optional
// status filters.
func (r *Repository) ListBySeller(ctx context.Context, sellerID int64, filter ListBySellerFilter) ([]Summary, error) {
	var sb strings.Builder
	sb.WriteString(summarySelect)
	sb.WriteString(` WHERE s.seller_id = $1 AND s.sale_date >= $2 AND s.sale_date < $3`)
	args := []any{sellerID, filter.StartDate, filter.EndDate}
	if filter.SaleStatus != nil {
		args = append(args, *filter.SaleStatus)
		sb.WriteString(` AND s.sale_status = $` + strconv.Itoa(len(args)))
	}
	if filter.PaymentStatus != nil {
		args = append(args, *filter.PaymentStatus)
		sb.WriteString(` AND s.payment_status = $` + strconv.Itoa(len(args)))
	}
	sb.WriteString(` ORDER BY s.sale_date DESC`)
	return r.listSummaries(ctx, sb.String(), args...)
}

func (r *Repository) listSummaries(ctx context.Context, query string, args ...any) ([]Summary, error) {
	if r == nil {
		return nil, errors.New("sales repository not initialised")
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sales := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.SaleID, &s.ClientID, &s.BusinessName, &s.SellerName, &s.DeliveryName,
			&s.SaleStatus, &s.PaymentStatus, &s.TotalAmount, &s.AmountPaid, &s.AmountPending, &s.SaleDate); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// Details reads the line detail of one sale.
func (r *Repository) Details(ctx context.Context, saleID int64) ([]LineDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.sale_id, l.product_id, p.name, l.quantity, l.unit_price, l.subtotal, l.lot, l.expires_at, l.created_at
FROM sale_lines l
JOIN products p ON p.id = l.product_id
WHERE l.sale_id = $1
ORDER BY l.id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := []LineDetail{}
	for rows.Next() {
		var d LineDetail
		if err := rows.Scan(&d.SaleID, &d.ProductID, &d.ProductName, &d.Quantity, &d.UnitPrice, &d.Subtotal, &d.Lot, &d.ExpiresAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Movements reads the comment trail of one sale.
func (r *Repository) Movements(ctx context.Context, saleID int64) (*Movements, error) {
	var mv Movements
	err := r.pool.QueryRow(ctx, `SELECT id, comments, comments_delivery, updated_at FROM sales WHERE id = $1`, saleID).
		Scan(&mv.SaleID, &mv.Comments, &mv.CommentsDelivery, &mv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mv, nil
}

// CancelComments reads the cancellation comment trail of one sale.
func (r *Repository) CancelComments(ctx context.Context, saleID int64) ([]CancelComment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, comments, created_by, created_at
FROM sale_cancel_comments WHERE sale_id = $1 ORDER BY created_at ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := []CancelComment{}
	for rows.Next() {
		var c CancelComment
		if err := rows.Scan(&c.ID, &c.SaleID, &c.Comments, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales
(client_id, seller_id, sale_date, total_amount, amount_paid, amount_pending, sale_status, payment_status, created_by, created_at, updated_by, updated_at, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		sale.ClientID, sale.SellerID, sale.SaleDate, sale.TotalAmount, sale.AmountPaid, sale.AmountPending,
		sale.SaleStatus, sale.PaymentStatus,
		sale.CreatedBy, sale.CreatedAt, sale.UpdatedBy, sale.UpdatedAt, sale.Status).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sale_lines
(sale_id, product_id, quantity, unit_price, subtotal, lot, expires_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		line.SaleID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal,
		line.Lot, line.ExpiresAt, line.CreatedBy, line.CreatedAt)
	return err
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (*Sale, error) {
	return LockSale(ctx, r.tx, saleID)
}

// LockSale locks one sale row for update. Shared with the payment and
// credit note transactions.
func LockSale(ctx context.Context, tx pgx.Tx, saleID int64) (*Sale, error) {
	var s Sale
	err := tx.QueryRow(ctx, `SELECT id, client_id, seller_id, delivery_user_id, sale_date,
total_amount, amount_paid, amount_pending, sale_status, payment_status, comments, comments_delivery,
created_by, created_at, updated_by, updated_at, status
FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(
		&s.ID, &s.ClientID, &s.SellerID, &s.DeliveryUserID, &s.SaleDate,
		&s.TotalAmount, &s.AmountPaid, &s.AmountPending, &s.SaleStatus, &s.PaymentStatus,
		&s.Comments, &s.CommentsDelivery,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedBy, &s.UpdatedAt, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *txRepository) GetLines(ctx context.Context, saleID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price, subtotal, lot, expires_at, created_by, created_at
FROM sale_lines WHERE sale_id = $1 ORDER BY product_id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.Lot, &l.ExpiresAt, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) UpdateSale(ctx context.Context, sale *Sale) error {
	return SaveSale(ctx, r.tx, sale)
}

// SaveSale writes one locked sale row back.
func SaveSale(ctx context.Context, tx pgx.Tx, sale *Sale) error {
	_, err := tx.Exec(ctx, `UPDATE sales
SET delivery_user_id=$2, total_amount=$3, amount_paid=$4, amount_pending=$5, sale_status=$6, payment_status=$7,
comments=$8, comments_delivery=$9, updated_by=$10, updated_at=$11
WHERE id=$1`,
		sale.ID, sale.DeliveryUserID, sale.TotalAmount, sale.AmountPaid, sale.AmountPending,
		sale.SaleStatus, sale.PaymentStatus, sale.Comments, sale.CommentsDelivery,
		sale.UpdatedBy, sale.UpdatedAt)
	return err
}

func (r *txRepository) InsertCancelComment(ctx context.Context, comment CancelComment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sale_cancel_comments (sale_id, comments, created_by, created_at)
VALUES ($1,$2,$3,$4)`,
		comment.SaleID, comment.Comments, comment.CreatedBy, comment.CreatedAt)
	return err
}

func (r *txRepository) GetItemsForUpdate(ctx context.Context, productIDs []int64) (map[int64]*inventory.Item, error) {
	return inventory.LockItems(ctx, r.tx, productIDs)
}

func (r *txRepository) UpdateItem(ctx context.Context, item *inventory.Item) error {
	return inventory.SaveItem(ctx, r.tx, item)
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error) {
	return credit.LockAccount(ctx, r.tx, kind, id)
}

func (r *txRepository) UpdateAccount(ctx context.Context, account *credit.Account) error {
	return credit.SaveAccount(ctx, r.tx, account)
}
