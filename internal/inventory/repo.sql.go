package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dist/meridian/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
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
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListStock reads the latest committed stock positions.
func (r *Repository) ListStock(ctx context.Context) ([]StockRow, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, p.name, i.current_stock, i.reserved, i.real_stock, i.min_stock, i.last_entry_at
FROM inventory_items i
JOIN products p ON p.id = i.product_id
ORDER BY p.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stock := []StockRow{}
	for rows.Next() {
		var row StockRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.CurrentStock, &row.Reserved, &row.RealStock, &row.MinStock, &row.LastEntryAt); err != nil {
			return nil, err
		}
		stock = append(stock, row)
	}
	return stock, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouse_entries (supplier_id, invoice_number, entry_date, comments, created_by, created_at, updated_by, updated_at, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		entry.SupplierID, entry.InvoiceNumber, entry.EntryDate, entry.Comments,
		entry.CreatedBy, entry.CreatedAt, entry.UpdatedBy, entry.UpdatedAt, entry.Status).Scan(&id)
	return id, err
}

func (r *txRepository) InsertEntryLine(ctx context.Context, line EntryLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO warehouse_entry_lines (entry_id, product_id, quantity, unit_cost, lot, expires_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		line.EntryID, line.ProductID, line.Quantity, line.UnitCost, nullString(line.Lot), line.ExpiresAt)
	return err
}

func (r *txRepository) GetItemsForUpdate(ctx context.Context, productIDs []int64) (map[int64]*Item, error) {
	return LockItems(ctx, r.tx, productIDs)
}

func (r *txRepository) UpdateItem(ctx context.Context, item *Item) error {
	return SaveItem(ctx, r.tx, item)
}

// LockItems locks the inventory rows for the given products in ascending
// product id order, the global lock order that keeps concurrent sale
// creations deadlock free. Shared with the sale transaction.
func LockItems(ctx context.Context, tx pgx.Tx, productIDs []int64) (map[int64]*Item, error) {
	ids := append([]int64(nil), productIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows, err := tx.Query(ctx, `SELECT product_id, current_stock, reserved, real_stock, min_stock, max_stock, last_entry_at, updated_by, updated_at
FROM inventory_items WHERE product_id = ANY($1) ORDER BY product_id ASC FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make(map[int64]*Item, len(ids))
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.CurrentStock, &item.Reserved, &item.RealStock, &item.MinStock, &item.MaxStock, &item.LastEntryAt, &item.UpdatedBy, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items[item.ProductID] = &item
	}
	return items, rows.Err()
}

// SaveItem writes one locked inventory row back. Shared with the sale
// transaction.
func SaveItem(ctx context.Context, tx pgx.Tx, item *Item) error {
	_, err := tx.Exec(ctx, `UPDATE inventory_items
SET current_stock=$2, reserved=$3, real_stock=$4, last_entry_at=$5, updated_by=$6, updated_at=$7
WHERE product_id=$1`,
		item.ProductID, item.CurrentStock, item.Reserved, item.RealStock, item.LastEntryAt, item.UpdatedBy, item.UpdatedAt)
	return err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
