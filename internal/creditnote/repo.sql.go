package creditnote

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/inventory"
	"github.com/meridian-dist/meridian/internal/platform/db"
	"github.com/meridian-dist/meridian/internal/sales"
)

// Repository persists credit note data in PostgreSQL.
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
		return errors.New("creditnote repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const requestSelect = `SELECT id, sale_id, total, approval_status, request_comments, collections_comments, warehouse_comments,
created_by, created_at, updated_by, updated_at, status
FROM credit_notes`

// ListByStatus lists notes in one approval stage, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status ApprovalStatus) ([]Request, error) {
	if r == nil {
		return nil, errors.New("creditnote repository not initialised")
	}
	rows, err := r.pool.Query(ctx, requestSelect+` WHERE approval_status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notes := []Request{}
	for rows.Next() {
		note, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

// Get reads one note with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (*Request, error) {
	if r == nil {
		return nil, errors.New("creditnote repository not initialised")
	}
	note, err := scanRequest(r.pool.QueryRow(ctx, requestSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	note.Lines = lines
	return note, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var n Request
	err := row.Scan(&n.ID, &n.SaleID, &n.Total, &n.ApprovalStatus,
		&n.RequestComments, &n.CollectionsComments, &n.WarehouseComments,
		&n.CreatedBy, &n.CreatedAt, &n.UpdatedBy, &n.UpdatedAt, &n.Status)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, requestID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, request_id, product_id, quantity, unit_price, created_at
FROM credit_note_lines WHERE request_id = $1 ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.RequestID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertRequest(ctx context.Context, request Request) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO credit_notes
(sale_id, total, approval_status, request_comments, created_by, created_at, updated_by, updated_at, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		request.SaleID, request.Total, request.ApprovalStatus, request.RequestComments,
		request.CreatedBy, request.CreatedAt, request.UpdatedBy, request.UpdatedAt, request.Status).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO credit_note_lines (request_id, product_id, quantity, unit_price, created_at)
VALUES ($1,$2,$3,$4,$5)`,
		line.RequestID, line.ProductID, line.Quantity, line.UnitPrice, line.CreatedAt)
	return err
}

func (r *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (*Request, error) {
	note, err := scanRequest(r.tx.QueryRow(ctx, requestSelect+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return note, err
}

func (r *txRepository) GetRequestLines(ctx context.Context, id int64) ([]Line, error) {
	return queryLines(ctx, r.tx, id)
}

func (r *txRepository) UpdateRequest(ctx context.Context, request *Request) error {
	_, err := r.tx.Exec(ctx, `UPDATE credit_notes
SET approval_status=$2, collections_comments=$3, warehouse_comments=$4, updated_by=$5, updated_at=$6
WHERE id=$1`,
		request.ID, request.ApprovalStatus, request.CollectionsComments, request.WarehouseComments,
		request.UpdatedBy, request.UpdatedAt)
	return err
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (*sales.Sale, error) {
	return sales.LockSale(ctx, r.tx, saleID)
}

func (r *txRepository) UpdateSale(ctx context.Context, sale *sales.Sale) error {
	return sales.SaveSale(ctx, r.tx, sale)
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
