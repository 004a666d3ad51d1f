package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/shared"
)

// Item is the per-product stock bookkeeping row. RealStock is always
// recomputed from the other two columns, never trusted as stored.
type Item struct {
	ProductID    int64
	CurrentStock int64
	Reserved     int64
	RealStock    int64
	MinStock     *int64
	MaxStock     *int64
	LastEntryAt  *time.Time

	shared.RowMeta
}

// Recompute derives the quantity available for new reservations.
func (it *Item) Recompute() {
	it.RealStock = it.CurrentStock - it.Reserved
}

// Reserve earmarks qty for an unfulfilled sale without touching on-hand
// stock. Fails when real stock cannot cover the request.
func (it *Item) Reserve(qty int64) error {
	if it.RealStock < qty {
		return shared.E(shared.KindInsufficientResource,
			"insufficient stock for product %d", it.ProductID)
	}
	it.Reserved += qty
	it.Recompute()
	return nil
}

// CommitPick physically removes a reserved quantity from stock. Packaging
// consumes the reservation made at sale time.
func (it *Item) CommitPick(qty int64) {
	it.CurrentStock -= qty
	it.Reserved -= qty
	it.Recompute()
}

// ReleaseReservation drops an earmark whose sale will never ship.
func (it *Item) ReleaseReservation(qty int64) {
	it.Reserved -= qty
	it.Recompute()
}

// Restock returns goods to on-hand stock (confirmed returns, credit notes,
// warehouse entries).
func (it *Item) Restock(qty int64) {
	it.CurrentStock += qty
	it.Recompute()
}

// Entry is an inbound warehouse receipt header.
type Entry struct {
	ID            int64
	SupplierID    int64
	InvoiceNumber string
	EntryDate     time.Time
	Comments      string
	Lines         []EntryLine

	shared.RowMeta
}

// EntryLine is one received product with its cost and traceability data.
type EntryLine struct {
	ID        int64
	EntryID   int64
	ProductID int64
	Quantity  int64
	UnitCost  decimal.Decimal
	Lot       string
	ExpiresAt *time.Time
}

// EntryInput describes a warehouse entry request.
type EntryInput struct {
	SupplierID    int64            `json:"supplier_id" validate:"required,gt=0"`
	InvoiceNumber string           `json:"invoice_number" validate:"required"`
	Comments      string           `json:"comments"`
	Lines         []EntryLineInput `json:"lines" validate:"required,min=1,dive"`
}

// EntryLineInput is one requested receipt line.
type EntryLineInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Lot       string          `json:"lot"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// StockRow is the stock listing projection.
type StockRow struct {
	ProductID    int64
	ProductName  string
	CurrentStock int64
	Reserved     int64
	RealStock    int64
	MinStock     *int64
	LastEntryAt  *time.Time
}
