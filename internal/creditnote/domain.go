// Package creditnote is the post-sale return approval chain: a requested
// note passes collections, then the warehouse confirms the physical return
// and the note settles against the sale.
package creditnote

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/shared"
)

// ApprovalStatus is the stage of a credit note request.
type ApprovalStatus string

const (
	// AwaitingCollections is the initial stage of every request.
	AwaitingCollections ApprovalStatus = "AWAITING_COLLECTIONS"
	// ApprovedByCollections means collections signed off the amount.
	ApprovedByCollections ApprovalStatus = "APPROVED_BY_COLLECTIONS"
	// Settled means the warehouse confirmed the physical return.
	Settled ApprovalStatus = "SETTLED"
)

// Request is a credit note against one sale. Total is derived from the
// lines at request time and never recomputed afterwards.
type Request struct {
	ID                  int64
	SaleID              int64
	Total               decimal.Decimal
	ApprovalStatus      ApprovalStatus
	RequestComments     *string
	CollectionsComments *string
	WarehouseComments   *string
	Lines               []Line

	shared.RowMeta
}

// Line is one returned product on a credit note.
type Line struct {
	ID        int64
	RequestID int64
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}
