package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/shared"
)

// Status is the lifecycle stage of a sale order. It determines which
// inventory and credit side effects each transition applies.
type Status string

const (
	// StatusProcessing is the initial state: lines reserved, nothing picked.
	StatusProcessing Status = "PROCESSING"
	// StatusPackaged means the pick is physically committed.
	StatusPackaged Status = "PACKAGED"
	// StatusAssignedForDelivery means a delivery user holds the package.
	StatusAssignedForDelivery Status = "ASSIGNED_FOR_DELIVERY"
	// StatusDelivered is the happy-path terminal state.
	StatusDelivered Status = "DELIVERED"
	// StatusCancelledPendingReturn defers reversal until goods come back.
	StatusCancelledPendingReturn Status = "CANCELLED_PENDING_RETURN"
	// StatusReturnConfirmed is the terminal state of a confirmed return.
	StatusReturnConfirmed Status = "RETURN_CONFIRMED"
	// StatusCancelledByOmission reverses immediately, conditional on the
	// source state.
	StatusCancelledByOmission Status = "CANCELLED_BY_OMISSION"
	// StatusCreditNotePending marks a requested credit note.
	StatusCreditNotePending Status = "CREDIT_NOTE_PENDING"
	// StatusCreditNoteApproved marks collections approval.
	StatusCreditNoteApproved Status = "CREDIT_NOTE_APPROVED_COLLECTIONS"
	// StatusCreditNoteSettled is the terminal credit-note state.
	StatusCreditNoteSettled Status = "CREDIT_NOTE_SETTLED"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusReturnConfirmed, StatusCancelledByOmission, StatusCreditNoteSettled:
		return true
	}
	return false
}

// transitionSources is the canonical state table: for each target, the
// set of statuses a sale may come from.
var transitionSources = map[Status][]Status{
	StatusPackaged:            {StatusProcessing},
	StatusAssignedForDelivery: {StatusPackaged, StatusAssignedForDelivery},
	StatusDelivered:           {StatusAssignedForDelivery},
	StatusCancelledPendingReturn: {
		StatusProcessing, StatusPackaged, StatusAssignedForDelivery,
		StatusCancelledPendingReturn, StatusCreditNotePending, StatusCreditNoteApproved,
	},
	StatusReturnConfirmed:     {StatusCancelledPendingReturn},
	StatusCancelledByOmission: {StatusProcessing, StatusPackaged},
	StatusCreditNotePending: {
		StatusProcessing, StatusPackaged, StatusAssignedForDelivery, StatusDelivered,
	},
	StatusCreditNoteApproved: {StatusCreditNotePending},
	StatusCreditNoteSettled:  {StatusCreditNoteApproved},
}

// CanTransition reports whether from is an allowed source for to.
func CanTransition(from, to Status) bool {
	for _, src := range transitionSources[to] {
		if src == from {
			return true
		}
	}
	return false
}

// PaymentStatus tracks how much of a sale has been collected.
type PaymentStatus string

const (
	// PaymentUnpaid means nothing collected yet.
	PaymentUnpaid PaymentStatus = "UNPAID"
	// PaymentPartial means some but not all collected.
	PaymentPartial PaymentStatus = "PARTIALLY_PAID"
	// PaymentPaid means fully collected.
	PaymentPaid PaymentStatus = "PAID"
	// PaymentCancelled marks a sale whose collection was voided.
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Sale is a sale order. Invariant: AmountPending = TotalAmount - AmountPaid,
// both within [0, TotalAmount].
type Sale struct {
	ID               int64
	ClientID         int64
	SellerID         int64
	DeliveryUserID   *int64
	SaleDate         time.Time
	TotalAmount      decimal.Decimal
	AmountPaid       decimal.Decimal
	AmountPending    decimal.Decimal
	SaleStatus       Status
	PaymentStatus    PaymentStatus
	Comments         *string
	CommentsDelivery *string
	Lines            []Line

	shared.RowMeta
}

// RecomputePaymentStatus derives the pending amount and payment status
// from TotalAmount and AmountPaid.
func (s *Sale) RecomputePaymentStatus() {
	s.AmountPending = s.TotalAmount.Sub(s.AmountPaid)
	if s.AmountPending.IsNegative() {
		s.AmountPending = decimal.Zero
	}
	switch {
	case s.AmountPaid.IsZero():
		s.PaymentStatus = PaymentUnpaid
	case s.AmountPaid.LessThan(s.TotalAmount):
		s.PaymentStatus = PaymentPartial
	default:
		s.PaymentStatus = PaymentPaid
	}
}

// Line is one sold product. Created once at sale creation, immutable after.
type Line struct {
	ID        int64
	SaleID    int64
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Lot       *string
	ExpiresAt *time.Time
	CreatedBy int64
	CreatedAt time.Time
}

// CancelComment is an append-only note left by a cancellation path.
type CancelComment struct {
	ID       int64
	SaleID   int64
	Comments string

	shared.RowMeta
}

// Summary is the sale listing projection.
type Summary struct {
	SaleID        int64
	ClientID      int64
	BusinessName  string
	SellerName    string
	DeliveryName  *string
	SaleStatus    Status
	PaymentStatus PaymentStatus
	TotalAmount   decimal.Decimal
	AmountPaid    decimal.Decimal
	AmountPending decimal.Decimal
	SaleDate      time.Time
}

// LineDetail is the sale detail projection.
type LineDetail struct {
	SaleID      int64
	ProductID   int64
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	Lot         *string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// Movements carries the comment trail of a sale.
type Movements struct {
	SaleID           int64
	Comments         *string
	CommentsDelivery *string
	UpdatedAt        time.Time
}
