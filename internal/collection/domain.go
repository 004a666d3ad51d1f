// Package collection is the append-only payment ledger. Payments free the
// credit capacity a sale consumed and drive the sale's payment status.
package collection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/sales"
)

// Method is how a payment was collected.
type Method string

const (
	// MethodCash is a direct cash collection.
	MethodCash Method = "CASH"
	// MethodTransfer is a bank transfer.
	MethodTransfer Method = "TRANSFER"
	// MethodThirdParty routes the money through a supplier's account.
	MethodThirdParty Method = "THIRD_PARTY"
)

// Payment is one ledger row. Rows are appended, never edited.
type Payment struct {
	ID                   int64
	Reference            string
	SaleID               int64
	Amount               decimal.Decimal
	Method               Method
	ThirdPartySupplierID *int64
	PaidAt               time.Time
	CreatedBy            int64
	CreatedAt            time.Time
}

// SupplierBalance is the third-party balance of one supplier. Payments
// collected through a supplier accrue here until settled outside this core.
type SupplierBalance struct {
	SupplierID        int64
	ThirdPartyBalance decimal.Decimal
	UpdatedBy         int64
	UpdatedAt         time.Time
}

// Credit adds a routed payment to the supplier's balance.
func (b *SupplierBalance) Credit(amount decimal.Decimal) {
	b.ThirdPartyBalance = b.ThirdPartyBalance.Add(amount)
}

// MethodTotal is one row of the collections summary: everything collected
// through one method inside a date window.
type MethodTotal struct {
	Method Method
	Count  int64
	Total  decimal.Decimal
}

// ReceivableFilter narrows the receivable listings. Nil fields mean no
// filter; PaymentStatuses is set by the listing operation, not the caller.
type ReceivableFilter struct {
	StartDate       time.Time
	EndDate         time.Time
	ClientID        *int64
	SellerID        *int64
	SaleStatus      *sales.Status
	PaymentStatuses []sales.PaymentStatus
}
