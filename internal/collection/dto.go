package collection

import (
	"github.com/shopspring/decimal"
)

// ApplyPaymentRequest records one payment against a sale.
type ApplyPaymentRequest struct {
	SaleID               int64           `json:"sale_id" validate:"required,gt=0"`
	Amount               decimal.Decimal `json:"amount" validate:"required"`
	Method               Method          `json:"method" validate:"required,oneof=CASH TRANSFER THIRD_PARTY"`
	ThirdPartySupplierID *int64          `json:"third_party_supplier_id,omitempty"`
}

// ApplyBatchRequest applies several payments in one all-or-nothing
// transaction.
type ApplyBatchRequest struct {
	Payments []ApplyPaymentRequest `json:"payments" validate:"required,min=1,dive"`
}
