package creditnote

import (
	"github.com/shopspring/decimal"
)

// RequestCreditNote opens a credit note against a sale.
type RequestCreditNote struct {
	SaleID   int64              `json:"sale_id" validate:"required,gt=0"`
	Comments string             `json:"comments"`
	Lines    []RequestNoteLine  `json:"lines" validate:"required,min=1,dive"`
}

// RequestNoteLine is one product being returned.
type RequestNoteLine struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

// StageRequest carries the comment of an approval or confirmation step.
type StageRequest struct {
	Comments string `json:"comments"`
}
