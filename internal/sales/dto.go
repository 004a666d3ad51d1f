package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateSaleRequest is the input for sale creation. The seller is the
// authenticated user.
type CreateSaleRequest struct {
	ClientID int64                   `json:"client_id" validate:"required,gt=0"`
	Lines    []CreateSaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CreateSaleLineRequest is one ordered product.
type CreateSaleLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Lot       *string         `json:"lot,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// PackageRequest commits the pick with a packaging comment.
type PackageRequest struct {
	Comments string `json:"comments"`
}

// AssignDeliveryRequest sets or re-assigns the delivery user.
type AssignDeliveryRequest struct {
	DeliveryUserID int64  `json:"delivery_user_id" validate:"required,gt=0"`
	Comments       string `json:"comments"`
}

// CancelRequest carries the comment recorded by every cancellation path.
type CancelRequest struct {
	Comments string `json:"comments" validate:"required"`
}

// ListBySellerFilter narrows the seller sale listing. Nil fields mean
// no filter.
type ListBySellerFilter struct {
	StartDate     time.Time
	EndDate       time.Time
	SaleStatus    *Status
	PaymentStatus *PaymentStatus
}
