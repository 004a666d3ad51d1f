package collection

import (
	"context"
	"time"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/sales"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListBySale(ctx context.Context, saleID int64) ([]Payment, error)
	ListReceivables(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error)
	SummaryByMethod(ctx context.Context, start, end time.Time) ([]MethodTotal, error)
}

// TxRepository exposes the rows a payment transaction touches: the payment
// ledger itself, the sale being paid, both credit accounts, and optionally
// a supplier's third-party balance.
type TxRepository interface {
	InsertPayment(ctx context.Context, payment Payment) (int64, error)

	GetSaleForUpdate(ctx context.Context, saleID int64) (*sales.Sale, error)
	UpdateSale(ctx context.Context, sale *sales.Sale) error

	GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error)
	UpdateAccount(ctx context.Context, account *credit.Account) error

	GetSupplierBalanceForUpdate(ctx context.Context, supplierID int64) (*SupplierBalance, error)
	UpdateSupplierBalance(ctx context.Context, balance *SupplierBalance) error
}
