package creditnote

import (
	"context"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/inventory"
	"github.com/meridian-dist/meridian/internal/sales"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListByStatus(ctx context.Context, status ApprovalStatus) ([]Request, error)
	Get(ctx context.Context, id int64) (*Request, error)
}

// TxRepository exposes the rows a credit note transaction touches.
type TxRepository interface {
	InsertRequest(ctx context.Context, request Request) (int64, error)
	InsertLine(ctx context.Context, line Line) error
	GetRequestForUpdate(ctx context.Context, id int64) (*Request, error)
	GetRequestLines(ctx context.Context, id int64) ([]Line, error)
	UpdateRequest(ctx context.Context, request *Request) error

	GetSaleForUpdate(ctx context.Context, saleID int64) (*sales.Sale, error)
	UpdateSale(ctx context.Context, sale *sales.Sale) error

	GetItemsForUpdate(ctx context.Context, productIDs []int64) (map[int64]*inventory.Item, error)
	UpdateItem(ctx context.Context, item *inventory.Item) error

	GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error)
	UpdateAccount(ctx context.Context, account *credit.Account) error
}
