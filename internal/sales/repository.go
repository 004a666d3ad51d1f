package sales

import (
	"context"
	"time"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/inventory"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListByStatus(ctx context.Context, status Status) ([]Summary, error)
	ListByDeliveryUser(ctx context.Context, deliveryUserID int64, status Status, since time.Time) ([]Summary, error)
	ListBySeller(ctx context.Context, sellerID int64, filter ListBySellerFilter) ([]Summary, error)
	Details(ctx context.Context, saleID int64) ([]LineDetail, error)
	Movements(ctx context.Context, saleID int64) (*Movements, error)
	CancelComments(ctx context.Context, saleID int64) ([]CancelComment, error)
}

// TxRepository exposes every row operation a sale transaction may need:
// the sale itself, its lines, the inventory rows it reserves and the two
// credit accounts it debits. One operation, one transaction.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertLine(ctx context.Context, line Line) error
	GetSaleForUpdate(ctx context.Context, saleID int64) (*Sale, error)
	GetLines(ctx context.Context, saleID int64) ([]Line, error)
	UpdateSale(ctx context.Context, sale *Sale) error
	InsertCancelComment(ctx context.Context, comment CancelComment) error

	GetItemsForUpdate(ctx context.Context, productIDs []int64) (map[int64]*inventory.Item, error)
	UpdateItem(ctx context.Context, item *inventory.Item) error

	GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error)
	UpdateAccount(ctx context.Context, account *credit.Account) error
}
