package inventory

import "context"

// TxRepository exposes the row operations available inside a transaction.
// The sales, collection and credit-note packages share these ops through
// their own transactions; this port exists so service tests can run against
// an in-memory fake.
type TxRepository interface {
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	InsertEntryLine(ctx context.Context, line EntryLine) error
	GetItemsForUpdate(ctx context.Context, productIDs []int64) (map[int64]*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
}
