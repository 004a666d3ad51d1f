package sales

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/inventory"
	"github.com/meridian-dist/meridian/internal/shared"
)

var testClock = shared.FixedClock{At: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}

type memoryRepo struct {
	sales         map[int64]*Sale
	lines         map[int64][]Line
	comments      []CancelComment
	items         map[int64]*inventory.Item
	accounts      map[credit.AccountKind]map[int64]*credit.Account
	nextID        int64
	deliverySince time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sales: make(map[int64]*Sale),
		lines: make(map[int64][]Line),
		items: make(map[int64]*inventory.Item),
		accounts: map[credit.AccountKind]map[int64]*credit.Account{
			credit.AccountClient: {},
			credit.AccountSeller: {},
		},
	}
}

func (r *memoryRepo) addItem(productID, current, reserved int64) {
	item := &inventory.Item{ProductID: productID, CurrentStock: current, Reserved: reserved}
	item.Recompute()
	r.items[productID] = item
}

func (r *memoryRepo) addAccount(kind credit.AccountKind, id int64, limit, available int64) {
	r.accounts[kind][id] = &credit.Account{
		ID: id, Kind: kind,
		CreditLimit:     decimal.NewFromInt(limit),
		AvailableCredit: decimal.NewFromInt(available),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Run against copies and commit only on success, mirroring a real
	// transaction rollback.
	shadow := r.clone()
	if err := fn(ctx, &memoryTx{repo: shadow}); err != nil {
		return err
	}
	*r = *shadow
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	out := newMemoryRepo()
	out.nextID = r.nextID
	out.comments = append(out.comments, r.comments...)
	for id, s := range r.sales {
		cp := *s
		out.sales[id] = &cp
	}
	for id, lines := range r.lines {
		out.lines[id] = append([]Line(nil), lines...)
	}
	for id, item := range r.items {
		cp := *item
		out.items[id] = &cp
	}
	for kind, accounts := range r.accounts {
		for id, a := range accounts {
			cp := *a
			out.accounts[kind][id] = &cp
		}
	}
	return out
}

func (r *memoryRepo) ListByStatus(ctx context.Context, status Status) ([]Summary, error) {
	out := []Summary{}
	for _, s := range r.sales {
		if s.SaleStatus == status {
			out = append(out, Summary{SaleID: s.ID, ClientID: s.ClientID, SaleStatus: s.SaleStatus, PaymentStatus: s.PaymentStatus, TotalAmount: s.TotalAmount, AmountPaid: s.AmountPaid, AmountPending: s.AmountPending, SaleDate: s.SaleDate})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByDeliveryUser(ctx context.Context, deliveryUserID int64, status Status, since time.Time) ([]Summary, error) {
	r.deliverySince = since
	out := []Summary{}
	for _, s := range r.sales {
		if s.SaleStatus == status && s.DeliveryUserID != nil && *s.DeliveryUserID == deliveryUserID {
			out = append(out, Summary{SaleID: s.ID, SaleStatus: s.SaleStatus})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBySeller(ctx context.Context, sellerID int64, filter ListBySellerFilter) ([]Summary, error) {
	out := []Summary{}
	for _, s := range r.sales {
		if s.SellerID != sellerID {
			continue
		}
		if filter.SaleStatus != nil && s.SaleStatus != *filter.SaleStatus {
			continue
		}
		if filter.PaymentStatus != nil && s.PaymentStatus != *filter.PaymentStatus {
			continue
		}
		out = append(out, Summary{SaleID: s.ID, SaleStatus: s.SaleStatus, PaymentStatus: s.PaymentStatus})
	}
	return out, nil
}

func (r *memoryRepo) Details(ctx context.Context, saleID int64) ([]LineDetail, error) {
	out := []LineDetail{}
	for _, l := range r.lines[saleID] {
		out = append(out, LineDetail{SaleID: l.SaleID, ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Subtotal: l.Subtotal})
	}
	return out, nil
}

func (r *memoryRepo) Movements(ctx context.Context, saleID int64) (*Movements, error) {
	s, ok := r.sales[saleID]
	if !ok {
		return nil, nil
	}
	return &Movements{SaleID: s.ID, Comments: s.Comments, CommentsDelivery: s.CommentsDelivery, UpdatedAt: s.UpdatedAt}, nil
}

func (r *memoryRepo) CancelComments(ctx context.Context, saleID int64) ([]CancelComment, error) {
	out := []CancelComment{}
	for _, c := range r.comments {
		if c.SaleID == saleID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	tx.repo.nextID++
	sale.ID = tx.repo.nextID
	tx.repo.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line Line) error {
	tx.repo.lines[line.SaleID] = append(tx.repo.lines[line.SaleID], line)
	return nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, saleID int64) (*Sale, error) {
	sale, ok := tx.repo.sales[saleID]
	if !ok {
		return nil, nil
	}
	return sale, nil
}

func (tx *memoryTx) GetLines(ctx context.Context, saleID int64) ([]Line, error) {
	return tx.repo.lines[saleID], nil
}

func (tx *memoryTx) UpdateSale(ctx context.Context, sale *Sale) error {
	tx.repo.sales[sale.ID] = sale
	return nil
}

func (tx *memoryTx) InsertCancelComment(ctx context.Context, comment CancelComment) error {
	tx.repo.comments = append(tx.repo.comments, comment)
	return nil
}

func (tx *memoryTx) GetItemsForUpdate(ctx context.Context, productIDs []int64) (map[int64]*inventory.Item, error) {
	out := make(map[int64]*inventory.Item)
	for _, id := range productIDs {
		if item, ok := tx.repo.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (tx *memoryTx) UpdateItem(ctx context.Context, item *inventory.Item) error {
	tx.repo.items[item.ProductID] = item
	return nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error) {
	return tx.repo.accounts[kind][id], nil
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, account *credit.Account) error {
	tx.repo.accounts[account.Kind][account.ID] = account
	return nil
}

func testService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, testClock)
}

func actorCtx(userID int64) context.Context {
	return shared.ContextWithActor(context.Background(), userID)
}

func createReq() CreateSaleRequest {
	return CreateSaleRequest{
		ClientID: 10,
		Lines: []CreateSaleLineRequest{
			{ProductID: 2, Quantity: 3, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(350)},
		},
	}
}

func seededRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.addItem(1, 50, 0)
	repo.addItem(2, 20, 5)
	repo.addAccount(credit.AccountClient, 10, 5000, 5000)
	repo.addAccount(credit.AccountSeller, 7, 10000, 10000)
	return repo
}

func TestCreateReservesStockAndDebitsCredit(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)

	id, err := svc.Create(actorCtx(7), createReq())
	require.NoError(t, err)
	require.NotZero(t, id)

	sale := repo.sales[id]
	require.Equal(t, StatusProcessing, sale.SaleStatus)
	require.Equal(t, PaymentUnpaid, sale.PaymentStatus)
	require.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(1000)))
	require.True(t, sale.AmountPending.Equal(decimal.NewFromInt(1000)))

	// Reservation grows, on-hand stock does not move yet.
	require.Equal(t, int64(50), repo.items[1].CurrentStock)
	require.Equal(t, int64(2), repo.items[1].Reserved)
	require.Equal(t, int64(48), repo.items[1].RealStock)
	require.Equal(t, int64(8), repo.items[2].Reserved)
	require.Equal(t, int64(12), repo.items[2].RealStock)

	// Both ledgers debited by the sale total.
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(4000)))
	require.True(t, repo.accounts[credit.AccountSeller][7].AvailableCredit.Equal(decimal.NewFromInt(9000)))

	// Lines stored in ascending product order.
	lines := repo.lines[id]
	require.Len(t, lines, 2)
	require.Equal(t, int64(1), lines[0].ProductID)
	require.Equal(t, int64(2), lines[1].ProductID)
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)

	req := createReq()
	req.Lines[0].Quantity = 16 // real stock of product 2 is 15
	_, err := svc.Create(actorCtx(7), req)
	require.Error(t, err)
	require.True(t, shared.IsKind(err, shared.KindInsufficientResource))

	// Nothing committed, including the other line's reservation.
	require.Equal(t, int64(0), repo.items[1].Reserved)
	require.Equal(t, int64(5), repo.items[2].Reserved)
	require.Empty(t, repo.sales)
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(5000)))
}

func TestCreateInsufficientCreditRollsBack(t *testing.T) {
	repo := seededRepo()
	repo.accounts[credit.AccountClient][10].AvailableCredit = decimal.NewFromInt(999)
	svc := testService(repo)

	_, err := svc.Create(actorCtx(7), createReq())
	require.True(t, shared.IsKind(err, shared.KindInsufficientResource))
	require.Equal(t, int64(0), repo.items[1].Reserved)
	require.True(t, repo.accounts[credit.AccountSeller][7].AvailableCredit.Equal(decimal.NewFromInt(10000)))
}

func TestCreateUnknownClientAccount(t *testing.T) {
	repo := seededRepo()
	delete(repo.accounts[credit.AccountClient], 10)
	svc := testService(repo)

	_, err := svc.Create(actorCtx(7), createReq())
	require.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestPackageCommitsPick(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, err := svc.Create(actorCtx(7), createReq())
	require.NoError(t, err)

	err = svc.Package(actorCtx(3), id, PackageRequest{Comments: "dock 4"})
	require.NoError(t, err)

	sale := repo.sales[id]
	require.Equal(t, StatusPackaged, sale.SaleStatus)
	require.Equal(t, "dock 4", *sale.Comments)

	// Stock leaves the shelf and the reservation is consumed.
	require.Equal(t, int64(48), repo.items[1].CurrentStock)
	require.Equal(t, int64(0), repo.items[1].Reserved)
	require.Equal(t, int64(48), repo.items[1].RealStock)
	require.Equal(t, int64(17), repo.items[2].CurrentStock)
	require.Equal(t, int64(5), repo.items[2].Reserved)
}

func TestPackageRejectsWrongState(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))

	err := svc.Package(actorCtx(3), id, PackageRequest{})
	require.True(t, shared.IsKind(err, shared.KindInvalidState))
}

func TestAssignDeliveryKeepsFirstComment(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))

	require.NoError(t, svc.AssignDelivery(actorCtx(3), id, AssignDeliveryRequest{DeliveryUserID: 21, Comments: "leave at gate"}))
	sale := repo.sales[id]
	require.Equal(t, StatusAssignedForDelivery, sale.SaleStatus)
	require.Equal(t, int64(21), *sale.DeliveryUserID)
	require.Equal(t, "leave at gate", *sale.CommentsDelivery)

	// Re-assignment swaps the courier but never rewrites the comment.
	require.NoError(t, svc.AssignDelivery(actorCtx(3), id, AssignDeliveryRequest{DeliveryUserID: 22, Comments: "other note"}))
	sale = repo.sales[id]
	require.Equal(t, int64(22), *sale.DeliveryUserID)
	require.Equal(t, "leave at gate", *sale.CommentsDelivery)
}

func TestDeliverHappyPath(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))
	require.NoError(t, svc.AssignDelivery(actorCtx(3), id, AssignDeliveryRequest{DeliveryUserID: 21}))

	require.NoError(t, svc.Deliver(actorCtx(21), id))
	require.Equal(t, StatusDelivered, repo.sales[id].SaleStatus)

	// Terminal: no further transitions.
	err := svc.CancelByOmission(actorCtx(3), id, CancelRequest{Comments: "x"})
	require.True(t, shared.IsKind(err, shared.KindInvalidState))
}

func TestCancelWithCommentDefersReversal(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))

	require.NoError(t, svc.CancelWithComment(actorCtx(3), id, CancelRequest{Comments: "client refused"}))
	sale := repo.sales[id]
	require.Equal(t, StatusCancelledPendingReturn, sale.SaleStatus)
	require.Equal(t, PaymentCancelled, sale.PaymentStatus)

	// Stock and credit stay untouched until the return is confirmed.
	require.Equal(t, int64(48), repo.items[1].CurrentStock)
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(4000)))
	require.Len(t, repo.comments, 1)
	require.Equal(t, "client refused", repo.comments[0].Comments)
}

func TestCancelRequiresComment(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())

	err := svc.CancelWithComment(actorCtx(3), id, CancelRequest{})
	require.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestConfirmReturnRestocksAndRestoresCredit(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))
	require.NoError(t, svc.CancelWithComment(actorCtx(3), id, CancelRequest{Comments: "client refused"}))

	require.NoError(t, svc.ConfirmReturn(actorCtx(4), id, CancelRequest{Comments: "boxes intact"}))
	sale := repo.sales[id]
	require.Equal(t, StatusReturnConfirmed, sale.SaleStatus)

	// Goods are back on the shelf; the pick already consumed the
	// reservation, so only current stock moves.
	require.Equal(t, int64(50), repo.items[1].CurrentStock)
	require.Equal(t, int64(0), repo.items[1].Reserved)
	require.Equal(t, int64(20), repo.items[2].CurrentStock)
	require.Equal(t, int64(5), repo.items[2].Reserved)

	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(5000)))
	require.True(t, repo.accounts[credit.AccountSeller][7].AvailableCredit.Equal(decimal.NewFromInt(10000)))
	require.Len(t, repo.comments, 2)
}

func TestConfirmReturnOnlyFromPendingReturn(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())

	err := svc.ConfirmReturn(actorCtx(4), id, CancelRequest{Comments: "x"})
	require.True(t, shared.IsKind(err, shared.KindInvalidState))
}

func TestCancelByOmissionFromProcessing(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())

	require.NoError(t, svc.CancelByOmission(actorCtx(3), id, CancelRequest{Comments: "duplicate order"}))
	sale := repo.sales[id]
	require.Equal(t, StatusCancelledByOmission, sale.SaleStatus)
	require.Equal(t, PaymentCancelled, sale.PaymentStatus)

	// Only the reservation is released; stock never moved.
	require.Equal(t, int64(50), repo.items[1].CurrentStock)
	require.Equal(t, int64(0), repo.items[1].Reserved)
	require.Equal(t, int64(50), repo.items[1].RealStock)
	require.Equal(t, int64(20), repo.items[2].CurrentStock)
	require.Equal(t, int64(5), repo.items[2].Reserved)

	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(5000)))
	require.True(t, repo.accounts[credit.AccountSeller][7].AvailableCredit.Equal(decimal.NewFromInt(10000)))
}

func TestCancelByOmissionFromPackaged(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))

	require.NoError(t, svc.CancelByOmission(actorCtx(3), id, CancelRequest{Comments: "never shipped"}))

	// The pick is undone on both axes: stock returns AND the reservation
	// counter unwinds, exactly mirroring what packaging applied.
	require.Equal(t, int64(50), repo.items[1].CurrentStock)
	require.Equal(t, int64(-2), repo.items[1].Reserved)
	require.Equal(t, int64(20), repo.items[2].CurrentStock)
	require.Equal(t, int64(2), repo.items[2].Reserved)
	require.Equal(t, int64(18), repo.items[2].RealStock)

	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(5000)))
	require.True(t, repo.accounts[credit.AccountSeller][7].AvailableCredit.Equal(decimal.NewFromInt(10000)))
}

func TestCancelByOmissionRejectedAfterAssignment(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)
	id, _ := svc.Create(actorCtx(7), createReq())
	require.NoError(t, svc.Package(actorCtx(3), id, PackageRequest{}))
	require.NoError(t, svc.AssignDelivery(actorCtx(3), id, AssignDeliveryRequest{DeliveryUserID: 21}))

	err := svc.CancelByOmission(actorCtx(3), id, CancelRequest{Comments: "too late"})
	require.True(t, shared.IsKind(err, shared.KindInvalidState))
}

func TestListByDeliveryUserWindowUsesClock(t *testing.T) {
	repo := seededRepo()
	svc := testService(repo)

	_, err := svc.ListByDeliveryUser(actorCtx(3), StatusAssignedForDelivery)
	require.NoError(t, err)
	require.True(t, repo.deliverySince.Equal(testClock.Now().AddDate(0, 0, -20)))
}

func TestCreateValidation(t *testing.T) {
	svc := testService(seededRepo())

	_, err := svc.Create(actorCtx(7), CreateSaleRequest{ClientID: 10})
	require.True(t, shared.IsKind(err, shared.KindValidation))

	req := createReq()
	req.Lines[0].Quantity = 0
	_, err = svc.Create(actorCtx(7), req)
	require.True(t, shared.IsKind(err, shared.KindValidation))

	req = createReq()
	req.Lines[0].UnitPrice = decimal.NewFromInt(-5)
	_, err = svc.Create(actorCtx(7), req)
	require.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestSaleNotFound(t *testing.T) {
	svc := testService(seededRepo())
	err := svc.Deliver(actorCtx(3), 999)
	require.True(t, shared.IsKind(err, shared.KindNotFound))
}
