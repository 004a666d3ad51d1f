package collection

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/sales"
	"github.com/meridian-dist/meridian/internal/shared"
)

var testClock = shared.FixedClock{At: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}

type memoryRepo struct {
	sales     map[int64]*sales.Sale
	payments  []Payment
	accounts  map[credit.AccountKind]map[int64]*credit.Account
	suppliers map[int64]*SupplierBalance
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sales: make(map[int64]*sales.Sale),
		accounts: map[credit.AccountKind]map[int64]*credit.Account{
			credit.AccountClient: {},
			credit.AccountSeller: {},
		},
		suppliers: make(map[int64]*SupplierBalance),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
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
	out.payments = append(out.payments, r.payments...)
	for id, s := range r.sales {
		cp := *s
		out.sales[id] = &cp
	}
	for kind, accounts := range r.accounts {
		for id, a := range accounts {
			cp := *a
			out.accounts[kind][id] = &cp
		}
	}
	for id, b := range r.suppliers {
		cp := *b
		out.suppliers[id] = &cp
	}
	return out
}

func (r *memoryRepo) ListBySale(ctx context.Context, saleID int64) ([]Payment, error) {
	out := []Payment{}
	for _, p := range r.payments {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListReceivables(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error) {
	out := []sales.Summary{}
	for _, s := range r.sales {
		if filter.ClientID != nil && s.ClientID != *filter.ClientID {
			continue
		}
		if filter.SellerID != nil && s.SellerID != *filter.SellerID {
			continue
		}
		if filter.SaleStatus != nil && s.SaleStatus != *filter.SaleStatus {
			continue
		}
		if len(filter.PaymentStatuses) > 0 {
			match := false
			for _, ps := range filter.PaymentStatuses {
				if s.PaymentStatus == ps {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, sales.Summary{
			SaleID:        s.ID,
			ClientID:      s.ClientID,
			SaleStatus:    s.SaleStatus,
			PaymentStatus: s.PaymentStatus,
			TotalAmount:   s.TotalAmount,
			AmountPaid:    s.AmountPaid,
			AmountPending: s.AmountPending,
		})
	}
	return out, nil
}

func (r *memoryRepo) SummaryByMethod(ctx context.Context, start, end time.Time) ([]MethodTotal, error) {
	byMethod := map[Method]*MethodTotal{}
	order := []Method{}
	for _, p := range r.payments {
		if p.PaidAt.Before(start) || !p.PaidAt.Before(end) {
			continue
		}
		t, ok := byMethod[p.Method]
		if !ok {
			t = &MethodTotal{Method: p.Method, Total: decimal.Zero}
			byMethod[p.Method] = t
			order = append(order, p.Method)
		}
		t.Count++
		t.Total = t.Total.Add(p.Amount)
	}
	out := []MethodTotal{}
	for _, m := range order {
		out = append(out, *byMethod[m])
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	tx.repo.nextID++
	payment.ID = tx.repo.nextID
	tx.repo.payments = append(tx.repo.payments, payment)
	return payment.ID, nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, saleID int64) (*sales.Sale, error) {
	return tx.repo.sales[saleID], nil
}

func (tx *memoryTx) UpdateSale(ctx context.Context, sale *sales.Sale) error {
	tx.repo.sales[sale.ID] = sale
	return nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, kind credit.AccountKind, id int64) (*credit.Account, error) {
	return tx.repo.accounts[kind][id], nil
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, account *credit.Account) error {
	tx.repo.accounts[account.Kind][account.ID] = account
	return nil
}

func (tx *memoryTx) GetSupplierBalanceForUpdate(ctx context.Context, supplierID int64) (*SupplierBalance, error) {
	return tx.repo.suppliers[supplierID], nil
}

func (tx *memoryTx) UpdateSupplierBalance(ctx context.Context, balance *SupplierBalance) error {
	tx.repo.suppliers[balance.SupplierID] = balance
	return nil
}

func seededRepo() *memoryRepo {
	repo := newMemoryRepo()
	sale := &sales.Sale{
		ID: 1, ClientID: 10, SellerID: 7,
		TotalAmount:   decimal.NewFromInt(1000),
		AmountPaid:    decimal.Zero,
		AmountPending: decimal.NewFromInt(1000),
		SaleStatus:    sales.StatusDelivered,
		PaymentStatus: sales.PaymentUnpaid,
	}
	repo.sales[1] = sale
	// Client credit 1200, sale already debited 1000.
	repo.accounts[credit.AccountClient][10] = &credit.Account{
		ID: 10, Kind: credit.AccountClient,
		CreditLimit:     decimal.NewFromInt(1200),
		AvailableCredit: decimal.NewFromInt(200),
	}
	repo.accounts[credit.AccountSeller][7] = &credit.Account{
		ID: 7, Kind: credit.AccountSeller,
		CreditLimit:     decimal.NewFromInt(10000),
		AvailableCredit: decimal.NewFromInt(9000),
	}
	repo.suppliers[55] = &SupplierBalance{SupplierID: 55, ThirdPartyBalance: decimal.Zero}
	return repo
}

func actorCtx() context.Context {
	return shared.ContextWithActor(context.Background(), 4)
}

func TestApplyPaymentLifecycle(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, testClock)

	ref, err := svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(600), Method: MethodCash})
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	sale := repo.sales[1]
	require.True(t, sale.AmountPaid.Equal(decimal.NewFromInt(600)))
	require.True(t, sale.AmountPending.Equal(decimal.NewFromInt(400)))
	require.Equal(t, sales.PaymentPartial, sale.PaymentStatus)
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(800)))
	require.True(t, repo.accounts[credit.AccountSeller][7].AvailableCredit.Equal(decimal.NewFromInt(9600)))

	_, err = svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(400), Method: MethodTransfer})
	require.NoError(t, err)

	sale = repo.sales[1]
	require.Equal(t, sales.PaymentPaid, sale.PaymentStatus)
	require.True(t, sale.AmountPending.IsZero())
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(1200)))
	require.Len(t, repo.payments, 2)
}

func TestApplyPaymentValidation(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, testClock)

	_, err := svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.Zero, Method: MethodCash})
	require.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(1001), Method: MethodCash})
	require.True(t, shared.IsKind(err, shared.KindValidation))

	// Over-payment leaves everything untouched.
	require.True(t, repo.sales[1].AmountPaid.IsZero())
	require.Empty(t, repo.payments)
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(200)))
}

func TestApplyPaymentSaleNotFound(t *testing.T) {
	svc := NewService(seededRepo(), nil, testClock)
	_, err := svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 99, Amount: decimal.NewFromInt(10), Method: MethodCash})
	require.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestApplyThirdPartyCreditsSupplier(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, testClock)

	supplier := int64(55)
	_, err := svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(250), Method: MethodThirdParty, ThirdPartySupplierID: &supplier})
	require.NoError(t, err)
	require.True(t, repo.suppliers[55].ThirdPartyBalance.Equal(decimal.NewFromInt(250)))
	// Credit accounts restore as usual regardless of routing.
	require.True(t, repo.accounts[credit.AccountClient][10].AvailableCredit.Equal(decimal.NewFromInt(450)))
}

func TestApplyThirdPartyUnknownSupplier(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, testClock)

	supplier := int64(99)
	_, err := svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(250), Method: MethodThirdParty, ThirdPartySupplierID: &supplier})
	require.True(t, shared.IsKind(err, shared.KindNotFound))
	require.Empty(t, repo.payments)
	require.True(t, repo.sales[1].AmountPaid.IsZero())
}

func TestReceivableListings(t *testing.T) {
	repo := seededRepo()
	repo.sales[2] = &sales.Sale{
		ID: 2, ClientID: 11, SellerID: 7,
		TotalAmount:   decimal.NewFromInt(500),
		AmountPaid:    decimal.NewFromInt(500),
		AmountPending: decimal.Zero,
		SaleStatus:    sales.StatusDelivered,
		PaymentStatus: sales.PaymentPaid,
	}
	svc := NewService(repo, nil, testClock)

	now := testClock.Now()
	window := ReceivableFilter{StartDate: now.AddDate(0, 0, -30), EndDate: now.AddDate(0, 0, 1)}

	pending, err := svc.ListPending(actorCtx(), window)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, int64(1), pending[0].SaleID)

	paid, err := svc.ListPaid(actorCtx(), window)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Equal(t, int64(2), paid[0].SaleID)

	history, err := svc.ListHistory(actorCtx(), window)
	require.NoError(t, err)
	require.Len(t, history, 2)

	client := int64(11)
	filtered := window
	filtered.ClientID = &client
	history, err = svc.ListHistory(actorCtx(), filtered)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, int64(2), history[0].SaleID)

	_, err = svc.ListPending(actorCtx(), ReceivableFilter{StartDate: now, EndDate: now})
	require.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestSummaryByMethod(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, testClock)

	_, err := svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(300), Method: MethodCash})
	require.NoError(t, err)
	_, err = svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(100), Method: MethodCash})
	require.NoError(t, err)
	_, err = svc.Apply(actorCtx(), ApplyPaymentRequest{SaleID: 1, Amount: decimal.NewFromInt(200), Method: MethodTransfer})
	require.NoError(t, err)

	now := testClock.Now()
	totals, err := svc.SummaryByMethod(actorCtx(), now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, totals, 2)
	require.Equal(t, MethodCash, totals[0].Method)
	require.Equal(t, int64(2), totals[0].Count)
	require.True(t, totals[0].Total.Equal(decimal.NewFromInt(400)))
	require.True(t, totals[1].Total.Equal(decimal.NewFromInt(200)))

	_, err = svc.SummaryByMethod(actorCtx(), now, now)
	require.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestApplyBatchAllOrNothing(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, testClock)

	refs, err := svc.ApplyBatch(actorCtx(), ApplyBatchRequest{Payments: []ApplyPaymentRequest{
		{SaleID: 1, Amount: decimal.NewFromInt(300), Method: MethodCash},
		{SaleID: 1, Amount: decimal.NewFromInt(200), Method: MethodTransfer},
	}})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.True(t, repo.sales[1].AmountPaid.Equal(decimal.NewFromInt(500)))

	// Second batch fails on its last payment and must roll back entirely.
	_, err = svc.ApplyBatch(actorCtx(), ApplyBatchRequest{Payments: []ApplyPaymentRequest{
		{SaleID: 1, Amount: decimal.NewFromInt(100), Method: MethodCash},
		{SaleID: 1, Amount: decimal.NewFromInt(9999), Method: MethodCash},
	}})
	require.True(t, shared.IsKind(err, shared.KindValidation))
	require.True(t, repo.sales[1].AmountPaid.Equal(decimal.NewFromInt(500)))
	require.Len(t, repo.payments, 2)
}
