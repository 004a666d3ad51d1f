package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/sales"
	"github.com/meridian-dist/meridian/internal/shared"
)

// Service applies payments against sales.
type Service struct {
	repo   RepositoryPort
	events shared.EventRecorder
	clock  shared.Clock
}

// NewService builds Service.
func NewService(repo RepositoryPort, events shared.EventRecorder, clock shared.Clock) *Service {
	return &Service{repo: repo, events: events, clock: clock}
}

// Apply records one payment in its own transaction.
func (s *Service) Apply(ctx context.Context, req ApplyPaymentRequest) (string, error) {
	var reference string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ref, err := s.apply(ctx, tx, req)
		if err != nil {
			return err
		}
		reference = ref
		return nil
	})
	if err != nil {
		s.report(ctx, "Apply", err)
		return "", err
	}
	return reference, nil
}

// ApplyBatch applies several payments atomically. One bad payment rolls
// back the whole batch.
func (s *Service) ApplyBatch(ctx context.Context, req ApplyBatchRequest) ([]string, error) {
	if len(req.Payments) == 0 {
		return nil, shared.E(shared.KindValidation, "batch requires at least one payment")
	}
	references := make([]string, 0, len(req.Payments))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, p := range req.Payments {
			ref, err := s.apply(ctx, tx, p)
			if err != nil {
				return err
			}
			references = append(references, ref)
		}
		return nil
	})
	if err != nil {
		s.report(ctx, "ApplyBatch", err)
		return nil, err
	}
	return references, nil
}

// ListPending lists sales still owing money in the filter's date window.
func (s *Service) ListPending(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error) {
	filter.PaymentStatuses = []sales.PaymentStatus{sales.PaymentUnpaid, sales.PaymentPartial}
	return s.listReceivables(ctx, filter)
}

// ListPaid lists fully collected sales in the filter's date window.
func (s *Service) ListPaid(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error) {
	filter.PaymentStatuses = []sales.PaymentStatus{sales.PaymentPaid}
	return s.listReceivables(ctx, filter)
}

// ListHistory lists every sale in the filter's date window regardless of
// collection state.
func (s *Service) ListHistory(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error) {
	filter.PaymentStatuses = nil
	return s.listReceivables(ctx, filter)
}

func (s *Service) listReceivables(ctx context.Context, filter ReceivableFilter) ([]sales.Summary, error) {
	if !filter.EndDate.After(filter.StartDate) {
		return nil, shared.E(shared.KindValidation, "listing window end must follow start")
	}
	out, err := s.repo.ListReceivables(ctx, filter)
	if err != nil {
		return nil, shared.Infra(err, "list receivables")
	}
	return out, nil
}

// SummaryByMethod totals what was collected through each payment method
// between start and end, end exclusive.
func (s *Service) SummaryByMethod(ctx context.Context, start, end time.Time) ([]MethodTotal, error) {
	if !end.After(start) {
		return nil, shared.E(shared.KindValidation, "summary window end must follow start")
	}
	totals, err := s.repo.SummaryByMethod(ctx, start, end)
	if err != nil {
		return nil, shared.Infra(err, "summarise payments")
	}
	return totals, nil
}

// ListBySale returns the payment trail of one sale, oldest first.
func (s *Service) ListBySale(ctx context.Context, saleID int64) ([]Payment, error) {
	payments, err := s.repo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, shared.Infra(err, "list payments")
	}
	return payments, nil
}

func (s *Service) apply(ctx context.Context, tx TxRepository, req ApplyPaymentRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", shared.E(shared.KindValidation, "payment amount must be positive")
	}
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	sale, err := tx.GetSaleForUpdate(ctx, req.SaleID)
	if err != nil {
		return "", fmt.Errorf("load sale: %w", err)
	}
	if sale == nil {
		return "", shared.E(shared.KindNotFound, "sale %d not found", req.SaleID)
	}
	if req.Amount.GreaterThan(sale.AmountPending) {
		return "", shared.E(shared.KindValidation,
			"payment of %s exceeds pending amount %s on sale %d", req.Amount, sale.AmountPending, sale.ID)
	}

	payment := Payment{
		Reference: uuid.NewString(),
		SaleID:    sale.ID,
		Amount:    req.Amount,
		Method:    req.Method,
		PaidAt:    now,
		CreatedBy: userID,
		CreatedAt: now,
	}
	if req.Method == MethodThirdParty {
		if req.ThirdPartySupplierID == nil {
			return "", shared.E(shared.KindValidation, "third-party payments require a supplier")
		}
		payment.ThirdPartySupplierID = req.ThirdPartySupplierID
	}
	if _, err := tx.InsertPayment(ctx, payment); err != nil {
		return "", fmt.Errorf("insert payment: %w", err)
	}

	sale.AmountPaid = sale.AmountPaid.Add(req.Amount)
	sale.RecomputePaymentStatus()
	sale.Touch(userID, now)
	if err := tx.UpdateSale(ctx, sale); err != nil {
		return "", fmt.Errorf("update sale: %w", err)
	}

	// A payment frees the credit capacity the sale consumed, on both
	// ledgers.
	for _, target := range []struct {
		kind credit.AccountKind
		id   int64
	}{{credit.AccountClient, sale.ClientID}, {credit.AccountSeller, sale.SellerID}} {
		account, err := tx.GetAccountForUpdate(ctx, target.kind, target.id)
		if err != nil {
			return "", err
		}
		if account == nil {
			return "", shared.E(shared.KindNotFound, "%s account %d not found", target.kind, target.id)
		}
		account.Restore(req.Amount)
		account.Touch(userID, now)
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return "", fmt.Errorf("update %s account: %w", target.kind, err)
		}
	}

	if payment.ThirdPartySupplierID != nil {
		balance, err := tx.GetSupplierBalanceForUpdate(ctx, *payment.ThirdPartySupplierID)
		if err != nil {
			return "", err
		}
		if balance == nil {
			return "", shared.E(shared.KindNotFound, "supplier %d not found", *payment.ThirdPartySupplierID)
		}
		balance.Credit(req.Amount)
		balance.UpdatedBy = userID
		balance.UpdatedAt = now
		if err := tx.UpdateSupplierBalance(ctx, balance); err != nil {
			return "", fmt.Errorf("update supplier balance: %w", err)
		}
	}
	return payment.Reference, nil
}

func (s *Service) report(ctx context.Context, action string, err error) {
	if s.events == nil || shared.KindOf(err) != shared.KindInfrastructure {
		return
	}
	_ = s.events.Record(ctx, shared.EventLog{
		Module:  "collection",
		Action:  action,
		Message: err.Error(),
		UserID:  shared.ActorFromContext(ctx),
	})
}
