package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/inventory"
	"github.com/meridian-dist/meridian/internal/shared"
)

// AuditPort records before/after snapshots of mutated sales.
type AuditPort interface {
	Record(ctx context.Context, cs shared.ChangeSet) error
}

// Service owns the sale order lifecycle: creation with reservation, the
// status state machine, and the three reversal paths.
type Service struct {
	repo   RepositoryPort
	events shared.EventRecorder
	audit  AuditPort
	clock  shared.Clock
}

// NewService builds Service.
func NewService(repo RepositoryPort, events shared.EventRecorder, audit AuditPort, clock shared.Clock) *Service {
	return &Service{repo: repo, events: events, audit: audit, clock: clock}
}

// Create registers a sale in Processing, reserves stock for every line and
// debits both credit accounts, all in one transaction. Lines are locked in
// ascending product id order so concurrent creations sharing products
// cannot deadlock.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest) (int64, error) {
	if req.ClientID == 0 {
		return 0, shared.E(shared.KindValidation, "client required")
	}
	if len(req.Lines) == 0 {
		return 0, shared.E(shared.KindValidation, "sale requires at least one line")
	}
	total := decimal.Zero
	for _, line := range req.Lines {
		if line.ProductID == 0 {
			return 0, shared.E(shared.KindValidation, "sale line requires a product")
		}
		if line.Quantity <= 0 {
			return 0, shared.E(shared.KindValidation, "sale quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return 0, shared.E(shared.KindValidation, "unit price must be >= 0")
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}

	sellerID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	// Deterministic global lock order across concurrent sale creations.
	ordered := append([]CreateSaleLineRequest(nil), req.Lines...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ProductID < ordered[j].ProductID })
	productIDs := make([]int64, 0, len(ordered))
	for _, line := range ordered {
		productIDs = append(productIDs, line.ProductID)
	}

	var saleID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale := Sale{
			ClientID:      req.ClientID,
			SellerID:      sellerID,
			SaleDate:      now,
			TotalAmount:   total,
			AmountPaid:    decimal.Zero,
			AmountPending: total,
			SaleStatus:    StatusProcessing,
			PaymentStatus: PaymentUnpaid,
		}
		sale.Stamp(sellerID, now)
		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		saleID = id

		items, err := tx.GetItemsForUpdate(ctx, productIDs)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		for _, line := range ordered {
			item, ok := items[line.ProductID]
			if !ok {
				return shared.E(shared.KindNotFound, "no inventory row for product %d", line.ProductID)
			}
			if err := item.Reserve(line.Quantity); err != nil {
				return err
			}
			item.Touch(sellerID, now)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("update item %d: %w", line.ProductID, err)
			}
			if err := tx.InsertLine(ctx, Line{
				SaleID:    saleID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				Subtotal:  line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)),
				Lot:       line.Lot,
				ExpiresAt: line.ExpiresAt,
				CreatedBy: sellerID,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("insert sale line: %w", err)
			}
		}

		if err := s.debitAccount(ctx, tx, credit.AccountClient, req.ClientID, total, sellerID, now); err != nil {
			return err
		}
		return s.debitAccount(ctx, tx, credit.AccountSeller, sellerID, total, sellerID, now)
	})
	if err != nil {
		s.report(ctx, "Create", err, sellerID)
		return 0, err
	}
	return saleID, nil
}

func (s *Service) debitAccount(ctx context.Context, tx TxRepository, kind credit.AccountKind, id int64, amount decimal.Decimal, userID int64, now time.Time) error {
	account, err := tx.GetAccountForUpdate(ctx, kind, id)
	if err != nil {
		return err
	}
	if account == nil {
		return shared.E(shared.KindNotFound, "%s account %d not found", kind, id)
	}
	if err := account.Debit(amount); err != nil {
		return err
	}
	account.Touch(userID, now)
	if err := tx.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("update %s account: %w", kind, err)
	}
	return nil
}

// Package commits the pick: stock physically leaves the shelf and the
// reservation made at sale time is consumed.
func (s *Service) Package(ctx context.Context, saleID int64, req PackageRequest) error {
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if !CanTransition(sale.SaleStatus, StatusPackaged) {
			return shared.E(shared.KindInvalidState, "sale %d cannot be packaged from %s", saleID, sale.SaleStatus)
		}
		before := sale.SaleStatus

		items, err := s.lockLineItems(ctx, tx, sale)
		if err != nil {
			return err
		}
		for _, line := range sale.Lines {
			item := items[line.ProductID]
			item.CommitPick(line.Quantity)
			item.Touch(userID, now)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("update item %d: %w", line.ProductID, err)
			}
		}

		if req.Comments != "" {
			sale.Comments = &req.Comments
		}
		sale.SaleStatus = StatusPackaged
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		s.snapshot(ctx, sale, before, userID)
		return nil
	})
	if err != nil {
		s.report(ctx, "Package", err, userID)
	}
	return err
}

// AssignDelivery hands the package to a delivery user. Re-assignment is
// allowed; the delivery comment is recorded only on first assignment.
func (s *Service) AssignDelivery(ctx context.Context, saleID int64, req AssignDeliveryRequest) error {
	if req.DeliveryUserID == 0 {
		return shared.E(shared.KindValidation, "delivery user required")
	}
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if !CanTransition(sale.SaleStatus, StatusAssignedForDelivery) {
			return shared.E(shared.KindInvalidState, "sale %d cannot be assigned from %s", saleID, sale.SaleStatus)
		}
		before := sale.SaleStatus

		if sale.CommentsDelivery == nil && req.Comments != "" {
			sale.CommentsDelivery = &req.Comments
		}
		sale.DeliveryUserID = &req.DeliveryUserID
		sale.SaleStatus = StatusAssignedForDelivery
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		s.snapshot(ctx, sale, before, userID)
		return nil
	})
	if err != nil {
		s.report(ctx, "AssignDelivery", err, userID)
	}
	return err
}

// Deliver closes the happy path. No stock or credit change.
func (s *Service) Deliver(ctx context.Context, saleID int64) error {
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if !CanTransition(sale.SaleStatus, StatusDelivered) {
			return shared.E(shared.KindInvalidState, "sale %d cannot be delivered from %s", saleID, sale.SaleStatus)
		}
		before := sale.SaleStatus

		sale.SaleStatus = StatusDelivered
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		s.snapshot(ctx, sale, before, userID)
		return nil
	})
	if err != nil {
		s.report(ctx, "Deliver", err, userID)
	}
	return err
}

// CancelWithComment parks the sale awaiting physical return. Inventory and
// credit are deliberately untouched until the return is confirmed.
func (s *Service) CancelWithComment(ctx context.Context, saleID int64, req CancelRequest) error {
	if req.Comments == "" {
		return shared.E(shared.KindValidation, "cancellation comment required")
	}
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale.SaleStatus.Terminal() || !CanTransition(sale.SaleStatus, StatusCancelledPendingReturn) {
			return shared.E(shared.KindInvalidState, "sale %d cannot be cancelled from %s", saleID, sale.SaleStatus)
		}
		before := sale.SaleStatus

		sale.SaleStatus = StatusCancelledPendingReturn
		sale.PaymentStatus = PaymentCancelled
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		if err := s.addCancelComment(ctx, tx, saleID, req.Comments, userID, now); err != nil {
			return err
		}
		s.snapshot(ctx, sale, before, userID)
		return nil
	})
	if err != nil {
		s.report(ctx, "CancelWithComment", err, userID)
	}
	return err
}

// ConfirmReturn applies the deferred reversal once goods are physically
// back: on-hand stock grows by the sold quantities and the full sale amount
// returns to both credit accounts.
func (s *Service) ConfirmReturn(ctx context.Context, saleID int64, req CancelRequest) error {
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale.SaleStatus != StatusCancelledPendingReturn {
			return shared.E(shared.KindInvalidState, "only pending returns can be confirmed")
		}
		before := sale.SaleStatus

		items, err := s.lockLineItems(ctx, tx, sale)
		if err != nil {
			return err
		}
		for _, line := range sale.Lines {
			item := items[line.ProductID]
			item.Restock(line.Quantity)
			item.Touch(userID, now)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("update item %d: %w", line.ProductID, err)
			}
		}

		if err := s.restoreAccounts(ctx, tx, sale, sale.TotalAmount, userID); err != nil {
			return err
		}

		sale.SaleStatus = StatusReturnConfirmed
		sale.PaymentStatus = PaymentCancelled
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		if err := s.addCancelComment(ctx, tx, saleID, req.Comments, userID, now); err != nil {
			return err
		}
		s.snapshot(ctx, sale, before, userID)
		return nil
	})
	if err != nil {
		s.report(ctx, "ConfirmReturn", err, userID)
	}
	return err
}

// CancelByOmission reverses immediately, and how it reverses depends on
// where the sale stands. From Processing only the reservation is released;
// from Packaged the pick already removed stock, so on-hand stock comes
// back AND the reservation bookkeeping is unwound.
func (s *Service) CancelByOmission(ctx context.Context, saleID int64, req CancelRequest) error {
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := s.loadSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if !CanTransition(sale.SaleStatus, StatusCancelledByOmission) {
			return shared.E(shared.KindInvalidState,
				"cancel by omission allowed only from %s or %s", StatusProcessing, StatusPackaged)
		}
		before := sale.SaleStatus

		items, err := s.lockLineItems(ctx, tx, sale)
		if err != nil {
			return err
		}
		for _, line := range sale.Lines {
			item := items[line.ProductID]
			switch before {
			case StatusProcessing:
				item.ReleaseReservation(line.Quantity)
			case StatusPackaged:
				item.Restock(line.Quantity)
				item.ReleaseReservation(line.Quantity)
			}
			item.Touch(userID, now)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("update item %d: %w", line.ProductID, err)
			}
		}

		if err := s.restoreAccounts(ctx, tx, sale, sale.TotalAmount, userID); err != nil {
			return err
		}

		sale.SaleStatus = StatusCancelledByOmission
		sale.PaymentStatus = PaymentCancelled
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		if err := s.addCancelComment(ctx, tx, saleID, req.Comments, userID, now); err != nil {
			return err
		}
		s.snapshot(ctx, sale, before, userID)
		return nil
	})
	if err != nil {
		s.report(ctx, "CancelByOmission", err, userID)
	}
	return err
}

// ListByStatus lists sales in the given lifecycle stage.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Summary, error) {
	return s.listErr(s.repo.ListByStatus(ctx, status))
}

// ListByDeliveryUser lists the authenticated delivery user's sales in the
// given stage, limited to the last 20 days.
func (s *Service) ListByDeliveryUser(ctx context.Context, status Status) ([]Summary, error) {
	since := s.clock.Now().AddDate(0, 0, -20)
	return s.listErr(s.repo.ListByDeliveryUser(ctx, shared.ActorFromContext(ctx), status, since))
}

// ListBySeller lists the authenticated seller's sales in a date window with
// optional status filters.
func (s *Service) ListBySeller(ctx context.Context, filter ListBySellerFilter) ([]Summary, error) {
	return s.listErr(s.repo.ListBySeller(ctx, shared.ActorFromContext(ctx), filter))
}

// Details returns the line detail of one sale.
func (s *Service) Details(ctx context.Context, saleID int64) ([]LineDetail, error) {
	details, err := s.repo.Details(ctx, saleID)
	if err != nil {
		return nil, shared.Infra(err, "sale details")
	}
	return details, nil
}

// Movements returns the comment trail of one sale.
func (s *Service) Movements(ctx context.Context, saleID int64) (*Movements, error) {
	mv, err := s.repo.Movements(ctx, saleID)
	if err != nil {
		return nil, shared.Infra(err, "sale movements")
	}
	if mv == nil {
		return nil, shared.E(shared.KindNotFound, "sale %d not found", saleID)
	}
	return mv, nil
}

// CancelComments returns the cancellation comment trail of one sale.
func (s *Service) CancelComments(ctx context.Context, saleID int64) ([]CancelComment, error) {
	comments, err := s.repo.CancelComments(ctx, saleID)
	if err != nil {
		return nil, shared.Infra(err, "cancel comments")
	}
	return comments, nil
}

func (s *Service) listErr(rows []Summary, err error) ([]Summary, error) {
	if err != nil {
		return nil, shared.Infra(err, "list sales")
	}
	return rows, nil
}

func (s *Service) loadSale(ctx context.Context, tx TxRepository, saleID int64) (*Sale, error) {
	sale, err := tx.GetSaleForUpdate(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale: %w", err)
	}
	if sale == nil {
		return nil, shared.E(shared.KindNotFound, "sale %d not found", saleID)
	}
	lines, err := tx.GetLines(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}
	sale.Lines = lines
	return sale, nil
}

func (s *Service) lockLineItems(ctx context.Context, tx TxRepository, sale *Sale) (map[int64]*inventory.Item, error) {
	productIDs := make([]int64, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	items, err := tx.GetItemsForUpdate(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	for _, line := range sale.Lines {
		if _, ok := items[line.ProductID]; !ok {
			return nil, shared.E(shared.KindNotFound, "no inventory row for product %d", line.ProductID)
		}
	}
	return items, nil
}

func (s *Service) restoreAccounts(ctx context.Context, tx TxRepository, sale *Sale, amount decimal.Decimal, userID int64) error {
	now := s.clock.Now()
	client, err := tx.GetAccountForUpdate(ctx, credit.AccountClient, sale.ClientID)
	if err != nil {
		return err
	}
	if client != nil {
		client.Restore(amount)
		client.Touch(userID, now)
		if err := tx.UpdateAccount(ctx, client); err != nil {
			return fmt.Errorf("restore client credit: %w", err)
		}
	}
	seller, err := tx.GetAccountForUpdate(ctx, credit.AccountSeller, sale.SellerID)
	if err != nil {
		return err
	}
	if seller != nil {
		seller.Restore(amount)
		seller.Touch(userID, now)
		if err := tx.UpdateAccount(ctx, seller); err != nil {
			return fmt.Errorf("restore seller credit: %w", err)
		}
	}
	return nil
}

func (s *Service) addCancelComment(ctx context.Context, tx TxRepository, saleID int64, comments string, userID int64, now time.Time) error {
	if comments == "" {
		return nil
	}
	comment := CancelComment{SaleID: saleID, Comments: comments}
	comment.Stamp(userID, now)
	if err := tx.InsertCancelComment(ctx, comment); err != nil {
		return fmt.Errorf("insert cancel comment: %w", err)
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context, sale *Sale, before Status, userID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.ChangeSet{
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", sale.ID),
		ActorID:  userID,
		Before:   map[string]any{"sale_status": string(before)},
		After:    map[string]any{"sale_status": string(sale.SaleStatus), "payment_status": string(sale.PaymentStatus)},
		At:       s.clock.Now(),
	})
}

func (s *Service) report(ctx context.Context, action string, err error, userID int64) {
	if s.events == nil || shared.KindOf(err) != shared.KindInfrastructure {
		return
	}
	_ = s.events.Record(ctx, shared.EventLog{
		Module:  "sales",
		Action:  action,
		Message: err.Error(),
		UserID:  userID,
	})
}
