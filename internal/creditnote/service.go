package creditnote

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/credit"
	"github.com/meridian-dist/meridian/internal/sales"
	"github.com/meridian-dist/meridian/internal/shared"
)

// Service runs the credit note approval chain.
type Service struct {
	repo   RepositoryPort
	events shared.EventRecorder
	clock  shared.Clock
}

// NewService builds Service.
func NewService(repo RepositoryPort, events shared.EventRecorder, clock shared.Clock) *Service {
	return &Service{repo: repo, events: events, clock: clock}
}

// Request opens a credit note. The sale moves to the pending credit note
// status and the note total is fixed from the supplied lines.
func (s *Service) Request(ctx context.Context, req RequestCreditNote) (int64, error) {
	if len(req.Lines) == 0 {
		return 0, shared.E(shared.KindValidation, "credit note requires at least one line")
	}
	total := decimal.Zero
	for _, line := range req.Lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			return 0, shared.E(shared.KindValidation, "credit note line requires a product and positive quantity")
		}
		if line.UnitPrice.IsNegative() {
			return 0, shared.E(shared.KindValidation, "unit price must be >= 0")
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	var noteID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, req.SaleID)
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}
		if sale == nil {
			return shared.E(shared.KindNotFound, "sale %d not found", req.SaleID)
		}
		if !sales.CanTransition(sale.SaleStatus, sales.StatusCreditNotePending) {
			return shared.E(shared.KindInvalidState, "sale %d cannot accept a credit note from %s", sale.ID, sale.SaleStatus)
		}

		note := Request{
			SaleID:         sale.ID,
			Total:          total,
			ApprovalStatus: AwaitingCollections,
		}
		if req.Comments != "" {
			note.RequestComments = &req.Comments
		}
		note.Stamp(userID, now)
		id, err := tx.InsertRequest(ctx, note)
		if err != nil {
			return fmt.Errorf("insert credit note: %w", err)
		}
		noteID = id
		for _, line := range req.Lines {
			if err := tx.InsertLine(ctx, Line{
				RequestID: noteID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("insert credit note line: %w", err)
			}
		}

		sale.SaleStatus = sales.StatusCreditNotePending
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		return nil
	})
	if err != nil {
		s.report(ctx, "Request", err)
		return 0, err
	}
	return noteID, nil
}

// ApproveByCollections advances an awaiting note and mirrors the stage
// onto the sale. No stock or credit moves yet.
func (s *Service) ApproveByCollections(ctx context.Context, noteID int64, req StageRequest) error {
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := s.loadNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if note.ApprovalStatus != AwaitingCollections {
			return shared.E(shared.KindInvalidState, "credit note %d is not awaiting collections", noteID)
		}

		note.ApprovalStatus = ApprovedByCollections
		if req.Comments != "" {
			note.CollectionsComments = &req.Comments
		}
		note.Touch(userID, now)
		if err := tx.UpdateRequest(ctx, note); err != nil {
			return fmt.Errorf("update credit note: %w", err)
		}

		sale, err := tx.GetSaleForUpdate(ctx, note.SaleID)
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}
		if sale == nil {
			return shared.E(shared.KindNotFound, "sale %d not found", note.SaleID)
		}
		sale.SaleStatus = sales.StatusCreditNoteApproved
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		return nil
	})
	if err != nil {
		s.report(ctx, "ApproveByCollections", err)
	}
	return err
}

// ConfirmByWarehouse settles an approved note: the returned goods go back
// on the shelf, the note amount comes off the sale's pending balance and
// returns to both credit accounts.
func (s *Service) ConfirmByWarehouse(ctx context.Context, noteID int64, req StageRequest) error {
	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := s.loadNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if note.ApprovalStatus != ApprovedByCollections {
			return shared.E(shared.KindInvalidState, "credit note %d is not approved by collections", noteID)
		}

		productIDs := make([]int64, 0, len(note.Lines))
		for _, line := range note.Lines {
			productIDs = append(productIDs, line.ProductID)
		}
		items, err := tx.GetItemsForUpdate(ctx, productIDs)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		for _, line := range note.Lines {
			item, ok := items[line.ProductID]
			if !ok {
				return shared.E(shared.KindNotFound, "no inventory row for product %d", line.ProductID)
			}
			item.Restock(line.Quantity)
			item.Touch(userID, now)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("update item %d: %w", line.ProductID, err)
			}
		}

		sale, err := tx.GetSaleForUpdate(ctx, note.SaleID)
		if err != nil {
			return fmt.Errorf("load sale: %w", err)
		}
		if sale == nil {
			return shared.E(shared.KindNotFound, "sale %d not found", note.SaleID)
		}
		// The pending balance shrinks by the note total, floored at zero.
		sale.AmountPending = sale.AmountPending.Sub(note.Total)
		if sale.AmountPending.IsNegative() {
			sale.AmountPending = decimal.Zero
		}
		sale.SaleStatus = sales.StatusCreditNoteSettled
		sale.Touch(userID, now)
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}

		for _, target := range []struct {
			kind credit.AccountKind
			id   int64
		}{{credit.AccountClient, sale.ClientID}, {credit.AccountSeller, sale.SellerID}} {
			account, err := tx.GetAccountForUpdate(ctx, target.kind, target.id)
			if err != nil {
				return err
			}
			if account == nil {
				return shared.E(shared.KindNotFound, "%s account %d not found", target.kind, target.id)
			}
			account.Restore(note.Total)
			account.Touch(userID, now)
			if err := tx.UpdateAccount(ctx, account); err != nil {
				return fmt.Errorf("update %s account: %w", target.kind, err)
			}
		}

		note.ApprovalStatus = Settled
		if req.Comments != "" {
			note.WarehouseComments = &req.Comments
		}
		note.Touch(userID, now)
		if err := tx.UpdateRequest(ctx, note); err != nil {
			return fmt.Errorf("update credit note: %w", err)
		}
		return nil
	})
	if err != nil {
		s.report(ctx, "ConfirmByWarehouse", err)
	}
	return err
}

// ListByStatus lists notes in one approval stage.
func (s *Service) ListByStatus(ctx context.Context, status ApprovalStatus) ([]Request, error) {
	notes, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, shared.Infra(err, "list credit notes")
	}
	return notes, nil
}

// Get returns one note with its lines.
func (s *Service) Get(ctx context.Context, noteID int64) (*Request, error) {
	note, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return nil, shared.Infra(err, "load credit note")
	}
	if note == nil {
		return nil, shared.E(shared.KindNotFound, "credit note %d not found", noteID)
	}
	return note, nil
}

func (s *Service) loadNote(ctx context.Context, tx TxRepository, noteID int64) (*Request, error) {
	note, err := tx.GetRequestForUpdate(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load credit note: %w", err)
	}
	if note == nil {
		return nil, shared.E(shared.KindNotFound, "credit note %d not found", noteID)
	}
	lines, err := tx.GetRequestLines(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load credit note lines: %w", err)
	}
	note.Lines = lines
	return note, nil
}

func (s *Service) report(ctx context.Context, action string, err error) {
	if s.events == nil || shared.KindOf(err) != shared.KindInfrastructure {
		return
	}
	_ = s.events.Record(ctx, shared.EventLog{
		Module:  "creditnote",
		Action:  action,
		Message: err.Error(),
		UserID:  shared.ActorFromContext(ctx),
	})
}
