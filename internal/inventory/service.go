package inventory

import (
	"context"
	"fmt"

	"github.com/meridian-dist/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStock(ctx context.Context) ([]StockRow, error)
}

// Service coordinates warehouse entries and stock reads. Reservation and
// pick mutations live on Item and run inside the sale transactions that
// own them.
type Service struct {
	repo   RepositoryPort
	events shared.EventRecorder
	clock  shared.Clock
}

// NewService builds Service.
func NewService(repo RepositoryPort, events shared.EventRecorder, clock shared.Clock) *Service {
	return &Service{repo: repo, events: events, clock: clock}
}

// PostEntry receives goods: every line increases on-hand stock and the
// derived real stock, atomically with the entry rows.
func (s *Service) PostEntry(ctx context.Context, input EntryInput) (int64, error) {
	if input.SupplierID == 0 {
		return 0, shared.E(shared.KindValidation, "supplier required")
	}
	if len(input.Lines) == 0 {
		return 0, shared.E(shared.KindValidation, "entry requires at least one line")
	}
	for _, line := range input.Lines {
		if line.ProductID == 0 {
			return 0, shared.E(shared.KindValidation, "entry line requires a product")
		}
		if line.Quantity <= 0 {
			return 0, shared.E(shared.KindValidation, "entry quantity must be positive")
		}
		if line.UnitCost.IsNegative() {
			return 0, shared.E(shared.KindValidation, "entry unit cost must be >= 0")
		}
	}

	userID := shared.ActorFromContext(ctx)
	now := s.clock.Now()

	var entryID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry := Entry{
			SupplierID:    input.SupplierID,
			InvoiceNumber: input.InvoiceNumber,
			EntryDate:     now,
			Comments:      input.Comments,
		}
		entry.Stamp(userID, now)
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		entryID = id

		productIDs := make([]int64, 0, len(input.Lines))
		for _, line := range input.Lines {
			productIDs = append(productIDs, line.ProductID)
		}
		items, err := tx.GetItemsForUpdate(ctx, productIDs)
		if err != nil {
			return fmt.Errorf("lock items: %w", err)
		}

		for _, line := range input.Lines {
			item, ok := items[line.ProductID]
			if !ok {
				return shared.E(shared.KindNotFound, "no inventory row for product %d", line.ProductID)
			}
			item.Restock(line.Quantity)
			at := now
			item.LastEntryAt = &at
			item.Touch(userID, now)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("update item %d: %w", line.ProductID, err)
			}

			row := EntryLine{
				EntryID:   entryID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitCost:  line.UnitCost,
				Lot:       line.Lot,
				ExpiresAt: line.ExpiresAt,
			}
			if err := tx.InsertEntryLine(ctx, row); err != nil {
				return fmt.Errorf("insert entry line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.report(ctx, "PostEntry", err, userID)
		return 0, err
	}
	return entryID, nil
}

// Stock lists the latest committed stock positions.
func (s *Service) Stock(ctx context.Context) ([]StockRow, error) {
	rows, err := s.repo.ListStock(ctx)
	if err != nil {
		s.report(ctx, "Stock", err, shared.ActorFromContext(ctx))
		return nil, shared.Infra(err, "list stock")
	}
	return rows, nil
}

func (s *Service) report(ctx context.Context, action string, err error, userID int64) {
	if s.events == nil || shared.KindOf(err) != shared.KindInfrastructure {
		return
	}
	_ = s.events.Record(ctx, shared.EventLog{
		Module:  "inventory",
		Action:  action,
		Message: err.Error(),
		UserID:  userID,
	})
}
