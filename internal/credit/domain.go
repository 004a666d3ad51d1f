// Package credit holds the per-client and per-seller credit account ledger.
// Both ledgers move in lockstep on every sale, payment and reversal; see
// DESIGN.md for the open product question on the seller ledger.
package credit

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-dist/meridian/internal/shared"
)

// AccountKind distinguishes the two mirrored ledgers.
type AccountKind string

const (
	// AccountClient is a client credit account.
	AccountClient AccountKind = "CLIENT"
	// AccountSeller is a seller credit account.
	AccountSeller AccountKind = "SELLER"
)

// Account is a credit ceiling and the remaining capacity under it.
// Invariant: 0 <= AvailableCredit <= CreditLimit.
type Account struct {
	ID              int64
	Kind            AccountKind
	CreditLimit     decimal.Decimal
	AvailableCredit decimal.Decimal

	shared.RowMeta
}

// Debit consumes available credit, failing when capacity is insufficient.
func (a *Account) Debit(amount decimal.Decimal) error {
	if a.AvailableCredit.LessThan(amount) {
		return shared.E(shared.KindInsufficientResource,
			"%s account %d has insufficient credit", a.Kind, a.ID)
	}
	a.AvailableCredit = a.AvailableCredit.Sub(amount)
	return nil
}

// Restore returns previously debited capacity to the account.
func (a *Account) Restore(amount decimal.Decimal) {
	a.AvailableCredit = a.AvailableCredit.Add(amount)
}
