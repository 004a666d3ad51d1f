package shared

import "time"

// RowMeta carries the bookkeeping columns every mutable entity embeds.
// Status is the row soft-delete flag (1 = active), not a lifecycle state.
type RowMeta struct {
	CreatedBy int64
	CreatedAt time.Time
	UpdatedBy int64
	UpdatedAt time.Time
	Status    int16
}

// Stamp fills the creation columns.
func (m *RowMeta) Stamp(userID int64, at time.Time) {
	m.CreatedBy = userID
	m.CreatedAt = at
	m.UpdatedBy = userID
	m.UpdatedAt = at
	m.Status = 1
}

// Touch updates the modification columns.
func (m *RowMeta) Touch(userID int64, at time.Time) {
	m.UpdatedBy = userID
	m.UpdatedAt = at
}
