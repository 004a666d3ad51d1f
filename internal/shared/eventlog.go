package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLog is the record the logging collaborator accepts. Services report
// caught failures through it; recording errors are never fatal to the
// operation that triggered them.
type EventLog struct {
	Module         string
	Action         string
	Message        string
	InnerException string
	UserID         int64
	At             time.Time
}

// EventRecorder is the port services log through.
type EventRecorder interface {
	Record(ctx context.Context, log EventLog) error
}

// PGEventRecorder writes event logs into event_logs.
type PGEventRecorder struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewPGEventRecorder returns a pgx-backed recorder.
func NewPGEventRecorder(pool *pgxpool.Pool, clock Clock) *PGEventRecorder {
	return &PGEventRecorder{pool: pool, clock: clock}
}

// Record persists the log entry.
func (r *PGEventRecorder) Record(ctx context.Context, log EventLog) error {
	if r == nil {
		return errors.New("event recorder not initialised")
	}
	if log.Module == "" || log.Action == "" {
		return errors.New("event log requires module/action")
	}
	at := log.At
	if at.IsZero() && r.clock != nil {
		at = r.clock.Now()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO event_logs (module, action, message, inner_exception, user_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.Module, log.Action, log.Message, log.InnerException, log.UserID, nullTime(at))
	return err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
