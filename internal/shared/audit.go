package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeSet is an explicit before/after snapshot of a mutated entity.
// Mutating operations build it by hand; there is no reflection over entity
// graphs.
type ChangeSet struct {
	Entity   string
	EntityID string
	ActorID  int64
	Before   map[string]any
	After    map[string]any
	At       time.Time
}

// AuditLogger writes change sets into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the change set.
func (l *AuditLogger) Record(ctx context.Context, cs ChangeSet) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if cs.Entity == "" || cs.EntityID == "" {
		return errors.New("audit record requires entity/entity_id")
	}
	beforeJSON, err := json.Marshal(cs.Before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(cs.After)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (correlation_id, actor_id, entity, entity_id, before, after, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		uuid.New(), cs.ActorID, cs.Entity, cs.EntityID, beforeJSON, afterJSON, nullTime(cs.At))
	return err
}
