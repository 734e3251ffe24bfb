package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row in audit_logs. ActorID 0 marks actions taken by
// scheduled jobs rather than a user.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends to the audit_logs table. Rows are never updated or
// deleted.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists one audit row. A zero At is stamped with the current UTC
// time.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("shared: audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("shared: audit log requires action, entity and entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	meta := log.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("shared: marshal audit meta: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
