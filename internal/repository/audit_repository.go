package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/room-reservation/internal/model"
)

// AuditRepo appends to the audit_log table.  Rows are never updated.
type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Append stores e.  CreatedAt is taken from e so replayed events keep their
// original timestamp.
func (r *AuditRepo) Append(ctx context.Context, e model.AuditEntry) error {
	var uid sql.NullInt64
	if e.UserID != nil {
		uid = sql.NullInt64{Int64: int64(*e.UserID), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action, entity_type, entity_id, details, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uid, e.Action, e.EntityType, nullString(e.EntityID), nullString(e.Details), nullString(e.IPAddress), e.CreatedAt)
	return err
}
