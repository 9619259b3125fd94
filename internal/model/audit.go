package model

import "time"

// AuditEntry is an append-only record in the `audit_log` table.  UserID is
// nil for actions without an authenticated actor.
type AuditEntry struct {
	ID         uint64    // audit_log.id
	UserID     *uint64   // audit_log.user_id (nullable)
	Action     string    // audit_log.action, e.g. "reservation.created"
	EntityType string    // audit_log.entity_type
	EntityID   string    // audit_log.entity_id
	Details    string    // audit_log.details (JSON)
	IPAddress  string    // audit_log.ip_address
	CreatedAt  time.Time // audit_log.created_at
}
