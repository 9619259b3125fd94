package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SettingRepo reads and writes the branding key/value table.
type SettingRepo struct{ db *sql.DB }

func NewSettingRepo(db *sql.DB) *SettingRepo { return &SettingRepo{db: db} }

// All returns every stored setting keyed by name.
func (r *SettingRepo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT setting_key, setting_value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var (
			k string
			v sql.NullString
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

// SaveAll upserts every pair in values in one transaction.
func (r *SettingRepo) SaveAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
			 ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value), updated_at = CURRENT_TIMESTAMP`,
			k, v); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
