package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain"
)

// RuleRepo handles the append-only business-rule register. A rule's stable ID
// persists across status changes; every change is a new row and the latest
// row per rule ID is authoritative.
type RuleRepo struct{}

// Append inserts a rule record.
func (r *RuleRepo) Append(ctx context.Context, db *sql.DB, rec domain.RuleRecord) error {
	const q = `INSERT INTO rule_register (rule_id, status, body, created_at)
VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.RuleID,
		string(rec.Status),
		rec.Body,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append rule: %w", err)
	}
	return nil
}

// Current returns the latest record for each rule ID, ordered by rule ID.
func (r *RuleRepo) Current(ctx context.Context, db *sql.DB) ([]domain.RuleRecord, error) {
	const q = `SELECT id, rule_id, status, body, created_at
FROM rule_register
WHERE id IN (SELECT MAX(id) FROM rule_register GROUP BY rule_id)
ORDER BY rule_id ASC`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var records []domain.RuleRecord
	for rows.Next() {
		var rec domain.RuleRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.RuleID, &status, &rec.Body, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rec.Status = domain.RuleStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// History returns every record for one rule ID in append order.
func (r *RuleRepo) History(ctx context.Context, db *sql.DB, ruleID string) ([]domain.RuleRecord, error) {
	const q = `SELECT id, rule_id, status, body, created_at
FROM rule_register
WHERE rule_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, ruleID)
	if err != nil {
		return nil, fmt.Errorf("rule history: %w", err)
	}
	defer rows.Close()

	var records []domain.RuleRecord
	for rows.Next() {
		var rec domain.RuleRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.RuleID, &status, &rec.Body, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rec.Status = domain.RuleStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
