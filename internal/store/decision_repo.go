package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gatewright/gatewright/internal/domain"
)

// DecisionRepo handles persistence for the append-only decision log.
type DecisionRepo struct{}

// AppendTx inserts a decision record within an existing transaction.
// Sequence numbers are unique per session; a duplicate is a contract violation.
func (r *DecisionRepo) AppendTx(ctx context.Context, tx *sql.Tx, rec domain.DecisionRecord) error {
	const q = `INSERT INTO decision_log (session_id, seq_no, phase, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		rec.SessionID,
		rec.SeqNo,
		string(rec.Phase),
		rec.EventType,
		rec.PayloadJSON,
		rec.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.ErrDuplicateDecision
		}
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// ListBySession returns decision records for a session with sequence numbers
// greater than sinceSeq, ordered by sequence number ascending.
func (r *DecisionRepo) ListBySession(ctx context.Context, db *sql.DB, sessionID string, sinceSeq int64) ([]domain.DecisionRecord, error) {
	const q = `SELECT id, session_id, seq_no, phase, event_type, payload_json, created_at
FROM decision_log
WHERE session_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, sessionID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var d domain.DecisionRecord
		var phase string
		if err := rows.Scan(&d.ID, &d.SessionID, &d.SeqNo, &phase, &d.EventType, &d.PayloadJSON, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Phase = domain.Phase(phase)
		records = append(records, d)
	}
	return records, rows.Err()
}
