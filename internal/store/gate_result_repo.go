package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain"
)

// GateResultRepo handles persistence for computed gate results.
type GateResultRepo struct{}

// SaveTx inserts a gate result within an existing transaction. Results are
// never updated in place; re-evaluation appends a new row and the latest row
// wins.
func (r *GateResultRepo) SaveTx(ctx context.Context, tx *sql.Tx, sessionID string, res domain.GateResult) error {
	trace, err := json.Marshal(res.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	const q = `INSERT INTO gate_results (session_id, gate_id, decision, score, max_score, trace_json, plan_hash, evaluated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		sessionID,
		string(res.GateID),
		string(res.Decision),
		res.Score,
		res.MaxScore,
		string(trace),
		res.PlanHash,
		res.EvaluatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("save gate result: %w", err)
	}
	return nil
}

// GetLatest returns the most recent result for a gate within a session.
// Returns nil if the gate has never been evaluated.
func (r *GateResultRepo) GetLatest(ctx context.Context, db *sql.DB, sessionID string, gateID domain.GateID) (*domain.GateResult, error) {
	const q = `SELECT gate_id, decision, score, max_score, trace_json, plan_hash, evaluated_at
FROM gate_results
WHERE session_id = ? AND gate_id = ?
ORDER BY id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, sessionID, string(gateID))

	var res domain.GateResult
	var gate, decision, traceJSON string
	err := row.Scan(&gate, &decision, &res.Score, &res.MaxScore, &traceJSON, &res.PlanHash, &res.EvaluatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest gate result: %w", err)
	}
	res.GateID = domain.GateID(gate)
	res.Decision = domain.GateDecision(decision)
	if err := json.Unmarshal([]byte(traceJSON), &res.Trace); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	return &res, nil
}

// Latest returns the most recent result per gate for a session.
func (r *GateResultRepo) Latest(ctx context.Context, db *sql.DB, sessionID string) (map[domain.GateID]domain.GateResult, error) {
	const q = `SELECT gate_id, decision, score, max_score, trace_json, plan_hash, evaluated_at
FROM gate_results
WHERE session_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list gate results: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.GateID]domain.GateResult)
	for rows.Next() {
		var res domain.GateResult
		var gate, decision, traceJSON string
		if err := rows.Scan(&gate, &decision, &res.Score, &res.MaxScore, &traceJSON, &res.PlanHash, &res.EvaluatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan gate result: %w", err)
		}
		res.GateID = domain.GateID(gate)
		res.Decision = domain.GateDecision(decision)
		if err := json.Unmarshal([]byte(traceJSON), &res.Trace); err != nil {
			return nil, fmt.Errorf("unmarshal trace: %w", err)
		}
		// Ascending scan: later rows for the same gate overwrite earlier ones.
		out[res.GateID] = res
	}
	return out, rows.Err()
}
