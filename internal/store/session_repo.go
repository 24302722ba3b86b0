package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain"
)

// SessionRepo handles persistence for SessionState records.
type SessionRepo struct{}

// CreateTx inserts a new session within an existing transaction.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, state domain.SessionState) error {
	const q = `INSERT INTO sessions (session_id, ticket_id, run_id, phase, mode, status, confidence, reason_code,
	plan_json, plan_hash, pinned_plan_hash, ruleset_hash, repo_facts_hash, manifests_hash,
	state_version, last_decision_seq, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		state.SessionID,
		state.Scope.TicketID,
		state.Scope.SessionRunID,
		string(state.Phase),
		string(state.Mode),
		string(state.Status),
		state.Confidence,
		string(state.ReasonCode),
		state.PlanJSON,
		state.PlanHash,
		state.PinnedPlanHash,
		state.Hashes.Ruleset,
		state.Hashes.RepoFacts,
		state.Hashes.Manifests,
		state.StateVersion,
		state.LastDecisionSeq,
		state.UpdatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateStateTx updates a session within a transaction using optimistic locking.
// The update only succeeds if the current state_version matches the expected version.
func (r *SessionRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, state domain.SessionState) error {
	const q = `UPDATE sessions SET
		phase = ?,
		mode = ?,
		status = ?,
		confidence = ?,
		reason_code = ?,
		plan_json = ?,
		plan_hash = ?,
		pinned_plan_hash = ?,
		state_version = state_version + 1,
		last_decision_seq = ?,
		updated_at_unix = ?
	WHERE session_id = ? AND state_version = ?`

	res, err := tx.ExecContext(ctx, q,
		string(state.Phase),
		string(state.Mode),
		string(state.Status),
		state.Confidence,
		string(state.ReasonCode),
		state.PlanJSON,
		state.PlanHash,
		state.PinnedPlanHash,
		state.LastDecisionSeq,
		state.UpdatedAtUnix,
		state.SessionID,
		state.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepo) GetByID(ctx context.Context, db *sql.DB, sessionID string) (*domain.SessionState, error) {
	const q = `SELECT session_id, ticket_id, run_id, phase, mode, status, confidence, reason_code,
	plan_json, plan_hash, pinned_plan_hash, ruleset_hash, repo_facts_hash, manifests_hash,
	state_version, last_decision_seq, updated_at_unix
FROM sessions WHERE session_id = ?`

	return scanSession(db.QueryRowContext(ctx, q, sessionID))
}

// GetByScope retrieves a session by its (ticketID, sessionRunID) pair.
func (r *SessionRepo) GetByScope(ctx context.Context, db *sql.DB, scope domain.Scope) (*domain.SessionState, error) {
	const q = `SELECT session_id, ticket_id, run_id, phase, mode, status, confidence, reason_code,
	plan_json, plan_hash, pinned_plan_hash, ruleset_hash, repo_facts_hash, manifests_hash,
	state_version, last_decision_seq, updated_at_unix
FROM sessions WHERE ticket_id = ? AND run_id = ?`

	return scanSession(db.QueryRowContext(ctx, q, scope.TicketID, scope.SessionRunID))
}

func scanSession(row *sql.Row) (*domain.SessionState, error) {
	var s domain.SessionState
	var phase, mode, status, reason string
	err := row.Scan(&s.SessionID, &s.Scope.TicketID, &s.Scope.SessionRunID,
		&phase, &mode, &status, &s.Confidence, &reason,
		&s.PlanJSON, &s.PlanHash, &s.PinnedPlanHash,
		&s.Hashes.Ruleset, &s.Hashes.RepoFacts, &s.Hashes.Manifests,
		&s.StateVersion, &s.LastDecisionSeq, &s.UpdatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Phase = domain.Phase(phase)
	s.Mode = domain.Mode(mode)
	s.Status = domain.SessionStatus(status)
	s.ReasonCode = domain.ReasonCode(reason)
	return &s, nil
}
