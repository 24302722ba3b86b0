package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain"
)

// EvidenceRepo handles persistence for the append-only evidence log.
// Rows are never deleted; superseding flips a flag and inserts a new row.
type EvidenceRepo struct{}

// NextSeqNo returns the next append sequence number for a scope.
// Appends within one scope are totally ordered by this number.
func (r *EvidenceRepo) NextSeqNo(ctx context.Context, db *sql.DB, scope domain.Scope) (int64, error) {
	const q = `SELECT COALESCE(MAX(seq_no), 0) FROM evidence_log WHERE ticket_id = ? AND run_id = ?`
	var max int64
	if err := db.QueryRowContext(ctx, q, scope.TicketID, scope.SessionRunID).Scan(&max); err != nil {
		return 0, fmt.Errorf("next evidence seq: %w", err)
	}
	return max + 1, nil
}

// InsertTx appends an evidence item within an existing transaction.
func (r *EvidenceRepo) InsertTx(ctx context.Context, tx *sql.Tx, item domain.EvidenceItem) error {
	const q = `INSERT INTO evidence_log (evidence_id, claim_kind, kind, source, outcome, snippet_ref,
	ticket_id, run_id, supersedes_id, superseded, seq_no, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		item.ID,
		item.ClaimKind,
		string(item.Kind),
		item.Source,
		string(item.Outcome),
		item.SnippetRef,
		item.Scope.TicketID,
		item.Scope.SessionRunID,
		item.SupersedesID,
		item.SeqNo,
		item.RecordedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// MarkSupersededTx flips the superseded flag on an existing item. This is the
// only mutation the evidence log permits.
func (r *EvidenceRepo) MarkSupersededTx(ctx context.Context, tx *sql.Tx, evidenceID string) error {
	const q = `UPDATE evidence_log SET superseded = 1 WHERE evidence_id = ? AND superseded = 0`
	res, err := tx.ExecContext(ctx, q, evidenceID)
	if err != nil {
		return fmt.Errorf("mark superseded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrSupersededTarget
	}
	return nil
}

// GetByID retrieves a single evidence item.
func (r *EvidenceRepo) GetByID(ctx context.Context, db *sql.DB, evidenceID string) (*domain.EvidenceItem, error) {
	const q = `SELECT evidence_id, claim_kind, kind, source, outcome, snippet_ref,
	ticket_id, run_id, supersedes_id, superseded, seq_no, recorded_at
FROM evidence_log WHERE evidence_id = ?`

	row := db.QueryRowContext(ctx, q, evidenceID)
	item, err := scanEvidence(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEvidenceNotFound
		}
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return item, nil
}

// ListByClaim returns all items for a claim kind within a scope, ordered by
// append sequence. Scope filtering happens here so evidence from another
// (ticketID, sessionRunID) pair can never leak into a query result.
func (r *EvidenceRepo) ListByClaim(ctx context.Context, db *sql.DB, claimKind string, scope domain.Scope) ([]domain.EvidenceItem, error) {
	const q = `SELECT evidence_id, claim_kind, kind, source, outcome, snippet_ref,
	ticket_id, run_id, supersedes_id, superseded, seq_no, recorded_at
FROM evidence_log
WHERE claim_kind = ? AND ticket_id = ? AND run_id = ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, claimKind, scope.TicketID, scope.SessionRunID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var items []domain.EvidenceItem
	for rows.Next() {
		item, err := scanEvidence(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanEvidence(scan func(dest ...any) error) (*domain.EvidenceItem, error) {
	var e domain.EvidenceItem
	var kind, outcome string
	var superseded int
	err := scan(&e.ID, &e.ClaimKind, &kind, &e.Source, &outcome, &e.SnippetRef,
		&e.Scope.TicketID, &e.Scope.SessionRunID, &e.SupersedesID, &superseded,
		&e.SeqNo, &e.RecordedAtUnix)
	if err != nil {
		return nil, err
	}
	e.Kind = domain.EvidenceKind(kind)
	e.Outcome = domain.EvidenceOutcome(outcome)
	e.Superseded = superseded != 0
	return &e, nil
}
