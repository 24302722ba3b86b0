// Package evidence implements the append-only evidence ledger: immutable,
// scoped records supporting or refuting claims, with a fixed precedence
// ladder for conflict resolution.
package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/store"
)

// Ledger records evidence items and answers claim queries. Every Record call
// appends to the evidence log; nothing is mutated in place, which keeps
// replay deterministic.
type Ledger struct {
	DB   *sql.DB
	Repo *store.EvidenceRepo

	// now is swappable for tests.
	now func() time.Time
}

// NewLedger creates a ledger over the given database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{
		DB:   db,
		Repo: &store.EvidenceRepo{},
		now:  time.Now,
	}
}

// Record appends an evidence item and returns its ID. An empty ID is
// assigned; a populated ID is kept so callers can use stable references.
func (l *Ledger) Record(ctx context.Context, item domain.EvidenceItem) (string, error) {
	if err := validateItem(item); err != nil {
		return "", err
	}
	if item.ID == "" {
		item.ID = "ev-" + uuid.NewString()
	}
	item.RecordedAtUnix = l.now().Unix()

	seq, err := l.Repo.NextSeqNo(ctx, l.DB, item.Scope)
	if err != nil {
		return "", err
	}
	item.SeqNo = seq

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := l.Repo.InsertTx(ctx, tx, item); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit evidence: %w", err)
	}
	return item.ID, nil
}

// Supersede records a replacement item referencing the old one and marks the
// old item superseded. The old item stays in the log; evidence is history.
func (l *Ledger) Supersede(ctx context.Context, oldID string, item domain.EvidenceItem) (string, error) {
	old, err := l.Repo.GetByID(ctx, l.DB, oldID)
	if err != nil {
		return "", err
	}
	if old.Superseded {
		return "", domain.ErrSupersededTarget
	}
	if old.Scope != item.Scope {
		return "", domain.ErrEvidenceScope
	}
	if err := validateItem(item); err != nil {
		return "", err
	}

	if item.ID == "" {
		item.ID = "ev-" + uuid.NewString()
	}
	item.SupersedesID = oldID
	item.RecordedAtUnix = l.now().Unix()

	seq, err := l.Repo.NextSeqNo(ctx, l.DB, item.Scope)
	if err != nil {
		return "", err
	}
	item.SeqNo = seq

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := l.Repo.MarkSupersededTx(ctx, tx, oldID); err != nil {
		return "", err
	}
	if err := l.Repo.InsertTx(ctx, tx, item); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit supersede: %w", err)
	}
	return item.ID, nil
}

// Query answers whether a claim is provable within a scope. Superseded items
// never satisfy a claim, and evidence from a different scope is invisible by
// construction of the underlying query.
//
// Ranking on conflict follows the fixed ladder (build/config > code usage >
// tests > CI > docs > free text): a refutation only defeats support of lower
// rank; at lower rank it is recorded as a conflict but never overrides.
func (l *Ledger) Query(ctx context.Context, claimKind string, scope domain.Scope) (domain.ClaimAnswer, error) {
	if claimKind == "" {
		return domain.ClaimAnswer{}, domain.ErrClaimKindEmpty
	}

	all, err := l.Repo.ListByClaim(ctx, l.DB, claimKind, scope)
	if err != nil {
		return domain.ClaimAnswer{}, err
	}

	var live []domain.EvidenceItem
	for _, item := range all {
		if !item.Superseded {
			live = append(live, item)
		}
	}
	return judge(live), nil
}

// judge computes the claim status from live, in-scope items.
func judge(items []domain.EvidenceItem) domain.ClaimAnswer {
	if len(items) == 0 {
		return domain.ClaimAnswer{Status: domain.ClaimNotVerified}
	}

	// Highest rank first, then append order for stability.
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := domain.KindRank(items[i].Kind), domain.KindRank(items[j].Kind)
		if ri != rj {
			return ri > rj
		}
		return items[i].SeqNo < items[j].SeqNo
	})

	var supports, partials, refutes []domain.EvidenceItem
	for _, item := range items {
		switch item.Outcome {
		case domain.OutcomeSupports:
			supports = append(supports, item)
		case domain.OutcomeSupportsPartial:
			partials = append(partials, item)
		case domain.OutcomeRefutes:
			refutes = append(refutes, item)
		}
	}

	refuteRank := 0
	if len(refutes) > 0 {
		refuteRank = domain.KindRank(refutes[0].Kind)
	}

	// Full support wins when it strictly outranks every refutation.
	if len(supports) > 0 && domain.KindRank(supports[0].Kind) > refuteRank {
		answer := domain.ClaimAnswer{Status: domain.ClaimVerified, Items: supports}
		for _, r := range refutes {
			answer.Conflicts = append(answer.Conflicts, domain.EvidenceConflict{
				WinnerID: supports[0].ID,
				LoserID:  r.ID,
				Note:     fmt.Sprintf("%s refutation outranked by %s support", r.Kind, supports[0].Kind),
			})
		}
		return answer
	}

	// Refutation at equal or higher rank means the claim is not unambiguously
	// supported.
	if len(refutes) > 0 {
		answer := domain.ClaimAnswer{Status: domain.ClaimNotVerified, Items: refutes}
		for _, s := range supports {
			answer.Conflicts = append(answer.Conflicts, domain.EvidenceConflict{
				WinnerID: refutes[0].ID,
				LoserID:  s.ID,
				Note:     fmt.Sprintf("%s support defeated by %s refutation", s.Kind, refutes[0].Kind),
			})
		}
		return answer
	}

	if len(supports) > 0 {
		return domain.ClaimAnswer{Status: domain.ClaimVerified, Items: supports}
	}
	if len(partials) > 0 {
		return domain.ClaimAnswer{Status: domain.ClaimPartial, Items: partials}
	}
	return domain.ClaimAnswer{Status: domain.ClaimNotVerified}
}

func validateItem(item domain.EvidenceItem) error {
	if item.ClaimKind == "" {
		return domain.ErrClaimKindEmpty
	}
	if item.Scope.TicketID == "" || item.Scope.SessionRunID == "" {
		return domain.ErrEvidenceScope
	}
	switch item.Outcome {
	case domain.OutcomeSupports, domain.OutcomeSupportsPartial, domain.OutcomeRefutes:
	default:
		return domain.NewEngineError(domain.ErrEvidenceNotFound.Code,
			fmt.Sprintf("unknown evidence outcome %q", item.Outcome))
	}
	return nil
}
