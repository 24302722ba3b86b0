package store

import (
	"context"
	"errors"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
)

func TestDecisionRepo_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &DecisionRepo{}

	for seq := int64(1); seq <= 3; seq++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}
		rec := domain.DecisionRecord{
			SessionID:   "sess-1",
			SeqNo:       seq,
			Phase:       domain.PhaseBootstrap,
			EventType:   "phase_transition",
			PayloadJSON: "{}",
			CreatedAt:   1700000000 + seq,
		}
		if err := repo.AppendTx(ctx, tx, rec); err != nil {
			tx.Rollback()
			t.Fatalf("AppendTx seq %d: %v", seq, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	all, err := repo.ListBySession(ctx, db, "sess-1", 0)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, d := range all {
		if d.SeqNo != int64(i+1) {
			t.Errorf("record %d SeqNo = %d, want %d", i, d.SeqNo, i+1)
		}
	}

	since, err := repo.ListBySession(ctx, db, "sess-1", 2)
	if err != nil {
		t.Fatalf("ListBySession since 2: %v", err)
	}
	if len(since) != 1 || since[0].SeqNo != 3 {
		t.Errorf("since 2 = %+v, want single record with seq 3", since)
	}
}

func TestDecisionRepo_DuplicateSeq(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &DecisionRepo{}

	rec := domain.DecisionRecord{
		SessionID: "sess-1", SeqNo: 1, Phase: domain.PhaseBootstrap,
		EventType: "session_started", PayloadJSON: "{}", CreatedAt: 1700000000,
	}

	tx, _ := db.BeginTx(ctx, nil)
	if err := repo.AppendTx(ctx, tx, rec); err != nil {
		t.Fatalf("AppendTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2, _ := db.BeginTx(ctx, nil)
	err := repo.AppendTx(ctx, tx2, rec)
	tx2.Rollback()
	if !errors.Is(err, domain.ErrDuplicateDecision) {
		t.Errorf("duplicate append error = %v, want ErrDuplicateDecision", err)
	}
}
