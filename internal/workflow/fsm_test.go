package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/store"
)

// testGateSpecs is a minimal gate set: one claim-backed criterion per gate,
// so tests control evidence completeness with four claims.
func testGateSpecs() []domain.GateSpec {
	return []domain.GateSpec{
		{ID: domain.GateArchitecture, Phase: domain.PhaseArchitectureGate,
			Criteria: []domain.Criterion{{ID: "arch", ClaimKind: "architecture-decision", Weight: 1}}},
		{ID: domain.GateTestQuality, Phase: domain.PhaseTestQualityGate,
			Criteria: []domain.Criterion{{ID: "tests", ClaimKind: "tests-green", Weight: 1}}},
		{ID: domain.GateCompliance, Phase: domain.PhaseComplianceGate,
			Criteria: []domain.Criterion{{ID: "rules", ClaimKind: "rules-applied", Weight: 1}}},
		{ID: domain.GateImplementation, Phase: domain.PhaseImplementationGate,
			Criteria: []domain.Criterion{{ID: "build", ClaimKind: "build-clean", Weight: 1}}},
	}
}

var testClaims = []string{"architecture-decision", "tests-green", "rules-applied", "build-clean"}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry, err := gate.NewRegistry(testGateSpecs())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewEngine(db, registry)
}

func startInputs() (domain.Scope, domain.RepoFacts, []domain.AddonManifest, string, domain.Ruleset) {
	scope := domain.Scope{TicketID: "TCK-1", SessionRunID: "run-1"}
	facts := domain.RepoFacts{Signals: []string{"go.mod"}, Hash: "facts-1"}
	manifests := []domain.AddonManifest{
		{Key: "core-workflow", Class: domain.ClassAdvisory, Tier: domain.TierCore},
	}
	rs := domain.Ruleset{Profile: "backend-go", Hash: "ruleset-1"}
	return scope, facts, manifests, "manifests-1", rs
}

func mustStart(t *testing.T, eng *Engine) *domain.SessionState {
	t.Helper()
	scope, facts, manifests, mh, rs := startInputs()
	res, err := eng.StartSession(context.Background(), scope, facts, manifests, mh, rs)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return &res.State
}

func recordClaim(t *testing.T, eng *Engine, scope domain.Scope, claim string, outcome domain.EvidenceOutcome) {
	t.Helper()
	_, err := eng.Ledger.Record(context.Background(), domain.EvidenceItem{
		ClaimKind: claim, Kind: domain.KindTest, Source: "test",
		Outcome: outcome, Scope: scope,
	})
	if err != nil {
		t.Fatalf("record %s: %v", claim, err)
	}
}

func TestEngine_StartSession(t *testing.T) {
	eng := newTestEngine(t)
	state := mustStart(t, eng)

	if state.Phase != domain.PhaseBootstrap {
		t.Errorf("Phase = %q, want bootstrap", state.Phase)
	}
	if state.Mode != domain.ModeNormal {
		t.Errorf("Mode = %q, want NORMAL", state.Mode)
	}
	if state.PlanHash == "" || state.PlanJSON == "" {
		t.Error("activation plan not recorded")
	}
	if state.Hashes.Ruleset != "ruleset-1" || state.Hashes.RepoFacts != "facts-1" {
		t.Errorf("input hashes = %+v", state.Hashes)
	}

	// Persisted state matches the returned state.
	got, err := eng.Sessions.GetByID(context.Background(), eng.DB, state.SessionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PlanHash != state.PlanHash {
		t.Errorf("persisted PlanHash = %q, want %q", got.PlanHash, state.PlanHash)
	}
}

func TestEngine_StartSession_DuplicateScope(t *testing.T) {
	eng := newTestEngine(t)
	mustStart(t, eng)

	scope, facts, manifests, mh, rs := startInputs()
	_, err := eng.StartSession(context.Background(), scope, facts, manifests, mh, rs)
	if !errors.Is(err, domain.ErrDuplicateSession) {
		t.Errorf("error = %v, want ErrDuplicateSession", err)
	}
}

func TestEngine_StartSession_LookupFailureSurfaces(t *testing.T) {
	eng := newTestEngine(t)
	eng.DB.Close()

	scope, facts, manifests, mh, rs := startInputs()
	_, err := eng.StartSession(context.Background(), scope, facts, manifests, mh, rs)
	if err == nil {
		t.Fatal("StartSession succeeded on a closed store")
	}
	if errors.Is(err, domain.ErrDuplicateSession) {
		t.Errorf("error = %v, want the store failure, not ErrDuplicateSession", err)
	}
}

func TestEngine_StartSession_ActivationConflictBlocks(t *testing.T) {
	eng := newTestEngine(t)
	scope, facts, _, mh, rs := startInputs()

	manifests := []domain.AddonManifest{
		{Key: "rest-api", Class: domain.ClassAdvisory, Tier: domain.TierAddon,
			OwnsSurfaces: []string{"api/users"}},
		{Key: "graphql-api", Class: domain.ClassAdvisory, Tier: domain.TierAddon,
			OwnsSurfaces: []string{"api/users"}},
	}

	res, err := eng.StartSession(context.Background(), scope, facts, manifests, mh, rs)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if res.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want BLOCKED", res.Status)
	}
	if !res.State.Blocked() {
		t.Error("session not in BLOCKED mode")
	}
	want := domain.ReasonAddonConflict.WithSubject("api/users")
	if res.State.ReasonCode != want {
		t.Errorf("ReasonCode = %q, want %q", res.State.ReasonCode, want)
	}

	// An activation-rooted block does not self-heal on the next turn.
	turn, err := eng.Advance(context.Background(), res.State.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"}, TurnInputs{DomainSignalDensity: 100})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if turn.Status != domain.StatusBlocked || turn.State.ReasonCode != want {
		t.Errorf("turn after block = %q/%q, want BLOCKED with same reason", turn.Status, turn.State.ReasonCode)
	}
}

func TestEngine_Advance_NoEvidenceBlocksLowConfidence(t *testing.T) {
	eng := newTestEngine(t)
	state := mustStart(t, eng)

	res, err := eng.Advance(context.Background(), state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"}, TurnInputs{DomainSignalDensity: 100})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want BLOCKED", res.Status)
	}
	if res.State.ReasonCode != domain.ReasonLowConfidence {
		t.Errorf("ReasonCode = %q, want BLOCKED-LOW-CONFIDENCE", res.State.ReasonCode)
	}
	// The blocked invariant: BLOCKED mode and a reason code travel together.
	if res.State.Mode != domain.ModeBlocked {
		t.Errorf("Mode = %q, want BLOCKED", res.State.Mode)
	}
}

func TestEngine_Advance_DraftModeHolds(t *testing.T) {
	eng := newTestEngine(t)
	state := mustStart(t, eng)

	// Two of four claims verified: completeness 50, draft band.
	recordClaim(t, eng, state.Scope, "architecture-decision", domain.OutcomeSupports)
	recordClaim(t, eng, state.Scope, "tests-green", domain.OutcomeSupports)

	res, err := eng.Advance(context.Background(), state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"}, TurnInputs{DomainSignalDensity: 100})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Status != domain.StatusWarn {
		t.Errorf("Status = %q, want WARN", res.Status)
	}
	if res.State.Mode != domain.ModeDraft {
		t.Errorf("Mode = %q, want DRAFT", res.State.Mode)
	}
	if res.State.Phase != domain.PhaseBootstrap {
		t.Errorf("Phase = %q, want bootstrap (draft mode must not advance)", res.State.Phase)
	}
	if res.State.Confidence != 50 {
		t.Errorf("Confidence = %d, want 50", res.State.Confidence)
	}
}

func TestEngine_Advance_GateFailMissingEvidence(t *testing.T) {
	eng := newTestEngine(t)
	state := mustStart(t, eng)

	// Confidence boosted past the normal floor, but the architecture claim
	// has no evidence at all: the gate must fail as missing evidence.
	res, err := eng.Advance(context.Background(), state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"},
		TurnInputs{DomainSignalDensity: 100, Deltas: []int{95}})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want BLOCKED", res.Status)
	}
	want := domain.ReasonMissingEvidence.WithSubject(string(domain.GateArchitecture))
	if res.State.ReasonCode != want {
		t.Errorf("ReasonCode = %q, want %q", res.State.ReasonCode, want)
	}
	if res.State.Phase != domain.PhaseArchitectureGate {
		t.Errorf("Phase = %q, want architecture-gate", res.State.Phase)
	}
}

func TestEngine_Advance_GateFailRefuted(t *testing.T) {
	eng := newTestEngine(t)
	state := mustStart(t, eng)

	recordClaim(t, eng, state.Scope, "architecture-decision", domain.OutcomeRefutes)

	res, err := eng.Advance(context.Background(), state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"},
		TurnInputs{DomainSignalDensity: 100, Deltas: []int{95}})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	want := domain.ReasonGateFailed.WithSubject(string(domain.GateArchitecture))
	if res.State.ReasonCode != want {
		t.Errorf("ReasonCode = %q, want %q", res.State.ReasonCode, want)
	}
}

func TestEngine_FullPathToReady(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	state := mustStart(t, eng)

	for _, claim := range testClaims {
		recordClaim(t, eng, state.Scope, claim, domain.OutcomeSupports)
	}

	trigger := domain.TransitionTrigger{Action: "advance", Actor: "test"}
	inputs := TurnInputs{DomainSignalDensity: 100}

	gates := []domain.GateID{
		domain.GateArchitecture,
		domain.GateTestQuality,
		domain.GateCompliance,
		domain.GateImplementation,
	}
	for _, gateID := range gates {
		res, err := eng.Advance(ctx, state.SessionID, trigger, inputs)
		if err != nil {
			t.Fatalf("Advance toward %s: %v", gateID, err)
		}
		if res.Pending == nil {
			t.Fatalf("no pending gate report at %s (status %s, reason %s)", gateID, res.Status, res.State.ReasonCode)
		}
		if res.Pending.Gate != gateID {
			t.Fatalf("pending gate = %q, want %q", res.Pending.Gate, gateID)
		}
		if res.Pending.Result.Decision != domain.GatePass {
			t.Fatalf("gate %s decision = %q, want pass", gateID, res.Pending.Result.Decision)
		}
		if res.State.Confidence != 100 || res.State.Mode != domain.ModeNormal {
			t.Fatalf("at %s confidence/mode = %d/%s, want 100/NORMAL", gateID, res.State.Confidence, res.State.Mode)
		}

		confirmed, err := eng.ConfirmGate(ctx, state.SessionID, gateID, "approve", "lead")
		if err != nil {
			t.Fatalf("ConfirmGate %s: %v", gateID, err)
		}
		if confirmed.State.PinnedPlanHash != state.PlanHash {
			t.Errorf("after %s PinnedPlanHash = %q, want %q", gateID, confirmed.State.PinnedPlanHash, state.PlanHash)
		}
	}

	final, err := eng.Sessions.GetByID(ctx, eng.DB, state.SessionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != domain.StatusReady {
		t.Errorf("Status = %q, want ready", final.Status)
	}
	if final.Phase != domain.PhaseImplementationGate {
		t.Errorf("Phase = %q, want implementation-gate", final.Phase)
	}

	// The decision log must tell the whole story in order.
	decisions, err := eng.Decisions.ListBySession(ctx, eng.DB, state.SessionID, 0)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	var sawReady bool
	for i, d := range decisions {
		if d.SeqNo != int64(i+1) {
			t.Errorf("decision %d SeqNo = %d, want gapless %d", i, d.SeqNo, i+1)
		}
		if d.EventType == "session_ready" {
			sawReady = true
		}
	}
	if !sawReady {
		t.Error("no session_ready decision recorded")
	}
}

func TestEngine_ConfirmGate_Reject(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	state := mustStart(t, eng)

	for _, claim := range testClaims {
		recordClaim(t, eng, state.Scope, claim, domain.OutcomeSupports)
	}

	res, err := eng.Advance(ctx, state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"}, TurnInputs{DomainSignalDensity: 100})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Pending == nil {
		t.Fatal("no pending gate")
	}

	rejected, err := eng.ConfirmGate(ctx, state.SessionID, domain.GateArchitecture, "reject", "lead")
	if err != nil {
		t.Fatalf("ConfirmGate reject: %v", err)
	}
	if rejected.Status != domain.StatusWarn {
		t.Errorf("Status = %q, want WARN", rejected.Status)
	}
	if rejected.State.Phase != domain.PhaseArchitectureGate {
		t.Errorf("Phase = %q, want architecture-gate (reject must not advance)", rejected.State.Phase)
	}
	if rejected.State.Status != domain.StatusActive {
		t.Errorf("session status = %q, want active", rejected.State.Status)
	}
}

func TestEngine_ConfirmGate_WrongPhase(t *testing.T) {
	eng := newTestEngine(t)
	state := mustStart(t, eng)

	_, err := eng.ConfirmGate(context.Background(), state.SessionID, domain.GateArchitecture, "approve", "lead")
	if !errors.Is(err, domain.ErrNotGatePhase) {
		t.Errorf("error = %v, want ErrNotGatePhase", err)
	}
}

func TestEngine_ConfirmGate_StalePlan(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	state := mustStart(t, eng)

	for _, claim := range testClaims {
		recordClaim(t, eng, state.Scope, claim, domain.OutcomeSupports)
	}
	if _, err := eng.Advance(ctx, state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"}, TurnInputs{DomainSignalDensity: 100}); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// Simulate a plan re-resolved after the evaluation.
	if _, err := eng.DB.Exec(`UPDATE sessions SET plan_hash = 'rehashed' WHERE session_id = ?`, state.SessionID); err != nil {
		t.Fatalf("rewrite plan hash: %v", err)
	}

	res, err := eng.ConfirmGate(ctx, state.SessionID, domain.GateArchitecture, "approve", "lead")
	if err != nil {
		t.Fatalf("ConfirmGate: %v", err)
	}
	if res.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, want BLOCKED", res.Status)
	}
	if res.State.ReasonCode != domain.ReasonStalePlan {
		t.Errorf("ReasonCode = %q, want BLOCKED-STALE-PLAN", res.State.ReasonCode)
	}
}

func TestEngine_Abort(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	state := mustStart(t, eng)

	recordClaim(t, eng, state.Scope, "tests-green", domain.OutcomeSupports)

	res, err := eng.Abort(ctx, state.SessionID, "lead")
	if err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if res.State.Status != domain.StatusAborted {
		t.Errorf("Status = %q, want aborted", res.State.Status)
	}

	// Terminal: no further turns.
	if _, err := eng.Advance(ctx, state.SessionID,
		domain.TransitionTrigger{Action: "advance", Actor: "test"}, TurnInputs{}); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Errorf("Advance after abort error = %v, want ErrSessionTerminal", err)
	}
	if _, err := eng.Abort(ctx, state.SessionID, "lead"); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Errorf("second Abort error = %v, want ErrSessionTerminal", err)
	}

	// Evidence is immutable history: it survives the abort.
	answer, err := eng.Ledger.Query(ctx, "tests-green", state.Scope)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.Status != domain.ClaimVerified {
		t.Errorf("evidence lost after abort: status %q", answer.Status)
	}
}
