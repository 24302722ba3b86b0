// Package workflow implements the governance phase state machine: a
// turn-based engine that advances one session per external call, suspends at
// gate phases, and redirects to BLOCKED instead of silently downgrading.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatewright/gatewright/internal/activation"
	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/evidence"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/store"
)

// TurnInputs carries the caller-supplied facts for one turn: which artifacts
// the external I/O layer found present, the domain-signal density of the
// repository, and any extra confidence deltas.
type TurnInputs struct {
	Artifacts           map[string]bool
	DomainSignalDensity int
	Deltas              []int
}

// Engine is the state machine that owns SessionState. Every mutating call is
// one SQLite transaction: the session row, decision-log appends, and gate
// results commit together or not at all.
type Engine struct {
	DB          *sql.DB
	Sessions    *store.SessionRepo
	Decisions   *store.DecisionRepo
	GateResults *store.GateResultRepo
	Rules       *store.RuleRepo
	Resolver    *activation.Resolver
	Ledger      *evidence.Ledger
	Evaluator   *gate.Evaluator
	Registry    *gate.Registry
	Confidence  *ConfidenceController
	Guard       *OutputGuard

	now func() time.Time
}

// NewEngine creates an engine with all dependencies wired over one database.
func NewEngine(db *sql.DB, registry *gate.Registry) *Engine {
	ledger := evidence.NewLedger(db)
	return &Engine{
		DB:          db,
		Sessions:    &store.SessionRepo{},
		Decisions:   &store.DecisionRepo{},
		GateResults: &store.GateResultRepo{},
		Rules:       &store.RuleRepo{},
		Resolver:    &activation.Resolver{},
		Ledger:      ledger,
		Evaluator:   gate.NewEvaluator(ledger),
		Registry:    registry,
		Confidence:  NewConfidenceController(),
		Guard:       NewOutputGuard(db),
		now:         time.Now,
	}
}

// StartSession bootstraps a new session: it resolves the activation plan and
// persists the session at the bootstrap phase. Activation failures do not
// create a half-initialized session; the session is created atomically in
// BLOCKED mode carrying the mapped reason code.
func (e *Engine) StartSession(ctx context.Context, scope domain.Scope, facts domain.RepoFacts, manifests []domain.AddonManifest, manifestsHash string, rs domain.Ruleset) (*domain.TurnResult, error) {
	existing, err := e.Sessions.GetByScope(ctx, e.DB, scope)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateSession
	}

	now := e.now().Unix()
	state := domain.SessionState{
		SessionID:     "sess-" + uuid.NewString(),
		Scope:         scope,
		Phase:         domain.PhaseBootstrap,
		Mode:          domain.ModeNormal,
		Status:        domain.StatusActive,
		Confidence:    0,
		Hashes:        domain.InputHashes{Ruleset: rs.Hash, RepoFacts: facts.Hash, Manifests: manifestsHash},
		StateVersion:  1,
		UpdatedAtUnix: now,
	}

	plan, resolveErr := e.Resolver.Resolve(facts, manifests, rs)
	if resolveErr != nil {
		reason, ok := domain.ReasonOf(resolveErr)
		if !ok {
			// Not an activation outcome (e.g. invalid manifests): fatal.
			return nil, resolveErr
		}
		state.Mode = domain.ModeBlocked
		state.ReasonCode = reason
	} else {
		planJSON, err := activation.CanonicalJSON(plan)
		if err != nil {
			return nil, err
		}
		state.PlanJSON = planJSON
		state.PlanHash = activation.HashOf(planJSON)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.appendDecision(ctx, tx, &state, "session_started",
		fmt.Sprintf(`{"ticket":"%s","run":"%s"}`, scope.TicketID, scope.SessionRunID)); err != nil {
		return nil, err
	}
	if state.Blocked() {
		if err := e.appendDecision(ctx, tx, &state, "activation_blocked",
			fmt.Sprintf(`{"reason":"%s"}`, state.ReasonCode)); err != nil {
			return nil, err
		}
	} else {
		if err := e.appendDecision(ctx, tx, &state, "activation_resolved",
			fmt.Sprintf(`{"plan_hash":"%s"}`, state.PlanHash)); err != nil {
			return nil, err
		}
	}

	if err := e.Sessions.CreateTx(ctx, tx, state); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit start: %w", err)
	}

	status := domain.StatusOK
	if state.Blocked() {
		status = domain.StatusBlocked
	}
	return &domain.TurnResult{State: state, Status: status}, nil
}

// Advance drives one turn. The engine recomputes confidence, auto-advances
// through non-gate phases while the mode permits, and halts with a pending
// GateReport when a gate phase is entered. Missing required evidence at a
// gate redirects the session to BLOCKED.
//
// All reads happen before the write transaction opens; the store runs a
// single connection, so a read inside the transaction would self-deadlock.
func (e *Engine) Advance(ctx context.Context, sessionID string, trigger domain.TransitionTrigger, inputs TurnInputs) (*domain.TurnResult, error) {
	state, err := e.Sessions.GetByID(ctx, e.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status != domain.StatusActive {
		return nil, domain.ErrSessionTerminal
	}

	// Activation-rooted blocks cannot self-heal: the inputs are hashed into
	// the session. The caller must start a new run with corrected inputs.
	if state.Blocked() && isActivationReason(state.ReasonCode) {
		return &domain.TurnResult{State: *state, Status: domain.StatusBlocked}, nil
	}

	completeness, err := e.evidenceCompleteness(ctx, state.Scope)
	if err != nil {
		return nil, err
	}
	confidence, mode := e.Confidence.Score(completeness, inputs.DomainSignalDensity, inputs.Deltas...)

	next := *state
	next.Confidence = confidence
	next.Mode = mode
	next.ReasonCode = ""
	next.UpdatedAtUnix = e.now().Unix()

	var events []turnEvent
	if mode != state.Mode {
		events = append(events, turnEvent{"mode_changed",
			fmt.Sprintf(`{"from":"%s","to":"%s","confidence":%d}`, state.Mode, mode, confidence)})
	}

	var pending *domain.GateReport
	var gateResult *domain.GateResult
	status := domain.StatusOK

	switch {
	case mode == domain.ModeBlocked:
		next.ReasonCode = domain.ReasonLowConfidence
		status = domain.StatusBlocked
		events = append(events, turnEvent{"blocked",
			fmt.Sprintf(`{"reason":"%s","confidence":%d}`, next.ReasonCode, confidence)})

	case mode == domain.ModeDraft:
		// Planning only: no auto-advance, no irreversible output.
		status = domain.StatusWarn

	default:
		// NORMAL or DEGRADED: walk forward until a gate phase halts us.
		for !domain.IsGatePhase(next.Phase) {
			after, ok := domain.NextPhase(next.Phase)
			if !ok {
				break
			}
			events = append(events, turnEvent{"phase_transition",
				fmt.Sprintf(`{"from":"%s","to":"%s","action":"%s","actor":"%s"}`, next.Phase, after, trigger.Action, trigger.Actor)})
			next.Phase = after
		}

		if domain.IsGatePhase(next.Phase) {
			gateID, _ := domain.GateForPhase(next.Phase)
			spec, err := e.Registry.Get(gateID)
			if err != nil {
				return nil, err
			}
			res, err := e.Evaluator.Evaluate(ctx, spec, next.Scope, inputs.Artifacts, next.PlanHash)
			if err != nil {
				return nil, err
			}
			gateResult = &res
			events = append(events, turnEvent{"gate_evaluated",
				fmt.Sprintf(`{"gate":"%s","decision":"%s","score":%d,"max":%d}`, gateID, res.Decision, res.Score, res.MaxScore)})

			switch res.Decision {
			case domain.GateFail:
				next.Mode = domain.ModeBlocked
				next.ReasonCode = failReason(gateID, res)
				status = domain.StatusBlocked
				events = append(events, turnEvent{"blocked",
					fmt.Sprintf(`{"reason":"%s"}`, next.ReasonCode)})
			case domain.GatePassWithExceptions:
				status = domain.StatusWarn
				pending = e.report(gateID, next.Phase, res, next.SessionID)
			default:
				pending = e.report(gateID, next.Phase, res, next.SessionID)
			}
		}
	}

	if err := e.commitTurn(ctx, &next, events, gateResult); err != nil {
		return nil, err
	}
	return &domain.TurnResult{State: next, Pending: pending, Status: status}, nil
}

// ConfirmGate records the external decision for the gate the session is
// halted at. An approval pins the plan hash and moves the workflow past the
// gate; approving the implementation gate additionally requires the output
// guard and terminates the session as ready.
func (e *Engine) ConfirmGate(ctx context.Context, sessionID string, gateID domain.GateID, decision, actor string) (*domain.TurnResult, error) {
	state, err := e.Sessions.GetByID(ctx, e.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status != domain.StatusActive {
		return nil, domain.ErrSessionTerminal
	}
	if state.Blocked() {
		return &domain.TurnResult{State: *state, Status: domain.StatusBlocked}, nil
	}

	current, ok := domain.GateForPhase(state.Phase)
	if !ok {
		return nil, domain.ErrNotGatePhase
	}
	if current != gateID {
		return nil, domain.NewEngineError(domain.ErrNotGatePhase.Code,
			fmt.Sprintf("session is at gate %s, not %s", current, gateID))
	}

	res, err := e.GateResults.GetLatest(ctx, e.DB, sessionID, gateID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domain.NewEngineError(domain.ErrGateNotConfirmed.Code,
			fmt.Sprintf("gate %s has not been evaluated this run", gateID))
	}

	next := *state
	next.UpdatedAtUnix = e.now().Unix()
	var events []turnEvent

	if decision != "approve" {
		events = append(events, turnEvent{"gate_confirmed",
			fmt.Sprintf(`{"gate":"%s","decision":"%s","actor":"%s"}`, gateID, decision, actor)})
		if err := e.commitTurn(ctx, &next, events, nil); err != nil {
			return nil, err
		}
		return &domain.TurnResult{State: next, Status: domain.StatusWarn}, nil
	}

	if !res.Passed() {
		return nil, domain.NewEngineError(domain.ErrGateNotConfirmed.Code,
			fmt.Sprintf("gate %s last resolved %s; confirmation requires a passing result", gateID, res.Decision))
	}

	// A plan re-resolved since the evaluation invalidates the result.
	if res.PlanHash != state.PlanHash {
		next.Mode = domain.ModeBlocked
		next.ReasonCode = domain.ReasonStalePlan
		events = append(events, turnEvent{"blocked",
			fmt.Sprintf(`{"reason":"%s","gate":"%s"}`, next.ReasonCode, gateID)})
		if err := e.commitTurn(ctx, &next, events, nil); err != nil {
			return nil, err
		}
		return &domain.TurnResult{State: next, Status: domain.StatusBlocked}, nil
	}

	if gateID == domain.GateImplementation {
		if err := e.Guard.AuthorizeOutput(ctx, state); err != nil {
			if reason, ok := domain.ReasonOf(err); ok {
				next.Mode = domain.ModeBlocked
				next.ReasonCode = reason
				events = append(events, turnEvent{"blocked",
					fmt.Sprintf(`{"reason":"%s"}`, reason)})
				if cerr := e.commitTurn(ctx, &next, events, nil); cerr != nil {
					return nil, cerr
				}
				return &domain.TurnResult{State: next, Status: domain.StatusBlocked}, nil
			}
			return nil, err
		}
	}

	next.PinnedPlanHash = res.PlanHash
	events = append(events, turnEvent{"gate_confirmed",
		fmt.Sprintf(`{"gate":"%s","decision":"approve","actor":"%s"}`, gateID, actor)})

	if after, ok := domain.NextPhase(next.Phase); ok {
		events = append(events, turnEvent{"phase_transition",
			fmt.Sprintf(`{"from":"%s","to":"%s","action":"confirm","actor":"%s"}`, next.Phase, after, actor)})
		next.Phase = after
	} else {
		// Implementation gate approved: the workflow is ready.
		next.Status = domain.StatusReady
		events = append(events, turnEvent{"session_ready", "{}"})
	}

	if err := e.commitTurn(ctx, &next, events, nil); err != nil {
		return nil, err
	}
	return &domain.TurnResult{State: next, Status: domain.StatusOK}, nil
}

// Abort is the only cancellation path. It is terminal and does not roll back
// recorded evidence; evidence is immutable history.
func (e *Engine) Abort(ctx context.Context, sessionID, actor string) (*domain.TurnResult, error) {
	state, err := e.Sessions.GetByID(ctx, e.DB, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Status != domain.StatusActive {
		return nil, domain.ErrSessionTerminal
	}

	next := *state
	next.Status = domain.StatusAborted
	next.UpdatedAtUnix = e.now().Unix()
	events := []turnEvent{{"aborted", fmt.Sprintf(`{"actor":"%s"}`, actor)}}

	if err := e.commitTurn(ctx, &next, events, nil); err != nil {
		return nil, err
	}
	return &domain.TurnResult{State: next, Status: domain.StatusOK}, nil
}

// State returns the current session state and the latest result per gate.
func (e *Engine) State(ctx context.Context, sessionID string) (*domain.SessionState, map[domain.GateID]domain.GateResult, error) {
	state, err := e.Sessions.GetByID(ctx, e.DB, sessionID)
	if err != nil {
		return nil, nil, err
	}
	gates, err := e.GateResults.Latest(ctx, e.DB, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return state, gates, nil
}

// --- internals ---

type turnEvent struct {
	eventType string
	payload   string
}

// commitTurn applies one turn's writes in a single transaction.
func (e *Engine) commitTurn(ctx context.Context, state *domain.SessionState, events []turnEvent, res *domain.GateResult) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		if err := e.appendDecision(ctx, tx, state, ev.eventType, ev.payload); err != nil {
			return err
		}
	}
	if res != nil {
		if err := e.GateResults.SaveTx(ctx, tx, state.SessionID, *res); err != nil {
			return err
		}
	}
	if err := e.Sessions.UpdateStateTx(ctx, tx, *state); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) appendDecision(ctx context.Context, tx *sql.Tx, state *domain.SessionState, eventType, payload string) error {
	state.LastDecisionSeq++
	rec := domain.DecisionRecord{
		SessionID:   state.SessionID,
		SeqNo:       state.LastDecisionSeq,
		Phase:       state.Phase,
		EventType:   eventType,
		PayloadJSON: payload,
		CreatedAt:   e.now().Unix(),
	}
	return e.Decisions.AppendTx(ctx, tx, rec)
}

// evidenceCompleteness measures how much of the registry's claim surface is
// proven in this scope: verified claims count fully, partial ones half.
func (e *Engine) evidenceCompleteness(ctx context.Context, scope domain.Scope) (int, error) {
	kinds := e.claimKinds()
	if len(kinds) == 0 {
		return 0, nil
	}

	total := 0
	for _, kind := range kinds {
		answer, err := e.Ledger.Query(ctx, kind, scope)
		if err != nil {
			return 0, err
		}
		switch answer.Status {
		case domain.ClaimVerified:
			total += 100
		case domain.ClaimPartial:
			total += 50
		}
	}
	return total / len(kinds), nil
}

// claimKinds returns the distinct claim kinds across all gate specs, in the
// registry's deterministic order.
func (e *Engine) claimKinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, spec := range e.Registry.Specs() {
		for _, c := range spec.Criteria {
			if c.ClaimKind != "" && !seen[c.ClaimKind] {
				seen[c.ClaimKind] = true
				kinds = append(kinds, c.ClaimKind)
			}
		}
	}
	return kinds
}

func (e *Engine) report(gateID domain.GateID, phase domain.Phase, res domain.GateResult, sessionID string) *domain.GateReport {
	return &domain.GateReport{
		Gate:   gateID,
		Phase:  phase,
		Result: res,
		ConfirmCommand: fmt.Sprintf("gatewright confirm-gate --session %s --gate %s --decision approve",
			sessionID, gateID),
	}
}

// failReason distinguishes a gate that failed for lack of evidence from one
// failed by refuting evidence: an unbacked failure is missing evidence.
func failReason(gateID domain.GateID, res domain.GateResult) domain.ReasonCode {
	for _, t := range res.Trace {
		if t.Result == domain.CriterionFail && t.EvidenceRef == "" {
			return domain.ReasonMissingEvidence.WithSubject(string(gateID))
		}
	}
	return domain.ReasonGateFailed.WithSubject(string(gateID))
}

func isActivationReason(code domain.ReasonCode) bool {
	switch code.Base() {
	case domain.ReasonAmbiguousProfile, domain.ReasonMissingAddon, domain.ReasonAddonConflict:
		return true
	}
	return false
}
