// Package gate computes scorecards for governance checkpoints. A gate result
// is always computed from evidence and artifacts, never set manually.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/evidence"
)

// Evaluator resolves each criterion of a gate against the evidence ledger or
// an artifact presence check, then scores the gate.
type Evaluator struct {
	Ledger *evidence.Ledger

	// PassThreshold is the score ratio required for a clean pass (default 0.9).
	PassThreshold float64
	// ExceptionThreshold is the ratio for pass-with-exceptions (default 0.7).
	ExceptionThreshold float64

	now func() time.Time
}

// NewEvaluator creates an evaluator with the standard thresholds.
func NewEvaluator(ledger *evidence.Ledger) *Evaluator {
	return &Evaluator{
		Ledger:             ledger,
		PassThreshold:      0.9,
		ExceptionThreshold: 0.7,
		now:                time.Now,
	}
}

// Evaluate computes the GateResult for a gate spec within a scope. The
// artifacts set lists artifact names the external I/O layer found present.
// planHash pins the activation plan the evaluation was performed under.
//
// Anti-fabrication guard: a criterion can only resolve pass with a resolvable
// evidence reference; a pass without one is demoted to fail.
func (e *Evaluator) Evaluate(ctx context.Context, spec domain.GateSpec, scope domain.Scope, artifacts map[string]bool, planHash string) (domain.GateResult, error) {
	if len(spec.Criteria) == 0 {
		return domain.GateResult{}, domain.ErrGateZeroCriteria
	}

	result := domain.GateResult{
		GateID:          spec.ID,
		PlanHash:        planHash,
		EvaluatedAtUnix: e.now().Unix(),
	}

	score, maxScore := 0, 0
	criticalFailed := false

	// Required artifacts are implicit critical checks.
	for _, name := range spec.RequiredArtifacts {
		trace := domain.CriterionTrace{CriterionID: "artifact:" + name}
		if artifacts[name] {
			trace.Result = domain.CriterionPass
			trace.EvidenceRef = "artifact:" + name
		} else {
			trace.Result = domain.CriterionFail
			criticalFailed = true
		}
		result.Trace = append(result.Trace, trace)
	}

	for _, c := range spec.Criteria {
		trace, err := e.resolve(ctx, c, scope, artifacts)
		if err != nil {
			return domain.GateResult{}, err
		}

		if trace.Result == domain.CriterionPass && trace.EvidenceRef == "" {
			trace.Result = domain.CriterionFail
		}

		switch trace.Result {
		case domain.CriterionPass:
			score += c.Weight
			maxScore += c.Weight
		case domain.CriterionFail, domain.CriterionPartial:
			maxScore += c.Weight
			if trace.Result == domain.CriterionFail && c.Critical {
				criticalFailed = true
			}
		case domain.CriterionNotApplicable:
			// Excluded from both score and maxScore.
		}
		result.Trace = append(result.Trace, trace)
	}

	result.Score = score
	result.MaxScore = maxScore
	result.Decision = decide(score, maxScore, criticalFailed, e.PassThreshold, e.ExceptionThreshold)
	return result, nil
}

// resolve settles one criterion: artifact presence when the criterion names
// an artifact, otherwise a ledger query on its claim kind.
func (e *Evaluator) resolve(ctx context.Context, c domain.Criterion, scope domain.Scope, artifacts map[string]bool) (domain.CriterionTrace, error) {
	trace := domain.CriterionTrace{CriterionID: c.ID}

	if c.Artifact != "" {
		if artifacts[c.Artifact] {
			trace.Result = domain.CriterionPass
			trace.EvidenceRef = "artifact:" + c.Artifact
		} else {
			trace.Result = domain.CriterionFail
		}
		return trace, nil
	}

	if c.ClaimKind == "" {
		trace.Result = domain.CriterionNotApplicable
		return trace, nil
	}

	answer, err := e.Ledger.Query(ctx, c.ClaimKind, scope)
	if err != nil {
		return trace, fmt.Errorf("resolve criterion %s: %w", c.ID, err)
	}

	switch answer.Status {
	case domain.ClaimVerified:
		trace.Result = domain.CriterionPass
		trace.EvidenceRef = answer.Items[0].ID
	case domain.ClaimPartial:
		trace.Result = domain.CriterionPartial
		trace.EvidenceRef = answer.Items[0].ID
	default:
		trace.Result = domain.CriterionFail
		// A refuted claim still has backing evidence; a claim with no items
		// at all fails with an empty reference.
		if len(answer.Items) > 0 {
			trace.EvidenceRef = answer.Items[0].ID
		}
	}
	return trace, nil
}

// decide applies the scoring policy: a critical failure vetoes the gate
// outright, otherwise the score ratio is banded against the thresholds.
func decide(score, maxScore int, criticalFailed bool, passAt, exceptionAt float64) domain.GateDecision {
	if criticalFailed {
		return domain.GateFail
	}
	if maxScore == 0 {
		// Every criterion resolved not-applicable; nothing to prove.
		return domain.GatePass
	}
	ratio := float64(score) / float64(maxScore)
	switch {
	case ratio >= passAt:
		return domain.GatePass
	case ratio >= exceptionAt:
		return domain.GatePassWithExceptions
	default:
		return domain.GateFail
	}
}
