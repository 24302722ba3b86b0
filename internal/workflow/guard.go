package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/store"
)

// OutputGuard authorizes irreversible (code-producing) output. Output is
// permitted only when every mandatory gate's last recorded result passed and
// the activation plan hash still matches the one recorded at gate-pass time,
// which prevents code generation against a stale plan.
type OutputGuard struct {
	DB          *sql.DB
	GateResults *store.GateResultRepo
}

// NewOutputGuard creates a guard over the given database.
func NewOutputGuard(db *sql.DB) *OutputGuard {
	return &OutputGuard{DB: db, GateResults: &store.GateResultRepo{}}
}

// AuthorizeOutput checks whether the session may produce irreversible output.
// A nil return authorizes; any error explains the refusal, carrying a
// BLOCKED-* reason code where one applies.
func (g *OutputGuard) AuthorizeOutput(ctx context.Context, state *domain.SessionState) error {
	switch state.Mode {
	case domain.ModeBlocked:
		return domain.ErrSessionBlocked
	case domain.ModeDraft:
		return domain.ErrDraftOnly
	}
	if state.Status == domain.StatusAborted {
		return domain.ErrSessionTerminal
	}

	for _, gateID := range domain.MandatoryGates {
		res, err := g.GateResults.GetLatest(ctx, g.DB, state.SessionID, gateID)
		if err != nil {
			return err
		}
		if res == nil {
			return &domain.EngineError{
				Code:    domain.ErrGateNotConfirmed.Code,
				Message: fmt.Sprintf("gate %s has never been evaluated", gateID),
				Reason:  domain.ReasonMissingEvidence.WithSubject(string(gateID)),
			}
		}
		if !res.Passed() {
			return &domain.EngineError{
				Code:    domain.ErrGateNotConfirmed.Code,
				Message: fmt.Sprintf("gate %s last resolved %s", gateID, res.Decision),
				Reason:  domain.ReasonGateFailed.WithSubject(string(gateID)),
			}
		}
		if res.PlanHash != state.PlanHash {
			return &domain.EngineError{
				Code:    domain.ErrGateNotConfirmed.Code,
				Message: fmt.Sprintf("gate %s passed under plan %.12s but current plan is %.12s", gateID, res.PlanHash, state.PlanHash),
				Reason:  domain.ReasonStalePlan,
			}
		}
	}
	return nil
}
