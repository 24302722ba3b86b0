package recovery

import (
	"strings"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
)

func blockedState(reason domain.ReasonCode) *domain.SessionState {
	return &domain.SessionState{
		SessionID:  "sess-42",
		Scope:      domain.Scope{TicketID: "TCK-1", SessionRunID: "run-1"},
		Phase:      domain.PhasePlanning,
		Mode:       domain.ModeBlocked,
		Status:     domain.StatusActive,
		ReasonCode: reason,
	}
}

func TestExplain_EveryBaseReasonHasATemplate(t *testing.T) {
	reasons := []domain.ReasonCode{
		domain.ReasonAmbiguousProfile,
		domain.ReasonMissingAddon.WithSubject("payments"),
		domain.ReasonAddonConflict.WithSubject("api/users"),
		domain.ReasonMissingEvidence.WithSubject("architecture"),
		domain.ReasonGateFailed.WithSubject("test-quality"),
		domain.ReasonLowConfidence,
		domain.ReasonStalePlan,
	}

	for _, reason := range reasons {
		t.Run(string(reason.Base()), func(t *testing.T) {
			exp, err := Explain(blockedState(reason))
			if err != nil {
				t.Fatalf("Explain: %v", err)
			}
			if exp.Reason != reason {
				t.Errorf("Reason = %q, want %q", exp.Reason, reason)
			}
			if exp.Summary == "" {
				t.Error("empty summary")
			}
			if len(exp.RecoverySteps) == 0 || len(exp.RecoverySteps) > 3 {
				t.Errorf("RecoverySteps = %d entries, want 1-3", len(exp.RecoverySteps))
			}
			if exp.NextCommand == "" {
				t.Error("empty next command")
			}
			if strings.Contains(exp.NextCommand, "<id>") {
				t.Errorf("next command not filled: %q", exp.NextCommand)
			}
		})
	}
}

func TestExplain_SubjectIsFilled(t *testing.T) {
	exp, err := Explain(blockedState(domain.ReasonAddonConflict.WithSubject("api/users")))
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !strings.Contains(exp.Summary, "api/users") {
		t.Errorf("summary missing subject: %q", exp.Summary)
	}
	if len(exp.MissingEvidence) == 0 || !strings.Contains(exp.MissingEvidence[0], "api/users") {
		t.Errorf("missing evidence not subject-specific: %v", exp.MissingEvidence)
	}
}

func TestExplain_NextCommandNamesSession(t *testing.T) {
	exp, err := Explain(blockedState(domain.ReasonLowConfidence))
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !strings.Contains(exp.NextCommand, "sess-42") {
		t.Errorf("next command = %q, want session ID filled in", exp.NextCommand)
	}
}

func TestExplain_RequiresBlockedState(t *testing.T) {
	state := blockedState("")
	state.Mode = domain.ModeNormal
	state.ReasonCode = ""

	if _, err := Explain(state); err == nil {
		t.Error("Explain accepted a non-blocked state")
	}
}
