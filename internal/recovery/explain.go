// Package recovery turns a blocked session state into an actionable
// explanation: one reason code, the minimal missing inputs, at most three
// recovery steps, and one concrete next command. Explain is a pure read; it
// never gathers evidence or mutates state.
package recovery

import (
	"fmt"
	"strings"

	"github.com/gatewright/gatewright/internal/domain"
)

// template is the canonical recovery recipe for one base reason code.
// Occurrences of %s are filled with the code's subject.
type template struct {
	summary     string
	missing     []string
	steps       []string
	nextCommand string
}

// registry maps every base BLOCKED-* code to its recovery template.
var registry = map[domain.ReasonCode]template{
	domain.ReasonAmbiguousProfile: {
		summary: "repository facts did not select exactly one profile",
		missing: []string{"an explicit profile in the ruleset, or repository signals matching exactly one fallback profile"},
		steps: []string{
			"set `profile` in the ruleset file",
			"re-run activation with the corrected ruleset",
		},
		nextCommand: "gatewright start --ruleset <path>",
	},
	domain.ReasonMissingAddon: {
		summary: "required addon %s is in the ticket scope but did not activate",
		missing: []string{"capabilities or signals satisfying the %s manifest"},
		steps: []string{
			"check the manifest conditions for %s against the repository facts",
			"regenerate repo facts if the repository changed",
			"start a new session run with corrected inputs",
		},
		nextCommand: "gatewright explain-activation --session <id>",
	},
	domain.ReasonAddonConflict: {
		summary: "active addons conflict on surface %s",
		missing: []string{"a single owner for surface %s"},
		steps: []string{
			"remove the surface from all but one addon manifest",
			"start a new session run with corrected manifests",
		},
		nextCommand: "gatewright explain-activation --session <id>",
	},
	domain.ReasonMissingEvidence: {
		summary: "gate %s has criteria with no supporting evidence",
		missing: []string{"evidence items for the unresolved criteria of gate %s"},
		steps: []string{
			"record evidence for each failing criterion",
			"re-run the turn to re-evaluate the gate",
		},
		nextCommand: "gatewright advance --session <id>",
	},
	domain.ReasonGateFailed: {
		summary: "gate %s failed on recorded evidence",
		missing: []string{"evidence superseding the refutations for gate %s"},
		steps: []string{
			"inspect the gate scorecard for the failing criteria",
			"fix the underlying problem and record superseding evidence",
			"re-run the turn to re-evaluate the gate",
		},
		nextCommand: "gatewright advance --session <id>",
	},
	domain.ReasonLowConfidence: {
		summary: "confidence fell below the draft floor",
		missing: []string{"evidence covering the claim kinds of the configured gates"},
		steps: []string{
			"record evidence for unproven claims",
			"re-run the turn to re-band confidence",
		},
		nextCommand: "gatewright advance --session <id>",
	},
	domain.ReasonStalePlan: {
		summary: "the activation plan changed after the gate was evaluated",
		missing: []string{"a gate result evaluated under the current plan hash"},
		steps: []string{
			"re-run the turn to re-evaluate the gate under the current plan",
		},
		nextCommand: "gatewright advance --session <id>",
	},
}

// Explain produces the recovery explanation for a blocked state.
// Calling it on a non-blocked state is a contract violation.
func Explain(state *domain.SessionState) (*domain.Explanation, error) {
	if !state.Blocked() || state.ReasonCode == "" {
		return nil, domain.NewEngineError(domain.ErrSessionBlocked.Code,
			"explain requires a blocked session with a reason code")
	}

	code := state.ReasonCode
	t, ok := registry[code.Base()]
	if !ok {
		return nil, domain.NewEngineError(domain.ErrSessionBlocked.Code,
			fmt.Sprintf("unknown reason code %q", code))
	}

	subject := code.Subject()
	fill := func(s string) string {
		if strings.Contains(s, "%s") {
			return fmt.Sprintf(s, subject)
		}
		return s
	}

	exp := &domain.Explanation{
		Reason:      code,
		Summary:     fill(t.summary),
		NextCommand: strings.ReplaceAll(t.nextCommand, "<id>", state.SessionID),
	}
	for _, m := range t.missing {
		exp.MissingEvidence = append(exp.MissingEvidence, fill(m))
	}
	for _, s := range t.steps {
		exp.RecoverySteps = append(exp.RecoverySteps, fill(s))
	}
	if len(exp.RecoverySteps) > 3 {
		exp.RecoverySteps = exp.RecoverySteps[:3]
	}
	return exp, nil
}
