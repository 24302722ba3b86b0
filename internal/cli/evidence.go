package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/domain"
)

func newEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "record and query ledger evidence for a ticket run",
	}
	cmd.AddCommand(newEvidenceRecordCmd(), newEvidenceQueryCmd())
	return cmd
}

func newEvidenceRecordCmd() *cobra.Command {
	var (
		ticket     string
		run        string
		claim      string
		kind       string
		source     string
		outcome    string
		snippet    string
		supersedes string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "append one evidence item to the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticket == "" || run == "" || claim == "" {
				return fmt.Errorf("evidence record requires --ticket, --run, and --claim")
			}

			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			item := domain.EvidenceItem{
				ClaimKind:  claim,
				Kind:       domain.EvidenceKind(kind),
				Source:     source,
				Outcome:    domain.EvidenceOutcome(outcome),
				SnippetRef: snippet,
				Scope:      domain.Scope{TicketID: ticket, SessionRunID: run},
			}

			var id string
			if supersedes != "" {
				id, err = eng.Ledger.Supersede(cmd.Context(), supersedes, item)
			} else {
				id, err = eng.Ledger.Record(cmd.Context(), item)
			}
			if err != nil {
				return err
			}

			fmt.Printf("recorded %s (%s/%s, %s)\n", id, claim, kind, outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	cmd.Flags().StringVar(&claim, "claim", "", "claim kind the evidence speaks to")
	cmd.Flags().StringVar(&kind, "kind", string(domain.KindFreeText), "evidence kind")
	cmd.Flags().StringVar(&source, "source", "", "command or file that produced the evidence")
	cmd.Flags().StringVar(&outcome, "outcome", string(domain.OutcomeSupports), "supports, supports-partial, or refutes")
	cmd.Flags().StringVar(&snippet, "snippet", "", "reference to the supporting snippet")
	cmd.Flags().StringVar(&supersedes, "supersedes", "", "evidence ID this item replaces")
	return cmd
}

func newEvidenceQueryCmd() *cobra.Command {
	var (
		ticket string
		run    string
		claim  string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "report the verification status of a claim",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticket == "" || run == "" || claim == "" {
				return fmt.Errorf("evidence query requires --ticket, --run, and --claim")
			}

			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			answer, err := eng.Ledger.Query(cmd.Context(),
				claim, domain.Scope{TicketID: ticket, SessionRunID: run})
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", claimColor(answer.Status), claim)
			for _, it := range answer.Items {
				fmt.Printf("  %-14s %-10s #%-4d %s  %s\n", it.Kind, it.Outcome, it.SeqNo, it.ID, it.Source)
			}
			for _, c := range answer.Conflicts {
				fmt.Printf("  conflict: %s over %s (%s)\n", c.WinnerID, c.LoserID, c.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	cmd.Flags().StringVar(&claim, "claim", "", "claim kind to query")
	return cmd
}

func claimColor(s domain.ClaimStatus) string {
	switch s {
	case domain.ClaimVerified:
		return color.GreenString(string(s))
	case domain.ClaimPartial:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
