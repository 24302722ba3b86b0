package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/domain"
)

func newStatusCmd() *cobra.Command {
	var (
		sessionID string
		ticket    string
		run       string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "show session state, gate scorecards, and the decision log tail",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			found, err := findSession(ctx, eng.DB, eng, sessionID, ticket, run)
			if err != nil {
				return err
			}

			state, gates, err := eng.State(ctx, found.SessionID)
			if err != nil {
				return err
			}

			printState(state, statusFor(state))
			fmt.Printf("     ticket=%s run=%s version=%d\n",
				state.Scope.TicketID, state.Scope.SessionRunID, state.StateVersion)
			if state.PlanHash != "" {
				fmt.Printf("     plan=%s pinned=%s\n", short(state.PlanHash), short(state.PinnedPlanHash))
			}

			if len(gates) > 0 {
				fmt.Println("     gates:")
				for _, id := range domain.MandatoryGates {
					res, ok := gates[id]
					if !ok {
						fmt.Printf("       %-24s not evaluated\n", id)
						continue
					}
					fmt.Printf("       %-24s %-10s score %d/%d\n", id, res.Decision, res.Score, res.MaxScore)
				}
			}

			decisions, err := eng.Decisions.ListBySession(ctx, eng.DB, state.SessionID, 0)
			if err != nil {
				return err
			}
			if n := len(decisions); n > 0 {
				tail := decisions
				if n > 5 {
					tail = decisions[n-5:]
				}
				fmt.Println("     recent decisions:")
				for _, d := range tail {
					fmt.Printf("       #%-4d %s\n", d.SeqNo, d.EventType)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier")
	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	return cmd
}

func statusFor(state *domain.SessionState) domain.StatusWord {
	switch {
	case state.Blocked():
		return domain.StatusBlocked
	case state.Mode == domain.ModeDraft || state.Mode == domain.ModeDegraded:
		return domain.StatusWarn
	default:
		return domain.StatusOK
	}
}

func short(hash string) string {
	if hash == "" {
		return "-"
	}
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
