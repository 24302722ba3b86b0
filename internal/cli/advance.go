package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/workflow"
)

func newAdvanceCmd() *cobra.Command {
	var (
		sessionID string
		ticket    string
		run       string
		actor     string
		density   int
		artifacts []string
	)

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "run one turn: recompute confidence, walk forward, evaluate the next gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cfg, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			state, err := findSession(ctx, eng.DB, eng, sessionID, ticket, run)
			if err != nil {
				return err
			}

			present := make(map[string]bool, len(artifacts))
			for _, a := range artifacts {
				present[a] = true
			}

			res, err := eng.Advance(ctx, state.SessionID,
				domain.TransitionTrigger{Action: "advance", Actor: actor},
				workflow.TurnInputs{Artifacts: present, DomainSignalDensity: density})
			if err != nil {
				return err
			}

			printState(&res.State, res.Status)
			printPending(res.Pending)
			if err := persistTurnSnapshot(ctx, cfg, eng, &res.State); err != nil {
				return fmt.Errorf("persist snapshot: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier")
	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the decision log")
	cmd.Flags().IntVar(&density, "density", 100, "domain signal density, 0-100")
	cmd.Flags().StringSliceVar(&artifacts, "artifact", nil, "artifact present in the workspace (repeatable)")
	return cmd
}
