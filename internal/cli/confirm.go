package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/domain"
)

func newConfirmGateCmd() *cobra.Command {
	var (
		sessionID string
		gateID    string
		decision  string
		actor     string
	)

	cmd := &cobra.Command{
		Use:   "confirm-gate",
		Short: "record the explicit approve/reject decision for a pending gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" || gateID == "" {
				return fmt.Errorf("confirm-gate requires --session and --gate")
			}
			if decision != "approve" && decision != "reject" {
				return fmt.Errorf("--decision must be approve or reject")
			}

			eng, cfg, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			res, err := eng.ConfirmGate(ctx, sessionID, domain.GateID(gateID), decision, actor)
			if err != nil {
				return err
			}

			printState(&res.State, res.Status)
			if err := persistTurnSnapshot(ctx, cfg, eng, &res.State); err != nil {
				return fmt.Errorf("persist snapshot: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier")
	cmd.Flags().StringVar(&gateID, "gate", "", "gate identifier")
	cmd.Flags().StringVar(&decision, "decision", "approve", "approve or reject")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the decision log")
	return cmd
}

func newAbortCmd() *cobra.Command {
	var (
		sessionID string
		actor     string
	)

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "terminate a session; recorded evidence is kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("abort requires --session")
			}

			eng, cfg, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			res, err := eng.Abort(ctx, sessionID, actor)
			if err != nil {
				return err
			}

			printState(&res.State, res.Status)
			if err := persistTurnSnapshot(ctx, cfg, eng, &res.State); err != nil {
				return fmt.Errorf("persist snapshot: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the decision log")
	return cmd
}
