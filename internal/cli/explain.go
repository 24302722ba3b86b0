package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/recovery"
)

func newWhyBlockedCmd() *cobra.Command {
	var (
		sessionID string
		ticket    string
		run       string
	)

	cmd := &cobra.Command{
		Use:   "why-blocked",
		Short: "explain a blocked session: reason, missing inputs, recovery steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			state, err := findSession(cmd.Context(), eng.DB, eng, sessionID, ticket, run)
			if err != nil {
				return err
			}

			exp, err := recovery.Explain(state)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", color.RedString(string(exp.Reason)), exp.Summary)
			if len(exp.MissingEvidence) > 0 {
				fmt.Println("  missing:")
				for _, m := range exp.MissingEvidence {
					fmt.Printf("    - %s\n", m)
				}
			}
			fmt.Println("  recovery:")
			for i, s := range exp.RecoverySteps {
				fmt.Printf("    %d. %s\n", i+1, s)
			}
			fmt.Printf("  next: %s\n", color.CyanString(exp.NextCommand))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier")
	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	return cmd
}

func newExplainActivationCmd() *cobra.Command {
	var (
		sessionID string
		ticket    string
		run       string
	)

	cmd := &cobra.Command{
		Use:   "explain-activation",
		Short: "print the activation plan and its precedence trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			state, err := findSession(cmd.Context(), eng.DB, eng, sessionID, ticket, run)
			if err != nil {
				return err
			}
			if state.PlanJSON == "" {
				fmt.Println("no activation plan recorded for this session")
				if state.ReasonCode != "" {
					fmt.Printf("reason: %s\n", color.RedString(string(state.ReasonCode)))
				}
				return nil
			}

			var plan domain.ActivationPlan
			if err := json.Unmarshal([]byte(state.PlanJSON), &plan); err != nil {
				return fmt.Errorf("decode activation plan: %w", err)
			}

			fmt.Printf("profile: %s (%s)\n", plan.Profile, plan.ProfileSource)
			fmt.Printf("plan hash: %s\n", state.PlanHash)
			fmt.Println("addons:")
			for _, a := range plan.Addons {
				fmt.Printf("  %-24s class=%s tier=%s\n", a.Key, a.Class, a.Tier)
			}
			fmt.Println("precedence trace:")
			for _, t := range plan.PrecedenceTrace {
				fmt.Printf("  %-28s %-20s %s\n", t.Subject, t.Rule, t.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier")
	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	return cmd
}
