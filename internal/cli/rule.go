package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/domain"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "manage the append-only business-rule register",
	}
	cmd.AddCommand(newRuleSetCmd(), newRuleListCmd(), newRuleHistoryCmd())
	return cmd
}

func newRuleSetCmd() *cobra.Command {
	var (
		ruleID string
		status string
		body   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "append a new revision of a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ruleID == "" || body == "" {
				return fmt.Errorf("rule set requires --id and --body")
			}
			st := domain.RuleStatus(status)
			switch st {
			case domain.RuleActive, domain.RuleDeprecated, domain.RuleCandidate:
			default:
				return fmt.Errorf("unknown rule status %q", status)
			}

			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			rec := domain.RuleRecord{
				RuleID:    ruleID,
				Status:    st,
				Body:      body,
				CreatedAt: time.Now().Unix(),
			}
			if err := eng.Rules.Append(cmd.Context(), eng.DB, rec); err != nil {
				return err
			}
			fmt.Printf("rule %s -> %s\n", ruleID, st)
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleID, "id", "", "stable rule identifier")
	cmd.Flags().StringVar(&status, "status", string(domain.RuleActive), "ACTIVE, DEPRECATED, or CANDIDATE")
	cmd.Flags().StringVar(&body, "body", "", "rule text")
	return cmd
}

func newRuleListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "show the current revision of every rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			rules, err := eng.Rules.Current(cmd.Context(), eng.DB)
			if err != nil {
				return err
			}
			for _, r := range rules {
				fmt.Printf("%-20s %-12s %s\n", r.RuleID, r.Status, r.Body)
			}
			return nil
		},
	}
	return cmd
}

func newRuleHistoryCmd() *cobra.Command {
	var ruleID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "show every recorded revision of one rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ruleID == "" {
				return fmt.Errorf("rule history requires --id")
			}

			eng, _, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			revs, err := eng.Rules.History(cmd.Context(), eng.DB, ruleID)
			if err != nil {
				return err
			}
			for _, r := range revs {
				fmt.Printf("#%-4d %-12s %s\n", r.ID, r.Status, r.Body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleID, "id", "", "stable rule identifier")
	return cmd
}
