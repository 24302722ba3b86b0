package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the gatewright command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatewright",
		Short: "deterministic governance workflow engine",
		Long: `gatewright drives a ticket through a fixed sequence of workflow
phases. Every advance is a single transaction: activation, evidence
queries, gate evaluation, and the state update commit together or not
at all. A blocked session always carries a machine-readable reason
code and a recovery path.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("config", "", "path to the config file (default gatewright.json, or $GATEWRIGHT_CONFIG)")

	root.AddCommand(
		newStartCmd(),
		newAdvanceCmd(),
		newConfirmGateCmd(),
		newAbortCmd(),
		newWhyBlockedCmd(),
		newExplainActivationCmd(),
		newStatusCmd(),
		newEvidenceCmd(),
		newRuleCmd(),
	)
	return root
}

func configFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("config")
	return v
}
