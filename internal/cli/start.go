package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatewright/gatewright/internal/activation"
	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/snapshot"
)

func newStartCmd() *cobra.Command {
	var ticket, run string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "start a session for a ticket run and resolve its activation plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticket == "" || run == "" {
				return fmt.Errorf("start requires --ticket and --run")
			}

			eng, cfg, closeFn, err := openEngine(configFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			facts, err := activation.LoadRepoFacts(cfg.RepoFactsPath)
			if err != nil {
				return err
			}
			rs, err := activation.LoadRuleset(cfg.RulesetPath)
			if err != nil {
				return err
			}
			manifests, manifestsHash, err := activation.LoadManifests(cfg.ManifestsPath)
			if err != nil {
				return err
			}

			cache, err := snapshot.NewCache(cfg.CacheDir)
			if err != nil {
				return err
			}
			reportCachedSnapshot(cache, facts, rs)

			ctx := cmd.Context()
			res, err := eng.StartSession(ctx, domain.Scope{TicketID: ticket, SessionRunID: run}, facts, manifests, manifestsHash, rs)
			if err != nil {
				return err
			}

			printState(&res.State, res.Status)
			if err := refreshSnapshot(ctx, cache, eng, &res.State, facts.Hash, rs.TicketScope); err != nil {
				return fmt.Errorf("persist snapshot: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ticket, "ticket", "", "ticket identifier")
	cmd.Flags().StringVar(&run, "run", "", "session run identifier")
	return cmd
}

// reportCachedSnapshot checks whether a prior run of this repository state
// left a reusable snapshot. The engine always re-resolves; the check only
// tells the operator whether discovery work can be trusted from cache.
func reportCachedSnapshot(cache *snapshot.Cache, facts domain.RepoFacts, rs domain.Ruleset) {
	snap, err := cache.Read(facts.Hash)
	if err != nil || snap == nil {
		return
	}
	verdict := cache.Validate(snap, snapshot.Current{
		RepoSignature:   facts.Hash,
		ComponentScopes: rs.TicketScope,
	})
	if verdict.Valid && snap.RulesetHash == rs.Hash {
		fmt.Printf("     snapshot: valid (phase %s, confidence %d)\n", snap.Phase, snap.Confidence)
		return
	}
	reason := verdict.Reason
	if reason == "" {
		reason = "ruleset-hash-mismatch"
	}
	fmt.Printf("     snapshot: invalidated (%s)\n", reason)
}
