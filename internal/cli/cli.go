// Package cli implements the gatewright command shell. The shell drives one
// engine turn per invocation and persists everything through the store; the
// engine itself never parses arguments or prints.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/gatewright/gatewright/internal/activation"
	"github.com/gatewright/gatewright/internal/config"
	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/gate"
	"github.com/gatewright/gatewright/internal/snapshot"
	"github.com/gatewright/gatewright/internal/store"
	"github.com/gatewright/gatewright/internal/workflow"
)

// resolveConfigPath applies the usual precedence: --config flag, then the
// GATEWRIGHT_CONFIG environment variable, then gatewright.json in the cwd.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("GATEWRIGHT_CONFIG"); env != "" {
		return env
	}
	return "gatewright.json"
}

// openEngine loads config, opens the store, and wires a fully configured
// engine. The returned closer must be deferred.
func openEngine(configPath string) (*workflow.Engine, *config.Config, func(), error) {
	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	eng := workflow.NewEngine(db, registry)
	applyThresholds(eng, cfg)
	return eng, cfg, func() { db.Close() }, nil
}

func loadRegistry(cfg *config.Config) (*gate.Registry, error) {
	if cfg.GateSpecsPath != "" {
		return gate.LoadSpecs(cfg.GateSpecsPath)
	}
	return gate.NewRegistry(gate.DefaultSpecs())
}

func applyThresholds(eng *workflow.Engine, cfg *config.Config) {
	t := cfg.Thresholds
	eng.Evaluator.PassThreshold = t.GatePass
	eng.Evaluator.ExceptionThreshold = t.GateException
	eng.Confidence.NormalFloor = t.ConfidenceNormal
	eng.Confidence.DegradedFloor = t.ConfidenceDegraded
	eng.Confidence.DraftFloor = t.ConfidenceDraft
	eng.Confidence.SparseDensityFloor = t.SparseDensityFloor
	eng.Confidence.SparsePenalty = t.SparsePenalty
}

// findSession resolves --session or the --ticket/--run pair to a session.
func findSession(ctx context.Context, db *sql.DB, eng *workflow.Engine, sessionID, ticket, run string) (*domain.SessionState, error) {
	repo := eng.Sessions
	if sessionID != "" {
		return repo.GetByID(ctx, db, sessionID)
	}
	if ticket != "" && run != "" {
		return repo.GetByScope(ctx, db, domain.Scope{TicketID: ticket, SessionRunID: run})
	}
	return nil, fmt.Errorf("provide --session, or --ticket with --run")
}

// statusWord renders the turn status with the conventional colors.
func statusWord(s domain.StatusWord) string {
	switch s {
	case domain.StatusOK:
		return color.GreenString(string(s))
	case domain.StatusWarn:
		return color.YellowString(string(s))
	case domain.StatusBlocked:
		return color.RedString(string(s))
	default:
		return color.MagentaString(string(s))
	}
}

// printState writes the one-line session summary every command ends with.
func printState(state *domain.SessionState, status domain.StatusWord) {
	fmt.Printf("%s  session=%s phase=%s mode=%s confidence=%d status=%s\n",
		statusWord(status), state.SessionID, state.Phase, state.Mode, state.Confidence, state.Status)
	if state.ReasonCode != "" {
		fmt.Printf("     reason: %s\n", color.RedString(string(state.ReasonCode)))
	}
}

// refreshSnapshot persists the session's current resolved state to the
// cache, keyed by the repo-facts fingerprint. Called after every state
// mutation so the next run can trust discovery output.
func refreshSnapshot(ctx context.Context, cache *snapshot.Cache, eng *workflow.Engine, state *domain.SessionState, fingerprint string, scopes []string) error {
	gates, err := eng.GateResults.Latest(ctx, eng.DB, state.SessionID)
	if err != nil {
		return err
	}
	snap := snapshot.FromState(state, gates, fingerprint, "", fingerprint, scopes)
	return cache.Write(snap)
}

// persistTurnSnapshot rewrites the cached snapshot for the repository state
// named in config. Every mutating command calls it after its turn commits;
// the cache must never keep reporting a session's start-time phase.
func persistTurnSnapshot(ctx context.Context, cfg *config.Config, eng *workflow.Engine, state *domain.SessionState) error {
	facts, err := activation.LoadRepoFacts(cfg.RepoFactsPath)
	if err != nil {
		return err
	}
	rs, err := activation.LoadRuleset(cfg.RulesetPath)
	if err != nil {
		return err
	}
	cache, err := snapshot.NewCache(cfg.CacheDir)
	if err != nil {
		return err
	}
	return refreshSnapshot(ctx, cache, eng, state, facts.Hash, rs.TicketScope)
}

func printPending(report *domain.GateReport) {
	if report == nil {
		return
	}
	fmt.Printf("     gate %s: %s (score %d/%d)\n",
		report.Gate, report.Result.Decision, report.Result.Score, report.Result.MaxScore)
	for _, t := range report.Result.Trace {
		ref := t.EvidenceRef
		if ref == "" {
			ref = "-"
		}
		fmt.Printf("       %-28s %-16s %s\n", t.CriterionID, t.Result, ref)
	}
	fmt.Printf("     confirm with: %s\n", report.ConfirmCommand)
}
