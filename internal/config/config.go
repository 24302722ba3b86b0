package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gatewright/gatewright/internal/domain"
)

// Thresholds holds the policy constants. The 90/70/50 confidence bands and
// 0.9/0.7 gate-score cutoffs are defaults, not law; deployments tune them
// here.
type Thresholds struct {
	ConfidenceNormal   int     `json:"confidence_normal"`
	ConfidenceDegraded int     `json:"confidence_degraded"`
	ConfidenceDraft    int     `json:"confidence_draft"`
	GatePass           float64 `json:"gate_pass"`
	GateException      float64 `json:"gate_exception"`
	SparseDensityFloor int     `json:"sparse_density_floor"`
	SparsePenalty      int     `json:"sparse_penalty"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath        string     `json:"db_path"`
	CacheDir      string     `json:"cache_dir"`
	ManifestsPath string     `json:"manifests_path"`
	RulesetPath   string     `json:"ruleset_path"`
	RepoFactsPath string     `json:"repo_facts_path"`
	GateSpecsPath string     `json:"gate_specs_path"` // empty uses the built-in gate set
	Thresholds    Thresholds `json:"thresholds"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = ".gatewright/cache"
	}
	if c.Thresholds.ConfidenceNormal == 0 {
		c.Thresholds.ConfidenceNormal = 90
	}
	if c.Thresholds.ConfidenceDegraded == 0 {
		c.Thresholds.ConfidenceDegraded = 70
	}
	if c.Thresholds.ConfidenceDraft == 0 {
		c.Thresholds.ConfidenceDraft = 50
	}
	if c.Thresholds.GatePass == 0 {
		c.Thresholds.GatePass = 0.9
	}
	if c.Thresholds.GateException == 0 {
		c.Thresholds.GateException = 0.7
	}
	if c.Thresholds.SparseDensityFloor == 0 {
		c.Thresholds.SparseDensityFloor = 30
	}
	if c.Thresholds.SparsePenalty == 0 {
		c.Thresholds.SparsePenalty = 15
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.ManifestsPath == "" {
		problems = append(problems, "manifests_path is required")
	}
	if c.RulesetPath == "" {
		problems = append(problems, "ruleset_path is required")
	}
	if c.RepoFactsPath == "" {
		problems = append(problems, "repo_facts_path is required")
	}

	t := c.Thresholds
	if !(t.ConfidenceNormal > t.ConfidenceDegraded && t.ConfidenceDegraded > t.ConfidenceDraft && t.ConfidenceDraft > 0) {
		problems = append(problems, "confidence bands must be strictly descending and positive")
	}
	if !(t.GatePass > t.GateException && t.GateException > 0 && t.GatePass <= 1) {
		problems = append(problems, "gate thresholds must satisfy 0 < exception < pass <= 1")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
