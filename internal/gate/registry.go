package gate

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gatewright/gatewright/internal/domain"
)

// Registry is a typed map from gate ID to its specification, built once at
// load time and looked up by key. No pattern-matched dispatch at call sites.
type Registry struct {
	specs map[domain.GateID]domain.GateSpec
}

// NewRegistry creates a registry from specs, validating each.
func NewRegistry(specs []domain.GateSpec) (*Registry, error) {
	r := &Registry{specs: make(map[domain.GateID]domain.GateSpec, len(specs))}
	for _, s := range specs {
		if err := validateSpec(s); err != nil {
			return nil, err
		}
		if _, dup := r.specs[s.ID]; dup {
			return nil, &domain.EngineError{
				Code:    domain.ErrGateSpecInvalid.Code,
				Message: fmt.Sprintf("duplicate gate spec %q", s.ID),
			}
		}
		r.specs[s.ID] = s
	}
	return r, nil
}

// Specs returns every registered spec, ordered by gate ID.
func (r *Registry) Specs() []domain.GateSpec {
	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	out := make([]domain.GateSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.specs[domain.GateID(id)])
	}
	return out
}

// Get returns the spec for a gate.
func (r *Registry) Get(id domain.GateID) (domain.GateSpec, error) {
	s, ok := r.specs[id]
	if !ok {
		return domain.GateSpec{}, &domain.EngineError{
			Code:    domain.ErrGateUnknown.Code,
			Message: fmt.Sprintf("no gate specification registered for %q", id),
		}
	}
	return s, nil
}

func validateSpec(s domain.GateSpec) error {
	if s.ID == "" {
		return &domain.EngineError{
			Code:    domain.ErrGateSpecInvalid.Code,
			Message: "gate spec with empty id",
		}
	}
	if len(s.Criteria) == 0 {
		return &domain.EngineError{
			Code:    domain.ErrGateZeroCriteria.Code,
			Message: fmt.Sprintf("gate %q has no criteria", s.ID),
		}
	}
	seen := make(map[string]bool, len(s.Criteria))
	for _, c := range s.Criteria {
		if c.ID == "" {
			return &domain.EngineError{
				Code:    domain.ErrGateSpecInvalid.Code,
				Message: fmt.Sprintf("gate %q has a criterion with empty id", s.ID),
			}
		}
		if seen[c.ID] {
			return &domain.EngineError{
				Code:    domain.ErrGateSpecInvalid.Code,
				Message: fmt.Sprintf("gate %q has duplicate criterion %q", s.ID, c.ID),
			}
		}
		seen[c.ID] = true
		if c.Weight < 0 {
			return &domain.EngineError{
				Code:    domain.ErrGateSpecInvalid.Code,
				Message: fmt.Sprintf("gate %q criterion %q has negative weight", s.ID, c.ID),
			}
		}
	}
	return nil
}

// LoadSpecs reads gate specifications from a YAML file.
func LoadSpecs(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gate specs: %w", err)
	}

	var doc struct {
		Gates []domain.GateSpec `yaml:"gates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse gate specs YAML: %w", err)
	}
	return NewRegistry(doc.Gates)
}

// DefaultSpecs returns the built-in gate set covering the four mandatory
// checkpoints. Deployments override these with a specs file.
func DefaultSpecs() []domain.GateSpec {
	return []domain.GateSpec{
		{
			ID:    domain.GateArchitecture,
			Phase: domain.PhaseArchitectureGate,
			Criteria: []domain.Criterion{
				{ID: "arch-decision-recorded", ClaimKind: "architecture-decision", Weight: 5, Critical: true},
				{ID: "surface-map-complete", ClaimKind: "surface-map", Weight: 3},
				{ID: "dependency-review", ClaimKind: "dependency-review", Weight: 2},
			},
		},
		{
			ID:    domain.GateTestQuality,
			Phase: domain.PhaseTestQualityGate,
			Criteria: []domain.Criterion{
				{ID: "tests-green", ClaimKind: "tests-green", Weight: 5, Critical: true},
				{ID: "coverage-adequate", ClaimKind: "coverage", Weight: 3},
				{ID: "regression-cases", ClaimKind: "regression-cases", Weight: 2},
			},
		},
		{
			ID:    domain.GateCompliance,
			Phase: domain.PhaseComplianceGate,
			Criteria: []domain.Criterion{
				{ID: "rules-applied", ClaimKind: "rules-applied", Weight: 5, Critical: true},
				{ID: "register-updated", ClaimKind: "rule-register-updated", Weight: 3},
			},
		},
		{
			ID:    domain.GateImplementation,
			Phase: domain.PhaseImplementationGate,
			Criteria: []domain.Criterion{
				{ID: "build-clean", ClaimKind: "build-clean", Weight: 5, Critical: true},
				{ID: "diff-reviewed", ClaimKind: "diff-reviewed", Weight: 3},
				{ID: "docs-updated", ClaimKind: "docs-updated", Weight: 1},
			},
		},
	}
}
