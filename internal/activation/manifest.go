package activation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gatewright/gatewright/internal/domain"
)

// LoadManifests reads addon manifests from a YAML file. The returned hash is
// the content digest of the raw file, used to pin the session's inputs.
func LoadManifests(path string) ([]domain.AddonManifest, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read manifests: %w", err)
	}

	var doc struct {
		Addons []domain.AddonManifest `yaml:"addons"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("parse manifests YAML: %w", err)
	}

	if err := ValidateManifests(doc.Addons); err != nil {
		return nil, "", err
	}
	return doc.Addons, HashBytes(data), nil
}

// ValidateManifests rejects manifests that would make resolution ambiguous:
// empty or duplicate keys, unknown classes, unknown tiers.
func ValidateManifests(manifests []domain.AddonManifest) error {
	seen := make(map[string]bool, len(manifests))
	for _, m := range manifests {
		if m.Key == "" {
			return &domain.EngineError{
				Code:    domain.ErrManifestInvalid.Code,
				Message: "manifest with empty key",
			}
		}
		if seen[m.Key] {
			return &domain.EngineError{
				Code:    domain.ErrManifestInvalid.Code,
				Message: fmt.Sprintf("duplicate manifest key %q", m.Key),
			}
		}
		seen[m.Key] = true

		switch m.Class {
		case domain.ClassRequired, domain.ClassAdvisory:
		default:
			return &domain.EngineError{
				Code:    domain.ErrManifestInvalid.Code,
				Message: fmt.Sprintf("manifest %q has unknown class %q", m.Key, m.Class),
			}
		}
		switch m.Tier {
		case domain.TierCore, domain.TierProfile, domain.TierAddon:
		default:
			return &domain.EngineError{
				Code:    domain.ErrManifestInvalid.Code,
				Message: fmt.Sprintf("manifest %q has unknown tier %q", m.Key, m.Tier),
			}
		}
	}
	return nil
}

// LoadRuleset reads a ruleset from a YAML file. A missing hash field is
// filled with the content digest.
func LoadRuleset(path string) (domain.Ruleset, error) {
	var rs domain.Ruleset

	data, err := os.ReadFile(path)
	if err != nil {
		return rs, fmt.Errorf("read ruleset: %w", err)
	}
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return rs, fmt.Errorf("parse ruleset YAML: %w", err)
	}
	if rs.Hash == "" {
		rs.Hash = HashBytes(data)
	}
	return rs, nil
}

// LoadRepoFacts reads normalized repository facts from a YAML file produced
// by an external facts provider. A missing hash field is filled with the
// content digest.
func LoadRepoFacts(path string) (domain.RepoFacts, error) {
	var facts domain.RepoFacts

	data, err := os.ReadFile(path)
	if err != nil {
		return facts, fmt.Errorf("read repo facts: %w", err)
	}
	if err := yaml.Unmarshal(data, &facts); err != nil {
		return facts, fmt.Errorf("parse repo facts YAML: %w", err)
	}
	if facts.Hash == "" {
		facts.Hash = HashBytes(data)
	}
	return facts, nil
}
