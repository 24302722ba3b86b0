package activation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadManifests(t *testing.T) {
	path := writeFile(t, "addons.yaml", `
addons:
  - key: jpa-persistence
    class: advisory
    tier: addon
    capabilities_all: [maven-build]
    owns_surfaces: [db/schema]
  - key: payments
    class: required
    tier: profile
    signals: [stripe.toml]
`)

	manifests, hash, err := LoadManifests(path)
	if err != nil {
		t.Fatalf("LoadManifests: %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("len = %d, want 2", len(manifests))
	}
	if hash == "" {
		t.Error("content hash is empty")
	}

	m := manifests[0]
	if m.Key != "jpa-persistence" || m.Class != domain.ClassAdvisory || m.Tier != domain.TierAddon {
		t.Errorf("first manifest = %+v", m)
	}
	if len(m.CapabilitiesAll) != 1 || m.CapabilitiesAll[0] != "maven-build" {
		t.Errorf("CapabilitiesAll = %v", m.CapabilitiesAll)
	}
	if manifests[1].Class != domain.ClassRequired {
		t.Errorf("second manifest class = %q, want required", manifests[1].Class)
	}
}

func TestValidateManifests(t *testing.T) {
	tests := []struct {
		name      string
		manifests []domain.AddonManifest
		wantErr   bool
	}{
		{
			name: "valid",
			manifests: []domain.AddonManifest{
				{Key: "a", Class: domain.ClassAdvisory, Tier: domain.TierAddon},
			},
		},
		{
			name:      "empty key",
			manifests: []domain.AddonManifest{{Class: domain.ClassAdvisory, Tier: domain.TierAddon}},
			wantErr:   true,
		},
		{
			name: "duplicate key",
			manifests: []domain.AddonManifest{
				{Key: "a", Class: domain.ClassAdvisory, Tier: domain.TierAddon},
				{Key: "a", Class: domain.ClassAdvisory, Tier: domain.TierAddon},
			},
			wantErr: true,
		},
		{
			name:      "unknown class",
			manifests: []domain.AddonManifest{{Key: "a", Class: "optional", Tier: domain.TierAddon}},
			wantErr:   true,
		},
		{
			name:      "unknown tier",
			manifests: []domain.AddonManifest{{Key: "a", Class: domain.ClassAdvisory, Tier: "extra"}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateManifests(tt.manifests)
			if tt.wantErr && !errors.Is(err, domain.ErrManifestInvalid) {
				t.Errorf("error = %v, want ErrManifestInvalid", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadRuleset_FillsHash(t *testing.T) {
	path := writeFile(t, "ruleset.yaml", `
profile: backend-java
capability_rules:
  - signal: pom.xml
    capability: maven-build
ticket_scope: [payments]
`)

	rs, err := LoadRuleset(path)
	if err != nil {
		t.Fatalf("LoadRuleset: %v", err)
	}
	if rs.Profile != "backend-java" {
		t.Errorf("Profile = %q, want backend-java", rs.Profile)
	}
	if len(rs.CapabilityRules) != 1 || rs.CapabilityRules[0].Capability != "maven-build" {
		t.Errorf("CapabilityRules = %+v", rs.CapabilityRules)
	}
	if rs.Hash == "" {
		t.Error("Hash not filled from content digest")
	}
}

func TestLoadRepoFacts_FillsHash(t *testing.T) {
	path := writeFile(t, "facts.yaml", `
signals: [pom.xml, src/main/java]
`)

	facts, err := LoadRepoFacts(path)
	if err != nil {
		t.Fatalf("LoadRepoFacts: %v", err)
	}
	if len(facts.Signals) != 2 {
		t.Errorf("Signals = %v", facts.Signals)
	}
	if facts.Hash == "" {
		t.Error("Hash not filled from content digest")
	}
}
