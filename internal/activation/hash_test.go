package activation

import (
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
)

func TestCanonicalJSON_Stable(t *testing.T) {
	plan := &domain.ActivationPlan{
		Profile:       "backend-go",
		ProfileSource: domain.ProfileSourceRuleset,
		Addons: []domain.AddonRef{
			{Key: "a", Class: domain.ClassAdvisory, Tier: domain.TierAddon},
			{Key: "b", Class: domain.ClassRequired, Tier: domain.TierCore},
		},
	}

	first, err := CanonicalJSON(plan)
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := CanonicalJSON(plan)
		if err != nil {
			t.Fatalf("CanonicalJSON run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("serialization not stable:\n%s\nvs\n%s", again, first)
		}
	}
}

func TestHashOf(t *testing.T) {
	a := HashOf(`{"profile":"backend-go"}`)
	b := HashOf(`{"profile":"backend-go"}`)
	c := HashOf(`{"profile":"frontend-node"}`)

	if a != b {
		t.Errorf("identical input hashed differently: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different inputs produced the same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestDeriveCapabilities(t *testing.T) {
	facts := domain.RepoFacts{
		Signals:      []string{"pom.xml"},
		Capabilities: []string{"provided-cap"},
	}
	rules := []domain.CapabilityRule{
		{Signal: "pom.xml", Capability: "maven-build"},
		{Signal: "go.mod", Capability: "go-build"}, // signal absent
	}

	got := DeriveCapabilities(facts, rules)
	want := []string{"maven-build", "provided-cap"}
	if len(got) != len(want) {
		t.Fatalf("caps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("caps[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
