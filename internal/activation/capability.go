// Package activation deterministically maps repository facts to an
// activation plan: one profile plus the set of active addons, with a
// precedence trace for every decision taken along the way.
package activation

import (
	"sort"

	"github.com/gatewright/gatewright/internal/domain"
)

// DeriveCapabilities computes the capability set from raw signals using the
// ruleset's derivation table, merged with any capabilities the facts provider
// supplied directly. Pure function; output is sorted and deduplicated.
func DeriveCapabilities(facts domain.RepoFacts, rules []domain.CapabilityRule) []string {
	signals := make(map[string]bool, len(facts.Signals))
	for _, s := range facts.Signals {
		signals[s] = true
	}

	set := make(map[string]bool, len(facts.Capabilities))
	for _, c := range facts.Capabilities {
		set[c] = true
	}
	for _, rule := range rules {
		if signals[rule.Signal] {
			set[rule.Capability] = true
		}
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// containsAll reports whether every element of want is in the have set.
func containsAll(have map[string]bool, want []string) bool {
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}

// containsAny reports whether at least one element of want is in the have set.
func containsAny(have map[string]bool, want []string) bool {
	for _, w := range want {
		if have[w] {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
