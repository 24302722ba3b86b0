package activation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gatewright/gatewright/internal/domain"
)

// Resolver maps (RepoFacts, Manifests, Ruleset) to an ActivationPlan.
// Resolve is a pure function of its inputs: re-running with identical input
// hashes reproduces a byte-identical serialized plan.
type Resolver struct{}

// Resolve evaluates every manifest against the derived capabilities, enforces
// surface ownership, resolves touch conflicts by precedence, and selects the
// profile. All activation errors are terminal for the call and map 1:1 to
// BLOCKED-* reason codes.
func (r *Resolver) Resolve(facts domain.RepoFacts, manifests []domain.AddonManifest, rs domain.Ruleset) (*domain.ActivationPlan, error) {
	caps := DeriveCapabilities(facts, rs.CapabilityRules)
	capSet := toSet(caps)
	signalSet := toSet(facts.Signals)

	// Evaluation order is fixed by key so the trace is deterministic.
	sorted := make([]domain.AddonManifest, len(manifests))
	copy(sorted, manifests)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var trace []domain.TraceDecision
	active := make(map[string]domain.AddonManifest)
	for _, m := range sorted {
		on, rule := evaluateManifest(m, capSet, signalSet)
		outcome := "skipped"
		if on {
			outcome = "activated"
			active[m.Key] = m
		}
		trace = append(trace, domain.TraceDecision{Subject: m.Key, Rule: rule, Outcome: outcome})
	}

	// A required addon declared in the ticket's scope must have activated.
	byKey := make(map[string]domain.AddonManifest, len(sorted))
	for _, m := range sorted {
		byKey[m.Key] = m
	}
	scope := make([]string, len(rs.TicketScope))
	copy(scope, rs.TicketScope)
	sort.Strings(scope)
	for _, key := range scope {
		m, known := byKey[key]
		if !known {
			return nil, domain.MissingAddonError(key)
		}
		if m.Class == domain.ClassRequired {
			if _, on := active[key]; !on {
				return nil, domain.MissingAddonError(key)
			}
		}
	}

	if err := checkOwnership(active, &trace); err != nil {
		return nil, err
	}
	if err := resolveTouchConflicts(active, &trace); err != nil {
		return nil, err
	}

	profile, source, err := selectProfile(rs, signalSet, &trace)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(active))
	for k := range active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	addons := make([]domain.AddonRef, 0, len(keys))
	for _, k := range keys {
		m := active[k]
		addons = append(addons, domain.AddonRef{Key: m.Key, Class: m.Class, Tier: m.Tier})
	}

	return &domain.ActivationPlan{
		Profile:         profile,
		ProfileSource:   source,
		Addons:          addons,
		PrecedenceTrace: trace,
	}, nil
}

// evaluateManifest decides whether a manifest activates. Capability evidence
// is the primary test; raw signal matching is the fallback when the manifest
// declares no capability requirements. A manifest with no conditions at all
// activates unconditionally.
func evaluateManifest(m domain.AddonManifest, caps, signals map[string]bool) (bool, string) {
	if len(m.CapabilitiesAll) > 0 || len(m.CapabilitiesAny) > 0 {
		if !containsAll(caps, m.CapabilitiesAll) {
			return false, "capabilities-all"
		}
		if len(m.CapabilitiesAny) > 0 && !containsAny(caps, m.CapabilitiesAny) {
			return false, "capabilities-any"
		}
		return true, "capabilities"
	}
	if len(m.Signals) > 0 {
		if containsAll(signals, m.Signals) {
			return true, "signals"
		}
		return false, "signals"
	}
	return true, "unconditional"
}

// checkOwnership enforces surface exclusivity: two active addons must not
// both declare the same entry in owns_surfaces.
func checkOwnership(active map[string]domain.AddonManifest, trace *[]domain.TraceDecision) error {
	owners := make(map[string][]string)
	for _, m := range active {
		for _, s := range m.OwnsSurfaces {
			owners[s] = append(owners[s], m.Key)
		}
	}

	surfaces := make([]string, 0, len(owners))
	for s := range owners {
		surfaces = append(surfaces, s)
	}
	sort.Strings(surfaces)

	for _, s := range surfaces {
		keys := owners[s]
		sort.Strings(keys)
		if len(keys) > 1 {
			return domain.SurfaceConflictError(s, keys)
		}
		*trace = append(*trace, domain.TraceDecision{
			Subject: s,
			Rule:    "owns-surface",
			Outcome: keys[0],
		})
	}
	return nil
}

// resolveTouchConflicts settles overlaps on touches_surfaces: higher tier
// first, then the more restrictive class, then the narrowest declared scope.
// A tie after all three is an activation error.
func resolveTouchConflicts(active map[string]domain.AddonManifest, trace *[]domain.TraceDecision) error {
	touchers := make(map[string][]domain.AddonManifest)
	for _, m := range active {
		for _, s := range m.TouchesSurfaces {
			touchers[s] = append(touchers[s], m)
		}
	}

	surfaces := make([]string, 0, len(touchers))
	for s := range touchers {
		surfaces = append(surfaces, s)
	}
	sort.Strings(surfaces)

	for _, s := range surfaces {
		ms := touchers[s]
		if len(ms) < 2 {
			continue
		}
		sort.Slice(ms, func(i, j int) bool { return ms[i].Key < ms[j].Key })

		winner, rule, ok := pickWinner(ms)
		if !ok {
			keys := make([]string, len(ms))
			for i, m := range ms {
				keys[i] = m.Key
			}
			return domain.SurfaceConflictError(s, keys)
		}
		*trace = append(*trace, domain.TraceDecision{
			Subject: s,
			Rule:    rule,
			Outcome: winner.Key,
		})
	}
	return nil
}

// pickWinner applies the precedence ladder to a set of conflicting addons.
func pickWinner(ms []domain.AddonManifest) (domain.AddonManifest, string, bool) {
	best := func(score func(domain.AddonManifest) int) []domain.AddonManifest {
		top := score(ms[0])
		for _, m := range ms[1:] {
			if s := score(m); s > top {
				top = s
			}
		}
		var out []domain.AddonManifest
		for _, m := range ms {
			if score(m) == top {
				out = append(out, m)
			}
		}
		return out
	}

	tier := best(func(m domain.AddonManifest) int { return tierRank(m.Tier) })
	if len(tier) == 1 {
		return tier[0], "precedence-tier", true
	}

	ms = tier
	restrictive := best(func(m domain.AddonManifest) int {
		if m.Class == domain.ClassRequired {
			return 1
		}
		return 0
	})
	if len(restrictive) == 1 {
		return restrictive[0], "most-restrictive", true
	}

	ms = restrictive
	narrow := best(func(m domain.AddonManifest) int { return -len(m.TouchesSurfaces) })
	if len(narrow) == 1 {
		return narrow[0], "narrowest-scope", true
	}

	return domain.AddonManifest{}, "", false
}

func tierRank(t domain.AddonTier) int {
	switch t {
	case domain.TierCore:
		return 3
	case domain.TierProfile:
		return 2
	default:
		return 1
	}
}

// selectProfile picks the active profile. An explicit ruleset profile wins;
// otherwise the fallback table must match exactly one distinct profile.
func selectProfile(rs domain.Ruleset, signals map[string]bool, trace *[]domain.TraceDecision) (string, string, error) {
	if rs.Profile != "" {
		*trace = append(*trace, domain.TraceDecision{
			Subject: "profile",
			Rule:    "ruleset",
			Outcome: rs.Profile,
		})
		return rs.Profile, domain.ProfileSourceRuleset, nil
	}

	matched := make(map[string]bool)
	for _, fp := range rs.FallbackProfiles {
		if signals[fp.Signal] {
			matched[fp.Profile] = true
		}
	}

	profiles := make([]string, 0, len(matched))
	for p := range matched {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)

	if len(profiles) != 1 {
		return "", "", &domain.EngineError{
			Code:    domain.ErrAmbiguousProfile.Code,
			Message: fmt.Sprintf("fallback matched %d profiles: %s", len(profiles), strings.Join(profiles, ", ")),
			Reason:  domain.ReasonAmbiguousProfile,
		}
	}

	*trace = append(*trace, domain.TraceDecision{
		Subject: "profile",
		Rule:    "repo-fallback",
		Outcome: profiles[0],
	})
	return profiles[0], domain.ProfileSourceFallback, nil
}
