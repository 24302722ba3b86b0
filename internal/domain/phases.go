package domain

// Phases are not numerically comparable. Membership in derived sets is always
// expressed through the explicit named sets below, never a range check.

// forwardPath defines the single legal forward successor of each phase.
var forwardPath = map[Phase]Phase{
	PhaseBootstrap:        PhaseDiscovery,
	PhaseDiscovery:        PhasePlanning,
	PhasePlanning:         PhaseArchitectureGate,
	PhaseArchitectureGate: PhaseTestQualityGate,
	PhaseTestQualityGate:  PhaseComplianceGate,
	PhaseComplianceGate:   PhaseImplementationGate,
}

// GatePhases is the set of phases that halt auto-advance and require an
// external confirmation before the workflow continues.
var GatePhases = map[Phase]bool{
	PhaseArchitectureGate:   true,
	PhaseTestQualityGate:    true,
	PhaseComplianceGate:     true,
	PhaseImplementationGate: true,
}

// PlanningOrLaterPhases is the set of phases at or past planning.
var PlanningOrLaterPhases = map[Phase]bool{
	PhasePlanning:           true,
	PhaseArchitectureGate:   true,
	PhaseTestQualityGate:    true,
	PhaseComplianceGate:     true,
	PhaseImplementationGate: true,
}

// gateForPhase maps each gate phase to the gate evaluated there.
var gateForPhase = map[Phase]GateID{
	PhaseArchitectureGate:   GateArchitecture,
	PhaseTestQualityGate:    GateTestQuality,
	PhaseComplianceGate:     GateCompliance,
	PhaseImplementationGate: GateImplementation,
}

// MandatoryGates lists every gate that must pass before irreversible output
// is permitted, in workflow order.
var MandatoryGates = []GateID{
	GateArchitecture,
	GateTestQuality,
	GateCompliance,
	GateImplementation,
}

// NextPhase returns the forward successor of a phase. The second return is
// false for the final phase, which has no forward successor.
func NextPhase(p Phase) (Phase, bool) {
	next, ok := forwardPath[p]
	return next, ok
}

// IsGatePhase reports whether a phase is a gate checkpoint.
func IsGatePhase(p Phase) bool {
	return GatePhases[p]
}

// GateForPhase returns the gate evaluated at a gate phase.
func GateForPhase(p Phase) (GateID, bool) {
	g, ok := gateForPhase[p]
	return g, ok
}

// IsValidTransition checks whether a forward phase transition is legal.
func IsValidTransition(from, to Phase) bool {
	next, ok := forwardPath[from]
	return ok && next == to
}

// ValidPhase reports whether p is a member of the phase set.
func ValidPhase(p Phase) bool {
	if _, ok := forwardPath[p]; ok {
		return true
	}
	return p == PhaseImplementationGate
}
