package workflow

import "github.com/gatewright/gatewright/internal/domain"

// ConfidenceController derives a confidence score from evidence completeness
// and maps it onto a mode band. Adjustments are additive integer deltas
// applied before banding, never applied after a mode has been computed.
type ConfidenceController struct {
	// NormalFloor and friends are the banding cutoffs (defaults 90/70/50).
	NormalFloor   int
	DegradedFloor int
	DraftFloor    int

	// SparseDensityFloor marks a repository whose domain-rule evidence is
	// sparse relative to its size; below it SparsePenalty is applied.
	SparseDensityFloor int
	SparsePenalty      int
}

// NewConfidenceController creates a controller with the standard bands.
func NewConfidenceController() *ConfidenceController {
	return &ConfidenceController{
		NormalFloor:        90,
		DegradedFloor:      70,
		DraftFloor:         50,
		SparseDensityFloor: 30,
		SparsePenalty:      15,
	}
}

// Score computes the confidence value and its mode band.
// evidenceCompleteness and domainSignalDensity are integers 0-100; extra
// deltas (positive or negative) are applied before banding.
func (c *ConfidenceController) Score(evidenceCompleteness, domainSignalDensity int, deltas ...int) (int, domain.Mode) {
	confidence := evidenceCompleteness
	if domainSignalDensity < c.SparseDensityFloor {
		confidence -= c.SparsePenalty
	}
	for _, d := range deltas {
		confidence += d
	}
	confidence = clamp(confidence, 0, 100)
	return confidence, c.band(confidence)
}

func (c *ConfidenceController) band(confidence int) domain.Mode {
	switch {
	case confidence >= c.NormalFloor:
		return domain.ModeNormal
	case confidence >= c.DegradedFloor:
		return domain.ModeDegraded
	case confidence >= c.DraftFloor:
		return domain.ModeDraft
	default:
		return domain.ModeBlocked
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
