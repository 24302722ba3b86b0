package domain

import "strings"

// ReasonCode identifies why a session is blocked. Every code begins with
// "BLOCKED-". Codes that name a specific subject carry it after a colon,
// e.g. "BLOCKED-MISSING-ADDON:security-baseline".
type ReasonCode string

const (
	ReasonAmbiguousProfile ReasonCode = "BLOCKED-AMBIGUOUS-PROFILE"
	ReasonMissingAddon     ReasonCode = "BLOCKED-MISSING-ADDON"
	ReasonAddonConflict    ReasonCode = "BLOCKED-ADDON-CONFLICT"
	ReasonMissingEvidence  ReasonCode = "BLOCKED-MISSING-EVIDENCE"
	ReasonGateFailed       ReasonCode = "BLOCKED-GATE-FAILED"
	ReasonLowConfidence    ReasonCode = "BLOCKED-LOW-CONFIDENCE"
	ReasonStalePlan        ReasonCode = "BLOCKED-STALE-PLAN"
)

// WithSubject attaches a subject to a base reason code.
func (c ReasonCode) WithSubject(subject string) ReasonCode {
	return ReasonCode(string(c) + ":" + subject)
}

// Base strips any subject suffix, returning the code used for registry lookup.
func (c ReasonCode) Base() ReasonCode {
	s := string(c)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return ReasonCode(s[:i])
	}
	return c
}

// Subject returns the subject suffix, or "" when the code carries none.
func (c ReasonCode) Subject() string {
	s := string(c)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Valid reports whether the code follows the BLOCKED-* convention.
func (c ReasonCode) Valid() bool {
	return strings.HasPrefix(string(c), "BLOCKED-")
}
