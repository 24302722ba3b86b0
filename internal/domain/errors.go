package domain

import (
	"errors"
	"fmt"
)

// EngineError is the unified error type for the engine.
// Each error has a numeric code, a human-readable message, and optionally the
// BLOCKED-* reason code it maps to.
type EngineError struct {
	Code    int
	Message string
	Reason  ReasonCode // empty for errors with no blocked mapping
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("engine error %d [%s]: %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is matches errors by code so sentinel comparisons survive wrapping and
// subject-bearing variants.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// NewBlockedError creates an EngineError bound to a reason code.
func NewBlockedError(code int, reason ReasonCode, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg, Reason: reason}
}

// ReasonOf extracts the reason code from an error, if it carries one.
func ReasonOf(err error) (ReasonCode, bool) {
	var e *EngineError
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason, true
	}
	return "", false
}

// ---- Transition / session errors (-32010 to -32039) ----
// Transition errors are programming-contract violations: unreachable if
// callers respect the state machine. Always fatal to the current turn.

var (
	ErrInvalidTransition = &EngineError{Code: -32010, Message: "invalid phase transition"}
	ErrSessionNotFound   = &EngineError{Code: -32011, Message: "session not found"}
	ErrSessionTerminal   = &EngineError{Code: -32012, Message: "session already reached a terminal state"}
	ErrDuplicateSession  = &EngineError{Code: -32013, Message: "session already exists"}
	ErrSessionBlocked    = &EngineError{Code: -32014, Message: "session is blocked"}
	ErrOptimisticLock    = &EngineError{Code: -32015, Message: "optimistic lock conflict: state was modified concurrently"}
	ErrInvalidPhase      = &EngineError{Code: -32016, Message: "invalid phase value"}
	ErrNotGatePhase      = &EngineError{Code: -32017, Message: "current phase is not a gate phase"}
	ErrGateNotConfirmed  = &EngineError{Code: -32018, Message: "gate requires confirmation before advancing"}
	ErrDraftOnly         = &EngineError{Code: -32019, Message: "draft mode permits planning output only"}
)

// ---- Activation errors (-32040 to -32069) ----
// Activation errors are always fatal to the current turn, never silently
// downgraded, and map 1:1 to reason codes.

var (
	ErrAmbiguousProfile = &EngineError{Code: -32040, Message: "no unambiguous profile for repository facts", Reason: ReasonAmbiguousProfile}
	ErrMissingAddon     = &EngineError{Code: -32041, Message: "required addon in ticket scope failed activation", Reason: ReasonMissingAddon}
	ErrSurfaceConflict  = &EngineError{Code: -32042, Message: "addons conflict on a declared surface", Reason: ReasonAddonConflict}
	ErrManifestInvalid  = &EngineError{Code: -32043, Message: "addon manifest failed validation"}
	ErrRulesetInvalid   = &EngineError{Code: -32044, Message: "ruleset failed validation"}
)

// MissingAddonError builds the subject-bearing variant for a specific addon key.
func MissingAddonError(key string) *EngineError {
	return &EngineError{
		Code:    ErrMissingAddon.Code,
		Message: fmt.Sprintf("required addon %q is in ticket scope but did not activate", key),
		Reason:  ReasonMissingAddon.WithSubject(key),
	}
}

// SurfaceConflictError builds the subject-bearing variant for a specific surface.
func SurfaceConflictError(surface string, keys []string) *EngineError {
	return &EngineError{
		Code:    ErrSurfaceConflict.Code,
		Message: fmt.Sprintf("addons %v conflict on surface %q", keys, surface),
		Reason:  ReasonAddonConflict.WithSubject(surface),
	}
}

// ---- Evidence errors (-32070 to -32099) ----
// Evidence errors degrade the claim, not the turn: they surface as
// NOT_VERIFIED on the specific claim, and as BLOCKED only at gate evaluation.

var (
	ErrEvidenceNotFound  = &EngineError{Code: -32070, Message: "evidence item not found"}
	ErrEvidenceImmutable = &EngineError{Code: -32071, Message: "evidence items are immutable once recorded"}
	ErrEvidenceScope     = &EngineError{Code: -32072, Message: "evidence scope does not match session scope"}
	ErrClaimKindEmpty    = &EngineError{Code: -32073, Message: "claim kind must not be empty"}
	ErrSupersededTarget  = &EngineError{Code: -32074, Message: "cannot supersede an already-superseded item"}
)

// ---- Gate errors (-32100 to -32129) ----

var (
	ErrGateUnknown      = &EngineError{Code: -32100, Message: "no gate specification registered for gate"}
	ErrGateSpecInvalid  = &EngineError{Code: -32101, Message: "gate specification failed validation"}
	ErrGateZeroCriteria = &EngineError{Code: -32102, Message: "gate has no criteria"}
)

// ---- Cache / snapshot errors (-32130 to -32159) ----
// Cache errors are recoverable: the caller falls back to full recomputation.

var (
	ErrSnapshotInvalid   = &EngineError{Code: -32130, Message: "snapshot failed validation"}
	ErrSnapshotSchema    = &EngineError{Code: -32131, Message: "snapshot schema version mismatch"}
	ErrSnapshotSentinel  = &EngineError{Code: -32132, Message: "snapshot contains a forbidden placeholder value"}
	ErrSignatureMismatch = &EngineError{Code: -32133, Message: "repository signature mismatch"}
	ErrSnapshotWrite     = &EngineError{Code: -32134, Message: "snapshot write failed"}
)

// ---- Store / config errors (-32160 to -32189) ----

var (
	ErrStoreInit         = &EngineError{Code: -32160, Message: "failed to initialize store"}
	ErrStoreQuery        = &EngineError{Code: -32161, Message: "store query failed"}
	ErrStoreWrite        = &EngineError{Code: -32162, Message: "store write failed"}
	ErrConfigInvalid     = &EngineError{Code: -32163, Message: "invalid configuration"}
	ErrDuplicateDecision = &EngineError{Code: -32164, Message: "duplicate decision sequence number"}
)
