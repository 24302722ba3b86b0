package domain

import (
	"errors"
	"testing"
)

func TestReasonCode_Subject(t *testing.T) {
	code := ReasonAddonConflict.WithSubject("api/users")

	if code != "BLOCKED-ADDON-CONFLICT:api/users" {
		t.Errorf("code = %q", code)
	}
	if code.Base() != ReasonAddonConflict {
		t.Errorf("Base() = %q", code.Base())
	}
	if code.Subject() != "api/users" {
		t.Errorf("Subject() = %q", code.Subject())
	}
	if ReasonLowConfidence.Subject() != "" {
		t.Errorf("bare code Subject() = %q, want empty", ReasonLowConfidence.Subject())
	}
}

func TestReasonCode_Valid(t *testing.T) {
	valid := []ReasonCode{
		ReasonAmbiguousProfile,
		ReasonMissingAddon.WithSubject("payments"),
		ReasonStalePlan,
	}
	for _, c := range valid {
		if !c.Valid() {
			t.Errorf("Valid(%q) = false", c)
		}
	}

	invalid := []ReasonCode{"", "LOW-CONFIDENCE", "blocked-low-confidence"}
	for _, c := range invalid {
		if c.Valid() {
			t.Errorf("Valid(%q) = true", c)
		}
	}
}

func TestEngineError_IsMatchesByCode(t *testing.T) {
	wrapped := NewEngineError(ErrOptimisticLock.Code, "session sess-1 raced")

	if !errors.Is(wrapped, ErrOptimisticLock) {
		t.Error("errors.Is failed on same code")
	}
	if errors.Is(wrapped, ErrSessionNotFound) {
		t.Error("errors.Is matched a different code")
	}
}

func TestReasonOf(t *testing.T) {
	err := MissingAddonError("payments")
	reason, ok := ReasonOf(err)
	if !ok {
		t.Fatal("ReasonOf found no reason")
	}
	if reason.Base() != ReasonMissingAddon || reason.Subject() != "payments" {
		t.Errorf("reason = %q", reason)
	}

	if _, ok := ReasonOf(ErrOptimisticLock); ok {
		t.Error("reason extracted from a non-blocking error")
	}
}

func TestSessionState_BlockedInvariant(t *testing.T) {
	s := SessionState{Mode: ModeBlocked, ReasonCode: ReasonLowConfidence}
	if !s.Blocked() {
		t.Error("Blocked() = false for BLOCKED mode")
	}
	s = SessionState{Mode: ModeNormal}
	if s.Blocked() {
		t.Error("Blocked() = true for NORMAL mode")
	}
}
