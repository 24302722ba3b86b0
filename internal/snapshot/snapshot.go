// Package snapshot implements the persistence cache: versioned YAML
// snapshots of resolved session state, validated by hash before they may
// short-circuit a full discovery run.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gatewright/gatewright/internal/domain"
)

// SchemaVersion is the current snapshot document version.
const SchemaVersion = 1

// Explicit sentinels for absent data. Empty or placeholder values are
// forbidden in a snapshot document.
const (
	SentinelUnknown       = "unknown"
	SentinelDeferred      = "deferred"
	SentinelNotApplicable = "not-applicable"
)

// Snapshot is the versioned document persisted between runs. Every top-level
// key is required; absent data uses an explicit sentinel.
type Snapshot struct {
	SchemaVersion   int               `yaml:"schema_version"`
	Fingerprint     string            `yaml:"fingerprint"`
	RulesetHash     string            `yaml:"ruleset_hash"`
	Phase           string            `yaml:"phase"`
	Mode            string            `yaml:"mode"`
	Confidence      int               `yaml:"confidence"`
	Gates           map[string]string `yaml:"gates"` // gate ID -> decision
	ActivationPlan  string            `yaml:"activation_plan"` // canonical plan JSON
	EvidenceRefs    []string          `yaml:"evidence_refs"`
	ReasonCode      string            `yaml:"reason_code"` // sentinel when not blocked
	GitHead         string            `yaml:"git_head"`    // sentinel when unavailable
	RepoSignature   string            `yaml:"repo_signature"`
	ComponentScopes []string          `yaml:"component_scopes"`
}

// FromState builds a snapshot from a session state and its gate results.
func FromState(state *domain.SessionState, gates map[domain.GateID]domain.GateResult, fingerprint, gitHead, repoSignature string, scopes []string) *Snapshot {
	s := &Snapshot{
		SchemaVersion:   SchemaVersion,
		Fingerprint:     fingerprint,
		RulesetHash:     state.Hashes.Ruleset,
		Phase:           string(state.Phase),
		Mode:            string(state.Mode),
		Confidence:      state.Confidence,
		Gates:           make(map[string]string, len(gates)),
		ActivationPlan:  state.PlanJSON,
		ReasonCode:      SentinelNotApplicable,
		GitHead:         SentinelUnknown,
		RepoSignature:   repoSignature,
		ComponentScopes: scopes,
	}
	if state.ReasonCode != "" {
		s.ReasonCode = string(state.ReasonCode)
	}
	if gitHead != "" {
		s.GitHead = gitHead
	}
	if s.ActivationPlan == "" {
		s.ActivationPlan = SentinelDeferred
	}
	for id, res := range gates {
		s.Gates[string(id)] = string(res.Decision)
	}
	return s
}

// validate rejects documents with missing required keys. Sentinels are the
// only legal representation of absent data.
func (s *Snapshot) validate() error {
	if s.SchemaVersion == 0 {
		return domain.NewEngineError(domain.ErrSnapshotInvalid.Code, "snapshot missing schema_version")
	}
	required := map[string]string{
		"fingerprint":     s.Fingerprint,
		"ruleset_hash":    s.RulesetHash,
		"phase":           s.Phase,
		"mode":            s.Mode,
		"activation_plan": s.ActivationPlan,
		"reason_code":     s.ReasonCode,
		"repo_signature":  s.RepoSignature,
	}
	for key, val := range required {
		if val == "" {
			return domain.NewEngineError(domain.ErrSnapshotSentinel.Code,
				fmt.Sprintf("snapshot key %s is empty; use an explicit sentinel", key))
		}
	}
	return nil
}

// Load reads and validates a snapshot document. Unknown keys are rejected.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var s Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// RepoSignature hashes a file list: each file's relative name and content
// feed the digest in sorted name order, so any content or membership change
// changes the signature while the caller's listing order does not.
func RepoSignature(root string, files []string) (string, error) {
	ordered := make([]string, len(files))
	copy(ordered, files)
	sort.Strings(ordered)

	h := sha256.New()
	for _, name := range ordered {
		io.WriteString(h, name)
		h.Write([]byte{0})
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			return "", fmt.Errorf("signature file %s: %w", name, err)
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", fmt.Errorf("signature file %s: %w", name, err)
		}
		f.Close()
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
