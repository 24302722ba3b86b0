// Package domain defines the core types for the Gatewright governance engine.
package domain

// Phase represents the workflow phases from bootstrap through implementation.
type Phase string

const (
	PhaseBootstrap          Phase = "bootstrap"
	PhaseDiscovery          Phase = "discovery"
	PhasePlanning           Phase = "planning"
	PhaseArchitectureGate   Phase = "architecture-gate"
	PhaseTestQualityGate    Phase = "test-quality-gate"
	PhaseComplianceGate     Phase = "compliance-gate"
	PhaseImplementationGate Phase = "implementation-gate"
)

// Mode is the confidence-derived operating mode of a session.
type Mode string

const (
	ModeNormal   Mode = "NORMAL"
	ModeDegraded Mode = "DEGRADED"
	ModeDraft    Mode = "DRAFT"
	ModeBlocked  Mode = "BLOCKED"
)

// SessionStatus tracks whether a session is live or has reached a terminal outcome.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusReady   SessionStatus = "ready"
	StatusAborted SessionStatus = "aborted"
)

// StatusWord is the engine's exit/status vocabulary for a single turn.
type StatusWord string

const (
	StatusOK          StatusWord = "OK"
	StatusWarn        StatusWord = "WARN"
	StatusBlocked     StatusWord = "BLOCKED"
	StatusNotVerified StatusWord = "NOT_VERIFIED"
)

// Scope isolates evidence and gate results to one ticket and session run.
// Evidence recorded under one scope never satisfies a query for another.
type Scope struct {
	TicketID     string `json:"ticket_id" yaml:"ticket_id"`
	SessionRunID string `json:"session_run_id" yaml:"session_run_id"`
}

// InputHashes pins the external inputs a session was resolved against.
type InputHashes struct {
	Ruleset   string `json:"ruleset" yaml:"ruleset"`
	RepoFacts string `json:"repo_facts" yaml:"repo_facts"`
	Manifests string `json:"manifests" yaml:"manifests"`
}

// SessionState is the root aggregate. It is owned exclusively by the engine,
// mutated only through explicit transition operations, and persisted between
// turns. One engine invocation advances at most one SessionState.
type SessionState struct {
	SessionID       string
	Scope           Scope
	Phase           Phase
	Mode            Mode
	Status          SessionStatus
	Confidence      int
	ReasonCode      ReasonCode // empty unless Mode == BLOCKED
	PlanJSON        string     // canonical serialization of the ActivationPlan
	PlanHash        string
	PinnedPlanHash  string // plan hash recorded at gate-pass time
	Hashes          InputHashes
	StateVersion    int64
	LastDecisionSeq int64
	UpdatedAtUnix   int64
}

// Blocked reports whether the session is in the blocked mode. The blocked
// invariant holds both ways: Mode == BLOCKED exactly when ReasonCode is set.
func (s *SessionState) Blocked() bool {
	return s.Mode == ModeBlocked
}

// --- Repository facts and activation ---

// RepoFacts is the normalized signal bundle supplied by an external provider.
// The engine never inspects a repository itself; it consumes these facts.
type RepoFacts struct {
	Signals      []string `yaml:"signals"`
	Capabilities []string `yaml:"capabilities"`
	Hash         string   `yaml:"hash"`
}

// AddonClass distinguishes addons that must activate from advisory ones.
type AddonClass string

const (
	ClassRequired AddonClass = "required"
	ClassAdvisory AddonClass = "advisory"
)

// AddonTier is the precedence tier used for surface-conflict resolution.
// Core outranks profile, which outranks addon.
type AddonTier string

const (
	TierCore    AddonTier = "core"
	TierProfile AddonTier = "profile"
	TierAddon   AddonTier = "addon"
)

// AddonManifest declares when a rule module activates and which surfaces it
// owns or touches.
type AddonManifest struct {
	Key             string     `yaml:"key"`
	Class           AddonClass `yaml:"class"`
	Tier            AddonTier  `yaml:"tier"`
	OwnsSurfaces    []string   `yaml:"owns_surfaces"`
	TouchesSurfaces []string   `yaml:"touches_surfaces"`
	CapabilitiesAll []string   `yaml:"capabilities_all"`
	CapabilitiesAny []string   `yaml:"capabilities_any"`
	Signals         []string   `yaml:"signals"`
}

// CapabilityRule derives a capability from a raw repository signal.
type CapabilityRule struct {
	Signal     string `yaml:"signal"`
	Capability string `yaml:"capability"`
}

// FallbackProfile maps a repository signal to a default profile when the
// ruleset does not name one explicitly.
type FallbackProfile struct {
	Signal  string `yaml:"signal"`
	Profile string `yaml:"profile"`
}

// Ruleset carries the per-ticket policy inputs to activation.
type Ruleset struct {
	Profile          string            `yaml:"profile"` // explicit profile, optional
	CapabilityRules  []CapabilityRule  `yaml:"capability_rules"`
	FallbackProfiles []FallbackProfile `yaml:"fallback_profiles"`
	TicketScope      []string          `yaml:"ticket_scope"` // addon keys declared in scope
	Hash             string            `yaml:"hash"`
}

// ProfileSource values record how the active profile was selected.
const (
	ProfileSourceRuleset  = "ruleset"
	ProfileSourceFallback = "repo-fallback"
)

// AddonRef is one activated addon inside a plan.
type AddonRef struct {
	Key   string     `json:"key"`
	Class AddonClass `json:"class"`
	Tier  AddonTier  `json:"tier"`
}

// TraceDecision is one entry in the precedence trace explaining why an addon
// was activated, skipped, or preferred over another.
type TraceDecision struct {
	Subject string `json:"subject"`
	Rule    string `json:"rule"`
	Outcome string `json:"outcome"`
}

// ActivationPlan is the deterministic output of the resolver. Identical
// input hashes must reproduce a byte-identical serialized plan.
type ActivationPlan struct {
	Profile         string          `json:"profile"`
	ProfileSource   string          `json:"profile_source"`
	Addons          []AddonRef      `json:"addons"`
	PrecedenceTrace []TraceDecision `json:"precedence_trace"`
}

// --- Evidence ---

// EvidenceKind classifies the source of an evidence item. Kinds form a fixed
// precedence ladder; a lower-ranked item never overrides a higher-ranked one.
type EvidenceKind string

const (
	KindBuildConfig EvidenceKind = "build-config"
	KindCodeUsage   EvidenceKind = "code-usage"
	KindTest        EvidenceKind = "test"
	KindCI          EvidenceKind = "ci"
	KindDoc         EvidenceKind = "doc"
	KindFreeText    EvidenceKind = "free-text"
)

// kindRank orders evidence kinds from most to least authoritative.
var kindRank = map[EvidenceKind]int{
	KindBuildConfig: 6,
	KindCodeUsage:   5,
	KindTest:        4,
	KindCI:          3,
	KindDoc:         2,
	KindFreeText:    1,
}

// KindRank returns the precedence rank of a kind; unknown kinds rank zero.
func KindRank(k EvidenceKind) int {
	return kindRank[k]
}

// EvidenceOutcome states what an item proves about its claim.
type EvidenceOutcome string

const (
	OutcomeSupports        EvidenceOutcome = "supports"
	OutcomeSupportsPartial EvidenceOutcome = "supports-partial"
	OutcomeRefutes         EvidenceOutcome = "refutes"
)

// EvidenceItem is an immutable, scoped record supporting or refuting a claim.
// Superseding requires a new item referencing the old one.
type EvidenceItem struct {
	ID             string
	ClaimKind      string
	Kind           EvidenceKind
	Source         string // command or file that produced the evidence
	Outcome        EvidenceOutcome
	SnippetRef     string
	Scope          Scope
	SupersedesID   string
	Superseded     bool
	SeqNo          int64
	RecordedAtUnix int64
}

// ClaimStatus is the answer to "is claim X provable".
type ClaimStatus string

const (
	ClaimVerified    ClaimStatus = "verified"
	ClaimPartial     ClaimStatus = "partial"
	ClaimNotVerified ClaimStatus = "not-verified"
)

// EvidenceConflict records a lower-ranked item contradicting a higher-ranked
// one. The higher-ranked item wins; the conflict is kept for audit.
type EvidenceConflict struct {
	WinnerID string
	LoserID  string
	Note     string
}

// ClaimAnswer is the result of a ledger query.
type ClaimAnswer struct {
	Status    ClaimStatus
	Items     []EvidenceItem
	Conflicts []EvidenceConflict
}

// --- Gates ---

// GateID names a governance checkpoint.
type GateID string

const (
	GateArchitecture   GateID = "architecture"
	GateTestQuality    GateID = "test-quality"
	GateCompliance     GateID = "compliance"
	GateImplementation GateID = "implementation"
)

// Criterion is one weighted check inside a gate. Critical criteria veto the
// whole gate when they fail.
type Criterion struct {
	ID        string `yaml:"id"`
	ClaimKind string `yaml:"claim_kind"`
	Artifact  string `yaml:"artifact"` // set when resolved by artifact presence instead of a claim
	Weight    int    `yaml:"weight"`
	Critical  bool   `yaml:"critical"`
}

// GateSpec defines a gate's criteria and required artifacts.
type GateSpec struct {
	ID                GateID      `yaml:"id"`
	Phase             Phase       `yaml:"phase"`
	Criteria          []Criterion `yaml:"criteria"`
	RequiredArtifacts []string    `yaml:"required_artifacts"`
}

// CriterionResult is the resolution of a single criterion.
type CriterionResult string

const (
	CriterionPass          CriterionResult = "pass"
	CriterionFail          CriterionResult = "fail"
	CriterionPartial       CriterionResult = "partial"
	CriterionNotApplicable CriterionResult = "not-applicable"
)

// GateDecision is the computed outcome of a gate evaluation. It is never set
// manually.
type GateDecision string

const (
	GatePending            GateDecision = "pending"
	GatePass               GateDecision = "pass"
	GatePassWithExceptions GateDecision = "pass-with-exceptions"
	GateFail               GateDecision = "fail"
)

// CriterionTrace records how one criterion resolved, with the evidence
// reference that backs the resolution.
type CriterionTrace struct {
	CriterionID string
	Result      CriterionResult
	EvidenceRef string
}

// GateResult is the scorecard produced by evaluating a gate.
type GateResult struct {
	GateID          GateID
	Decision        GateDecision
	Score           int
	MaxScore        int
	Trace           []CriterionTrace
	PlanHash        string // activation plan hash at evaluation time
	EvaluatedAtUnix int64
}

// Passed reports whether the result allows crossing the gate.
func (r GateResult) Passed() bool {
	return r.Decision == GatePass || r.Decision == GatePassWithExceptions
}

// GateReport is the pending value returned when a turn halts at a gate.
// The caller persists state and confirms the gate on a later turn.
type GateReport struct {
	Gate           GateID
	Phase          Phase
	Result         GateResult
	ConfirmCommand string
}

// TurnResult is the outcome of one engine turn.
type TurnResult struct {
	State   SessionState
	Pending *GateReport
	Status  StatusWord
}

// --- Transitions and logs ---

// TransitionTrigger initiates a phase transition.
type TransitionTrigger struct {
	Action string
	Actor  string
}

// DecisionRecord is one entry in the append-only decision log.
type DecisionRecord struct {
	ID          int64
	SessionID   string
	SeqNo       int64
	Phase       Phase
	EventType   string
	PayloadJSON string
	CreatedAt   int64
}

// RuleStatus is the lifecycle status of a business rule in the register.
type RuleStatus string

const (
	RuleActive     RuleStatus = "ACTIVE"
	RuleDeprecated RuleStatus = "DEPRECATED"
	RuleCandidate  RuleStatus = "CANDIDATE"
)

// RuleRecord is one append-only row in the business-rule register. A rule's
// stable ID persists across status changes; each change is a new row.
type RuleRecord struct {
	ID        int64
	RuleID    string
	Status    RuleStatus
	Body      string
	CreatedAt int64
}

// Explanation is the recovery engine's answer for a blocked state: exactly
// one reason code, the minimal missing inputs, at most three recovery steps,
// and one concrete next command.
type Explanation struct {
	Reason          ReasonCode
	Summary         string
	MissingEvidence []string
	RecoverySteps   []string
	NextCommand     string
}
