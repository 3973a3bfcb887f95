package core

import "time"

// Assertion is a structured claim over an ordered node pair. Structured
// triples let the consistency check detect direct contradictions without
// free-text comparison: supports vs contradicts over the same pair disagree.
type Assertion struct {
	Subject   NodeID  `json:"subject"`
	Predicate RelType `json:"predicate"`
	Object    NodeID  `json:"object"`
}

// Contradicts reports whether two assertions over the same ordered node pair
// take opposing stances.
func (a Assertion) Contradicts(b Assertion) bool {
	if a.Subject != b.Subject || a.Object != b.Object {
		return false
	}
	return (a.Predicate == RelSupports && b.Predicate == RelContradicts) ||
		(a.Predicate == RelContradicts && b.Predicate == RelSupports)
}

// SuggestedAction is an optional follow-up an agent proposes alongside a
// claim (e.g. "link", "review", "merge"). The engine surfaces actions with
// the insight; executing them is the interface layer's concern.
type SuggestedAction struct {
	Kind   string `json:"kind"`
	Target NodeID `json:"target,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// AgentOutput is a candidate insight produced by one agent for one event.
// Outputs are immutable once submitted; validation produces a separate
// ValidationResult keyed by output id and never mutates the output itself.
type AgentOutput struct {
	ID         string            `json:"id"`
	AgentID    string            `json:"agent_id"`
	Confidence float64           `json:"confidence"` // declared, 0.0 - 1.0
	Claim      string            `json:"claim"`
	Evidence   []NodeID          `json:"evidence"` // cited node ids
	Assertions []Assertion       `json:"assertions,omitempty"`
	Actions    []SuggestedAction `json:"actions,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewAgentOutput constructs an output with a fresh id and UTC timestamp.
func NewAgentOutput(agentID string, confidence float64, claim string, evidence []NodeID) *AgentOutput {
	return &AgentOutput{
		ID:         NewID(),
		AgentID:    agentID,
		Confidence: confidence,
		Claim:      claim,
		Evidence:   evidence,
		CreatedAt:  time.Now().UTC(),
	}
}

// Severity grades a validation issue.
type Severity string

// Issue severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is one check's diagnostic for a failed or flagged output.
type Issue struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidationResult records the verdict of the validation pipeline for one
// output. Passed requires the pass fraction of active checks to exceed the
// configured threshold; a consistency conflict is flagged in Conflicting
// without by itself dooming the output.
type ValidationResult struct {
	OutputID     string   `json:"output_id"`
	Passed       bool     `json:"passed"`
	PassFraction float64  `json:"pass_fraction"`
	Issues       []Issue  `json:"issues,omitempty"`
	Conflicting  []string `json:"conflicting,omitempty"` // ids of prior passed outputs contradicted
}

// FeedbackAction is an explicit user signal on a surfaced insight, consumed
// by the orchestrator's fitness logic at the feedback boundary.
type FeedbackAction string

// Feedback actions.
const (
	FeedbackUsed      FeedbackAction = "used"
	FeedbackIgnored   FeedbackAction = "ignored"
	FeedbackSaved     FeedbackAction = "saved"
	FeedbackDismissed FeedbackAction = "dismissed"
)
