package agent

import "fmt"

// ProcessingError wraps a capability failure inside Process. The orchestrator
// treats it as a fitness penalty for the producing agent, never as a fatal
// error; the operation simply yields no output.
type ProcessingError struct {
	AgentID string
	Err     error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("agent %s processing failed: %v", e.AgentID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ProcessingError) Unwrap() error { return e.Err }

// NewProcessingError wraps err as a ProcessingError for the given agent.
func NewProcessingError(agentID string, err error) *ProcessingError {
	return &ProcessingError{AgentID: agentID, Err: err}
}
