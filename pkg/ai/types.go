package ai

import "context"

// TriageInput carries the intake details used to suggest an urgency tier.
type TriageInput struct {
	Complaint string
	Age       int
	Gender    string
}

// TriageResult is the structured suggestion returned by the model. Urgency
// is one of routine, priority, critical.
type TriageResult struct {
	Urgency   string                 `json:"urgency"`
	Rationale string                 `json:"rationale"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

// Triager describes a model capable of suggesting an urgency tier from a
// presenting complaint. Suggestions are advisory only.
type Triager interface {
	Triage(ctx context.Context, input TriageInput) (TriageResult, error)
}
