package triage

import "context"

// AssessorRequest is the payload sent to the external assessor.
type AssessorRequest struct {
	ChiefComplaint  string      `json:"chiefComplaint"`
	AdditionalNotes string      `json:"additionalNotes,omitempty"`
	VitalSigns      *VitalSigns `json:"vitalSigns,omitempty"`
}

// Assessor is the interface for the external triage assessor. Implementations
// may fail freely: the Engine absorbs every error into the deterministic
// fallback.
type Assessor interface {
	Assess(ctx context.Context, req *AssessorRequest) (*Result, error)
}
