package model

import "time"

// APICallLog is one append-only row per outbound provider call, recorded for
// audit and debugging regardless of whether the phase succeeded. Never
// mutated after insert and never read by the enrichment core.
type APICallLog struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id,omitempty"`
	APIName    string    `json:"api_name"`
	Endpoint   string    `json:"endpoint"`
	Request    string    `json:"request,omitempty"`
	Response   string    `json:"response,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidationLog is the write-once audit record of one validator invocation.
type ValidationLog struct {
	ID              string                       `json:"id"`
	JobID           string                       `json:"job_id"`
	Inputs          map[string]EnrichmentOutcome `json:"inputs"`
	Score           int                          `json:"score"`
	ConfidenceLevel ConfidenceLevel              `json:"confidence_level"`
	Details         map[string]float64           `json:"details"`
	Model           string                       `json:"model"`
	CreatedAt       time.Time                    `json:"created_at"`
}
