package model

import "time"

// EnrichmentStatus represents where a job sits in the enrichment lifecycle.
type EnrichmentStatus string

const (
	EnrichmentNotStarted EnrichmentStatus = "not_started"
	EnrichmentRunning    EnrichmentStatus = "enriching"
	EnrichmentComplete   EnrichmentStatus = "enriched"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

// ConfidenceLevel is the coarse bucket derived from a numeric score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ResearchJob is the root record for a company/CEO research request.
type ResearchJob struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	CompanyName string `json:"company_name"`
	Website     string `json:"website,omitempty"`
	Country     string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`
	CEOName     string `json:"ceo_name,omitempty"`

	// Narrative research fields, filled by enrichment or user edits.
	Overview              string `json:"overview,omitempty"`
	IndustryBusinessModel string `json:"industry_business_model,omitempty"`
	MarketPosition        string `json:"market_position,omitempty"`
	RecentDevelopments    string `json:"recent_developments,omitempty"`
	Financials            string `json:"financials,omitempty"`

	EmployeeCount *int   `json:"employee_count,omitempty"`
	RevenueAmount *int64 `json:"revenue_amount,omitempty"`

	EnrichmentStatus   EnrichmentStatus `json:"enrichment_status"`
	EnrichmentPhases   []string         `json:"enrichment_phases,omitempty"`
	EnrichmentMetadata *RunMetadata     `json:"enrichment_metadata,omitempty"`
	DataSources        []string         `json:"data_sources,omitempty"`
	ValidationScore    int              `json:"validation_score"`
	DataQualityScore   int              `json:"data_quality_score"`
	LastEnrichedAt     *time.Time       `json:"last_enriched_at,omitempty"`

	// Version is bumped on every finalize; the orchestrator uses it as an
	// optimistic lock so concurrent runs on the same job cannot both merge.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Executive is a person attached to a research job.
// linkedin_url and confidence_score are only ever written when empty:
// enrichment never clobbers a manually-curated or already-resolved field.
type Executive struct {
	ID              string     `json:"id"`
	JobID           string     `json:"job_id"`
	Name            string     `json:"name"`
	Position        string     `json:"position,omitempty"`
	LinkedInURL     string     `json:"linkedin_url,omitempty"`
	ConfidenceScore *int       `json:"confidence_score,omitempty"`
	LastVerifiedAt  *time.Time `json:"last_verified_at,omitempty"`
}

// NewsItem is a relevance-filtered news mention attached to a job.
// URL is unique per job; rows are never mutated after insert except for
// source_credibility_score, set once by the validator.
type NewsItem struct {
	ID                     string          `json:"id"`
	JobID                  string          `json:"job_id"`
	Title                  string          `json:"title"`
	URL                    string          `json:"url"`
	Summary                string          `json:"summary,omitempty"`
	SourceDomain           string          `json:"source_domain,omitempty"`
	PublishedAt            *time.Time      `json:"published_at,omitempty"`
	RelevanceScore         int             `json:"relevance_score"`
	ConfidenceLevel        ConfidenceLevel `json:"confidence_level"`
	SourceCredibilityScore *int            `json:"source_credibility_score,omitempty"`
}

// SourceCredibility is a stored per-domain trust weight on a 0-1 scale.
type SourceCredibility struct {
	Domain    string    `json:"domain"`
	Score     float64   `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunMetadata captures the most recent orchestration run. It is overwritten
// wholesale each run, never appended.
type RunMetadata struct {
	RunID           string                       `json:"run_id"`
	Timestamp       time.Time                    `json:"timestamp"`
	PhasesRun       []string                     `json:"phases_run"`
	Summary         RunSummary                   `json:"summary"`
	DetailedResults map[string]EnrichmentOutcome `json:"detailed_results"`
}

// RunSummary is what the orchestrator returns to the caller.
type RunSummary struct {
	PhasesExecuted    []string                     `json:"phases_executed"`
	Results           map[string]EnrichmentOutcome `json:"results"`
	ValidationScore   int                          `json:"validation_score"`
	SuccessfulSources int                          `json:"successful_sources"`
	TotalSources      int                          `json:"total_sources"`
	DataSources       []string                     `json:"data_sources"`
}
