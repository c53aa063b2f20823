// Package store persists research jobs, their children, and the append-only
// audit logs behind the enrichment pipeline.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/philippeb99/researcher-sub001/internal/model"
)

// ErrNotFound is returned when a job id does not resolve.
var ErrNotFound = eris.New("store: not found")

// ErrVersionConflict is returned when the finalize merge loses an optimistic
// lock race with a concurrent run on the same job.
var ErrVersionConflict = eris.New("store: version conflict")

// FinalizeParams carries the merged state written wholesale at the end of a
// successful orchestration run.
type FinalizeParams struct {
	Phases          []string
	DataSources     []string
	Metadata        *model.RunMetadata
	ValidationScore int
	Status          model.EnrichmentStatus
	EnrichedAt      time.Time
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.ResearchJob) error
	GetJob(ctx context.Context, id string) (*model.ResearchJob, error)
	SetEnrichmentStatus(ctx context.Context, jobID string, status model.EnrichmentStatus) error
	// FillCompanyFields writes company fields only where the current value is
	// null/empty and returns the names of the fields actually set.
	FillCompanyFields(ctx context.Context, jobID string, data model.CompanyData) ([]string, error)
	// FinalizeEnrichment performs the versioned wholesale merge. It fails
	// with ErrVersionConflict when the job's version no longer matches.
	FinalizeEnrichment(ctx context.Context, jobID string, version int64, params FinalizeParams) error
	// SetRecentDevelopments fills the narrative field only when currently
	// empty; reports whether a row was written.
	SetRecentDevelopments(ctx context.Context, jobID, text string) (bool, error)

	// Executives
	AddExecutive(ctx context.Context, exec *model.Executive) error
	ListExecutives(ctx context.Context, jobID string) ([]model.Executive, error)
	// SetExecutiveLinkedIn fills linkedin_url only when currently empty;
	// reports whether a row was written.
	SetExecutiveLinkedIn(ctx context.Context, execID, url string) (bool, error)
	// SetExecutiveConfidence fills confidence_score only when currently
	// unset and stamps last_verified_at.
	SetExecutiveConfidence(ctx context.Context, execID string, score int, verifiedAt time.Time) (bool, error)

	// News
	// InsertNewsItems inserts items, skipping urls already present for the
	// job, and returns the number actually added.
	InsertNewsItems(ctx context.Context, jobID string, items []model.NewsItem) (int, error)
	ListNewsMissingCredibility(ctx context.Context, jobID string) ([]model.NewsItem, error)
	SetNewsCredibility(ctx context.Context, newsID string, score int) error

	// Source credibility
	// GetCredibility returns nil when no row exists for the domain.
	GetCredibility(ctx context.Context, domain string) (*model.SourceCredibility, error)
	UpsertCredibility(ctx context.Context, domain string, score float64) error

	// Audit (append-only, never read by the core)
	AppendAPILog(ctx context.Context, entry model.APICallLog) error
	AppendValidationLog(ctx context.Context, entry model.ValidationLog) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
