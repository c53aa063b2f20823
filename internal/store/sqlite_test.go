package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philippeb99/researcher-sub001/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedJob(t *testing.T, st *SQLiteStore, job *model.ResearchJob) *model.ResearchJob {
	t.Helper()
	if job == nil {
		job = &model.ResearchJob{UserID: "user-1", CompanyName: "Acme Corp"}
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

// --- Jobs ---

func TestSQLite_CreateAndGetJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := seedJob(t, st, &model.ResearchJob{
		UserID:      "user-1",
		CompanyName: "Acme Corp",
		Website:     "https://acme.com",
		CEOName:     "Jane Smith",
	})

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.CompanyName)
	assert.Equal(t, model.EnrichmentNotStarted, got.EnrichmentStatus)
	assert.Equal(t, int64(0), got.Version)
	assert.Nil(t, got.EnrichmentMetadata)
}

func TestSQLite_GetJob_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetJob(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SetEnrichmentStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	require.NoError(t, st.SetEnrichmentStatus(ctx, job.ID, model.EnrichmentRunning))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentRunning, got.EnrichmentStatus)

	require.ErrorIs(t, st.SetEnrichmentStatus(ctx, "nope", model.EnrichmentRunning), ErrNotFound)
}

func TestSQLite_FillCompanyFields_NeverClobbers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, &model.ResearchJob{
		UserID:      "user-1",
		CompanyName: "Acme Corp",
		Overview:    "Hand-written overview.",
	})

	employees := 250
	filled, err := st.FillCompanyFields(ctx, job.ID, model.CompanyData{
		EmployeeCount:         &employees,
		Overview:              "Machine overview that must not win.",
		IndustryBusinessModel: "Manufacturing",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"employee_count", "industry_business_model"}, filled)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hand-written overview.", got.Overview)
	require.NotNil(t, got.EmployeeCount)
	assert.Equal(t, 250, *got.EmployeeCount)

	// Second pass over now-filled fields writes nothing.
	again, err := st.FillCompanyFields(ctx, job.ID, model.CompanyData{
		EmployeeCount:         &employees,
		IndustryBusinessModel: "Retail",
	})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSQLite_FillCompanyFields_ConcurrentFillsNeverClobber(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	// Two phases race to fill the same empty overview. Exactly one write may
	// land; the loser must not overwrite the winner's committed value.
	overviews := []string{"Acme builds anvils.", "Acme sells rockets."}
	results := make([][]string, len(overviews))
	var wg sync.WaitGroup
	for i, overview := range overviews {
		wg.Add(1)
		go func() {
			defer wg.Done()
			filled, err := st.FillCompanyFields(ctx, job.ID, model.CompanyData{Overview: overview})
			require.NoError(t, err)
			results[i] = filled
		}()
	}
	wg.Wait()

	wrote := 0
	for _, filled := range results {
		for _, field := range filled {
			if field == "overview" {
				wrote++
			}
		}
	}
	assert.Equal(t, 1, wrote)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, overviews, got.Overview)
}

func TestSQLite_FinalizeEnrichment_VersionedMerge(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	params := FinalizeParams{
		Phases:      []string{"company", "news"},
		DataSources: []string{"pdl", "serper"},
		Metadata: &model.RunMetadata{
			RunID:     "run-1",
			Timestamp: time.Now().UTC(),
			PhasesRun: []string{"company", "news"},
			DetailedResults: map[string]model.EnrichmentOutcome{
				"company": {Phase: "company", Source: "pdl", Success: true},
			},
		},
		ValidationScore: 72,
		Status:          model.EnrichmentComplete,
		EnrichedAt:      time.Now().UTC(),
	}
	require.NoError(t, st.FinalizeEnrichment(ctx, job.ID, 0, params))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, model.EnrichmentComplete, got.EnrichmentStatus)
	assert.Equal(t, 72, got.ValidationScore)
	assert.Equal(t, []string{"company", "news"}, got.EnrichmentPhases)
	require.NotNil(t, got.EnrichmentMetadata)
	assert.Equal(t, "run-1", got.EnrichmentMetadata.RunID)

	// A run that loaded the job at version 0 now loses the race.
	err = st.FinalizeEnrichment(ctx, job.ID, 0, params)
	require.ErrorIs(t, err, ErrVersionConflict)

	err = st.FinalizeEnrichment(ctx, "nope", 0, params)
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Executives ---

func TestSQLite_Executives_FillOnlyEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	blank := &model.Executive{JobID: job.ID, Name: "Jane Smith", Position: "CEO"}
	require.NoError(t, st.AddExecutive(ctx, blank))
	score := 80
	taken := &model.Executive{
		JobID: job.ID, Name: "Bob Jones", Position: "CFO",
		LinkedInURL: "https://linkedin.com/in/bobjones", ConfidenceScore: &score,
	}
	require.NoError(t, st.AddExecutive(ctx, taken))

	wrote, err := st.SetExecutiveLinkedIn(ctx, blank.ID, "https://linkedin.com/in/janesmith")
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = st.SetExecutiveLinkedIn(ctx, taken.ID, "https://linkedin.com/in/imposter")
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = st.SetExecutiveConfidence(ctx, blank.ID, 63, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = st.SetExecutiveConfidence(ctx, taken.ID, 99, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, wrote)

	execs, err := st.ListExecutives(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	// Ordered by name: Bob before Jane.
	assert.Equal(t, "https://linkedin.com/in/bobjones", execs[0].LinkedInURL)
	assert.Equal(t, 80, *execs[0].ConfidenceScore)
	assert.Equal(t, "https://linkedin.com/in/janesmith", execs[1].LinkedInURL)
	assert.Equal(t, 63, *execs[1].ConfidenceScore)
}

// --- News ---

func TestSQLite_InsertNewsItems_DedupByURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	items := []model.NewsItem{
		{Title: "Acme expands", URL: "https://news.example/a", RelevanceScore: 60, ConfidenceLevel: model.ConfidenceMedium},
		{Title: "Acme hires CFO", URL: "https://news.example/b", RelevanceScore: 45, ConfidenceLevel: model.ConfidenceLow},
	}
	added, err := st.InsertNewsItems(ctx, job.ID, items)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Re-running the same batch adds nothing.
	added, err = st.InsertNewsItems(ctx, job.ID, []model.NewsItem{
		{Title: "Acme expands (repost)", URL: "https://news.example/a", RelevanceScore: 60, ConfidenceLevel: model.ConfidenceMedium},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	missing, err := st.ListNewsMissingCredibility(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, missing, 2)
}

func TestSQLite_SetNewsCredibility_Once(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	_, err := st.InsertNewsItems(ctx, job.ID, []model.NewsItem{
		{Title: "Acme raises", URL: "https://news.example/a", RelevanceScore: 60, ConfidenceLevel: model.ConfidenceMedium},
	})
	require.NoError(t, err)

	missing, err := st.ListNewsMissingCredibility(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	require.NoError(t, st.SetNewsCredibility(ctx, missing[0].ID, 90))

	missing, err = st.ListNewsMissingCredibility(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

// --- Source credibility ---

func TestSQLite_Credibility_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cred, err := st.GetCredibility(ctx, "reuters.com")
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, st.UpsertCredibility(ctx, "reuters.com", 0.9))
	require.NoError(t, st.UpsertCredibility(ctx, "reuters.com", 0.95))

	cred, err = st.GetCredibility(ctx, "reuters.com")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.InDelta(t, 0.95, cred.Score, 0.0001)
}

// --- Audit logs ---

func TestSQLite_AppendLogs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job := seedJob(t, st, nil)

	require.NoError(t, st.AppendAPILog(ctx, model.APICallLog{
		JobID:      job.ID,
		APIName:    "serper",
		Endpoint:   "/news",
		StatusCode: 200,
	}))

	require.NoError(t, st.AppendValidationLog(ctx, model.ValidationLog{
		JobID: job.ID,
		Inputs: map[string]model.EnrichmentOutcome{
			"company": {Phase: "company", Source: "pdl", Success: true},
		},
		Score:           60,
		ConfidenceLevel: model.ConfidenceMedium,
		Details:         map[string]float64{"source_success": 40},
	}))
}
