package validate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newValidateTestJob(t *testing.T, st store.Store) *model.ResearchJob {
	t.Helper()
	job := &model.ResearchJob{UserID: "user-1", CompanyName: "Acme Corp"}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

func successOutcome(phase, source string, data model.PhaseData) model.EnrichmentOutcome {
	return model.EnrichmentOutcome{
		Phase:   phase,
		Source:  source,
		Success: true,
		Data:    data,
	}
}

func TestValidate_SinglePhaseBaseline(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)

	v := New(st, "test-model")
	result, err := v.Validate(context.Background(), job, map[string]model.EnrichmentOutcome{
		"company": successOutcome("company", "pdl", model.CompanyData{Overview: "x"}),
	})
	require.NoError(t, err)

	// 40 coverage + 0 consistency + 10 default credibility + 10 no-fallback.
	assert.Equal(t, 60, result.Score)
	assert.Equal(t, model.ConfidenceMedium, result.Level)
	assert.Equal(t, 1, result.SuccessfulSources)
	assert.Equal(t, 1, result.TotalSources)
	assert.InDelta(t, 40.0, result.Details["coverage"], 0.001)
	assert.InDelta(t, 0.0, result.Details["consistency"], 0.001)
	assert.InDelta(t, 10.0, result.Details["credibility"], 0.001)
	assert.InDelta(t, 10.0, result.Details["fallback"], 0.001)
}

func TestValidate_ConsistencyAndFallback(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)

	overview := "shared"
	outcomes := map[string]model.EnrichmentOutcome{
		// "overview" and "website" each appear in two successful phases.
		"company": successOutcome("company", "pdl", model.CompanyData{Overview: overview, Website: "https://acme.com"}),
		"web": {
			Phase:         "web",
			Source:        "serper",
			PrimarySource: "jina",
			Success:       true,
			FallbackUsed:  true,
			Data:          model.WebData{Overview: overview, Website: "https://acme.com", Pages: []model.WebPageResult{{URL: "https://acme.com", Success: true}}},
		},
		"news":     {Phase: "news", Source: "serper", Error: "quota"},
		"linkedin": {Phase: "linkedin", Source: "proxycurl", Error: "down"},
	}

	v := New(st, "test-model")
	result, err := v.Validate(context.Background(), job, outcomes)
	require.NoError(t, err)

	// coverage 2/4*40=20; consistency 2 shared keys*5=10; credibility 10;
	// fallback 10-2.5=7.5 -> total 47.5 rounds to 48.
	assert.InDelta(t, 20.0, result.Details["coverage"], 0.001)
	assert.InDelta(t, 10.0, result.Details["consistency"], 0.001)
	assert.InDelta(t, 7.5, result.Details["fallback"], 0.001)
	assert.Equal(t, 48, result.Score)
	assert.Equal(t, model.ConfidenceLow, result.Level)
	assert.Equal(t, 2, result.SuccessfulSources)
	assert.Equal(t, 4, result.TotalSources)
}

func TestValidate_CredibilityFromStoredWeights(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)
	ctx := context.Background()

	require.NoError(t, st.UpsertCredibility(ctx, "pdl", 0.9))

	v := New(st, "test-model")
	result, err := v.Validate(ctx, job, map[string]model.EnrichmentOutcome{
		"company": successOutcome("company", "pdl", model.CompanyData{Overview: "x"}),
	})
	require.NoError(t, err)

	// avg(0.9)*20 = 18, lifting the single-phase baseline to 40+0+18+10.
	assert.InDelta(t, 18.0, result.Details["credibility"], 0.001)
	assert.Equal(t, 68, result.Score)
}

func TestValidate_CredibilitySkipsUnweightedSources(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)
	ctx := context.Background()

	require.NoError(t, st.UpsertCredibility(ctx, "pdl", 0.8))

	// Only pdl has a stored weight; serper and the failed source are skipped
	// rather than diluting the average.
	outcomes := map[string]model.EnrichmentOutcome{
		"company": successOutcome("company", "pdl", model.CompanyData{Overview: "x"}),
		"news":    successOutcome("news", "serper", model.NewsData{Items: []model.NewsItem{{Title: "t"}}}),
		"web":     {Phase: "web", Source: "jina", Error: "down"},
	}

	v := New(st, "test-model")
	result, err := v.Validate(ctx, job, outcomes)
	require.NoError(t, err)
	assert.InDelta(t, 16.0, result.Details["credibility"], 0.001)
}

func TestValidate_RepeatedRunsAreDeterministic(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)
	ctx := context.Background()

	require.NoError(t, st.UpsertCredibility(ctx, "serper", 0.9))
	require.NoError(t, st.UpsertCredibility(ctx, "reuters.com", 0.9))
	_, err := st.InsertNewsItems(ctx, job.ID, []model.NewsItem{
		{Title: "A", URL: "https://reuters.com/a", SourceDomain: "reuters.com", RelevanceScore: 50, ConfidenceLevel: model.ConfidenceMedium},
		{Title: "B", URL: "https://unknown.example/b", SourceDomain: "unknown.example", RelevanceScore: 40, ConfidenceLevel: model.ConfidenceLow},
	})
	require.NoError(t, err)

	outcomes := map[string]model.EnrichmentOutcome{
		"news": successOutcome("news", "serper", model.NewsData{Items: []model.NewsItem{{Title: "A"}}}),
	}

	v := New(st, "test-model")
	first, err := v.Validate(ctx, job, outcomes)
	require.NoError(t, err)

	// The first pass stamps every news item's credibility as a side effect.
	missing, err := st.ListNewsMissingCredibility(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// A second pass over identical inputs scores identically.
	second, err := v.Validate(ctx, job, outcomes)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.InDelta(t, first.Details["credibility"], second.Details["credibility"], 0.001)
}

func TestValidate_ExecutiveConfidenceEmptyOnly(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)
	ctx := context.Background()

	blank := &model.Executive{JobID: job.ID, Name: "Jane Smith"}
	require.NoError(t, st.AddExecutive(ctx, blank))
	preset := 95
	curated := &model.Executive{JobID: job.ID, Name: "Bob Jones", ConfidenceScore: &preset}
	require.NoError(t, st.AddExecutive(ctx, curated))

	v := New(st, "test-model")
	result, err := v.Validate(ctx, job, map[string]model.EnrichmentOutcome{
		"company": successOutcome("company", "pdl", model.CompanyData{Overview: "x"}),
	})
	require.NoError(t, err)
	require.Equal(t, 60, result.Score)

	execs, err := st.ListExecutives(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	// Ordered by name: Bob keeps the curated 95, Jane gets round(60*0.9)=54.
	assert.Equal(t, 95, *execs[0].ConfidenceScore)
	assert.Equal(t, 54, *execs[1].ConfidenceScore)
	assert.NotNil(t, execs[1].LastVerifiedAt)
}

func TestValidate_NoOutcomes(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)

	v := New(st, "test-model")
	_, err := v.Validate(context.Background(), job, nil)
	require.Error(t, err)
}

func TestValidate_ScoreBounds(t *testing.T) {
	st := newTestStore(t)
	job := newValidateTestJob(t, st)

	// All four phases successful and heavily corroborated caps the
	// consistency factor at its weight, keeping the total within bounds.
	shared := model.CompanyData{
		Overview:              "x",
		Website:               "https://acme.com",
		IndustryBusinessModel: "y",
	}
	outcomes := map[string]model.EnrichmentOutcome{
		"company":  successOutcome("company", "pdl", shared),
		"web":      successOutcome("web", "jina", model.WebData{Overview: "x", Website: "https://acme.com", Pages: []model.WebPageResult{{URL: "u", Success: true}}}),
		"news":     successOutcome("news", "serper", model.NewsData{Items: []model.NewsItem{{Title: "t"}}, RecentDevelopments: "z"}),
		"linkedin": successOutcome("linkedin", "proxycurl", model.LinkedInData{Company: "Acme Corp", Website: "https://acme.com"}),
	}

	v := New(st, "test-model")
	result, err := v.Validate(context.Background(), job, outcomes)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Score, 100)
	assert.GreaterOrEqual(t, result.Score, 0)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, Level(80))
	assert.Equal(t, model.ConfidenceHigh, Level(100))
	assert.Equal(t, model.ConfidenceMedium, Level(60))
	assert.Equal(t, model.ConfidenceMedium, Level(79))
	assert.Equal(t, model.ConfidenceLow, Level(59))
	assert.Equal(t, model.ConfidenceLow, Level(0))
}
