// Package validate scores a completed enrichment run and writes the derived
// confidence side effects back to the job's children.
package validate

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/store"
)

// Factor weights. The four factors sum to at most 100.
const (
	coverageWeight    = 40.0
	consistencyWeight = 30.0
	credibilityWeight = 20.0
	fallbackWeight    = 10.0

	consistencyPerKey  = 5.0
	fallbackPenalty    = 2.5
	credibilityDefault = 10.0

	// newsCredibilityFallback is the 0-100 credibility assigned to news from
	// domains with no stored trust weight.
	newsCredibilityFallback = 50
)

// nowUTC is injectable for tests.
var nowUTC = func() time.Time { return time.Now().UTC() }

// Result is the validation outcome for one run.
type Result struct {
	Score             int                   `json:"score"`
	Level             model.ConfidenceLevel `json:"level"`
	Details           map[string]float64    `json:"details"`
	SuccessfulSources int                   `json:"successful_sources"`
	TotalSources      int                   `json:"total_sources"`
}

// Validator computes the four-factor data quality score.
type Validator struct {
	store   store.Store
	modelID string
}

// New creates a Validator. modelID is recorded on every validation log row.
func New(st store.Store, modelID string) *Validator {
	return &Validator{store: st, modelID: modelID}
}

// Validate scores the run's outcomes and applies confidence side effects:
// executives get a derived confidence score (empty-only), news items get a
// source credibility score (once), and one validation log row is appended.
func (v *Validator) Validate(ctx context.Context, job *model.ResearchJob, outcomes map[string]model.EnrichmentOutcome) (*Result, error) {
	if len(outcomes) == 0 {
		return nil, eris.New("validate: no outcomes to score")
	}

	successful := 0
	fallbacks := 0
	for _, o := range outcomes {
		if o.Success {
			successful++
			if o.FallbackUsed {
				fallbacks++
			}
		}
	}
	total := len(outcomes)

	details := map[string]float64{
		"coverage":    float64(successful) / float64(total) * coverageWeight,
		"consistency": v.consistencyScore(outcomes),
		"credibility": v.credibilityScore(ctx, outcomes),
		"fallback":    math.Max(0, fallbackWeight-fallbackPenalty*float64(fallbacks)),
	}

	raw := 0.0
	for _, f := range details {
		raw += f
	}
	score := int(math.Round(math.Min(100, math.Max(0, raw))))

	result := &Result{
		Score:             score,
		Level:             Level(score),
		Details:           details,
		SuccessfulSources: successful,
		TotalSources:      total,
	}

	v.applySideEffects(ctx, job, score)

	if err := v.store.AppendValidationLog(ctx, model.ValidationLog{
		JobID:           job.ID,
		Inputs:          outcomes,
		Score:           score,
		ConfidenceLevel: result.Level,
		Details:         details,
		Model:           v.modelID,
	}); err != nil {
		zap.L().Warn("validation log write failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}

	return result, nil
}

// consistencyScore rewards data keys corroborated by more than one
// successful phase, 5 points per key up to the factor cap.
func (v *Validator) consistencyScore(outcomes map[string]model.EnrichmentOutcome) float64 {
	seen := make(map[string]int)
	for _, o := range outcomes {
		if !o.Success {
			continue
		}
		for _, key := range o.DataKeys() {
			seen[key]++
		}
	}
	corroborated := 0
	for _, count := range seen {
		if count > 1 {
			corroborated++
		}
	}
	return math.Min(consistencyWeight, consistencyPerKey*float64(corroborated))
}

// credibilityScore averages the stored trust weights of the run's successful
// sources. Sources without a stored weight are skipped; with no weights found
// at all the factor falls back to a neutral midpoint. The factor depends only
// on the outcomes and the credibility table, so re-validating the same inputs
// is deterministic.
func (v *Validator) credibilityScore(ctx context.Context, outcomes map[string]model.EnrichmentOutcome) float64 {
	var sum float64
	found := 0
	for _, o := range outcomes {
		if !o.Success || o.Source == "" || o.Source == "none" {
			continue
		}
		cred, err := v.store.GetCredibility(ctx, o.Source)
		if err != nil {
			zap.L().Warn("credibility lookup failed",
				zap.String("source", o.Source),
				zap.Error(err),
			)
			continue
		}
		if cred == nil {
			continue
		}
		sum += cred.Score
		found++
	}
	if found == 0 {
		return credibilityDefault
	}
	return sum / float64(found) * credibilityWeight
}

// applySideEffects writes the derived per-record confidence values. All
// failures here are logged and swallowed: side effects must not fail the run.
func (v *Validator) applySideEffects(ctx context.Context, job *model.ResearchJob, score int) {
	execScore := int(math.Round(float64(score) * 0.9))
	verifiedAt := nowUTC()

	execs, err := v.store.ListExecutives(ctx, job.ID)
	if err != nil {
		zap.L().Warn("executive listing failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	for _, ex := range execs {
		if _, err := v.store.SetExecutiveConfidence(ctx, ex.ID, execScore, verifiedAt); err != nil {
			zap.L().Warn("executive confidence write failed",
				zap.String("executive_id", ex.ID),
				zap.Error(err),
			)
		}
	}

	items, err := v.store.ListNewsMissingCredibility(ctx, job.ID)
	if err != nil {
		zap.L().Warn("news listing failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	for _, item := range items {
		credScore := newsCredibilityFallback
		if item.SourceDomain != "" {
			if cred, err := v.store.GetCredibility(ctx, item.SourceDomain); err == nil && cred != nil {
				credScore = int(math.Round(cred.Score * 100))
			}
		}
		if err := v.store.SetNewsCredibility(ctx, item.ID, credScore); err != nil {
			zap.L().Warn("news credibility write failed",
				zap.String("news_id", item.ID),
				zap.Error(err),
			)
		}
	}
}

// Level buckets a 0-100 score into a confidence level.
func Level(score int) model.ConfidenceLevel {
	switch {
	case score >= 80:
		return model.ConfidenceHigh
	case score >= 60:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
