// Package orchestrator drives a full enrichment run: authorization, phase
// fan-out, validation, and the final versioned merge.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/philippeb99/researcher-sub001/internal/auth"
	"github.com/philippeb99/researcher-sub001/internal/enrich"
	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/internal/validate"
)

// ErrForbidden is returned when the caller is neither the job's owner nor
// holder of an elevated role. No load result is exposed and nothing is
// mutated.
var ErrForbidden = eris.New("orchestrator: not authorized for this job")

// ErrUnknownPhase is returned for a phase selector outside the known set.
var ErrUnknownPhase = eris.New("orchestrator: unknown phase")

// Orchestrator coordinates the enrichment phases for a job.
type Orchestrator struct {
	store     store.Store
	auth      *auth.Manager
	validator *validate.Validator
	enrichers map[string]enrich.Enricher
}

// New creates an Orchestrator over the given phase enrichers.
func New(st store.Store, authMgr *auth.Manager, validator *validate.Validator, enrichers ...enrich.Enricher) *Orchestrator {
	byPhase := make(map[string]enrich.Enricher, len(enrichers))
	for _, e := range enrichers {
		byPhase[e.Phase()] = e
	}
	return &Orchestrator{
		store:     st,
		auth:      authMgr,
		validator: validator,
		enrichers: byPhase,
	}
}

// ResolvePhases expands the phase selection. Empty or "all" selects every
// phase; anything outside the known set is rejected before work starts.
func ResolvePhases(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), model.AllPhases...), nil
	}
	seen := make(map[string]bool, len(requested))
	var phases []string
	for _, p := range requested {
		if !model.KnownPhase(p) {
			return nil, eris.Wrapf(ErrUnknownPhase, "%q", p)
		}
		if p == model.PhaseAll {
			return append([]string(nil), model.AllPhases...), nil
		}
		if !seen[p] {
			seen[p] = true
			phases = append(phases, p)
		}
	}
	return phases, nil
}

// Run executes an enrichment run for the job on behalf of the identity.
// Partial phase failure is a normal result; the only errors returned are
// authorization, unknown phase, missing job, and the final merge conflict.
func (o *Orchestrator) Run(ctx context.Context, id *auth.Identity, jobID string, requested []string) (*model.RunSummary, error) {
	phases, err := ResolvePhases(requested)
	if err != nil {
		return nil, err
	}

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := o.authorize(id, job); err != nil {
		return nil, err
	}
	version := job.Version

	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.String("company", job.CompanyName),
		zap.Strings("phases", phases),
	)
	log.Info("enrichment run starting")

	if err := o.store.SetEnrichmentStatus(ctx, job.ID, model.EnrichmentRunning); err != nil {
		return nil, eris.Wrap(err, "orchestrator: mark enriching")
	}

	outcomes := o.runPhases(ctx, job, phases)

	score := 0
	if o.validator != nil {
		result, vErr := o.validator.Validate(ctx, job, outcomes)
		if vErr != nil {
			// Validation failure never fails the run; the score stays 0.
			log.Warn("validation failed", zap.Error(vErr))
		} else {
			score = result.Score
		}
	}

	summary := buildSummary(phases, outcomes, score, job)
	metadata := &model.RunMetadata{
		RunID:           uuid.New().String(),
		Timestamp:       time.Now().UTC(),
		PhasesRun:       phases,
		Summary:         *summary,
		DetailedResults: outcomes,
	}

	status := model.EnrichmentComplete
	if summary.SuccessfulSources == 0 {
		status = model.EnrichmentFailed
	}

	err = o.store.FinalizeEnrichment(ctx, job.ID, version, store.FinalizeParams{
		Phases:          unionStrings(job.EnrichmentPhases, phases),
		DataSources:     summary.DataSources,
		Metadata:        metadata,
		ValidationScore: score,
		Status:          status,
		EnrichedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	log.Info("enrichment run finished",
		zap.Int("validation_score", score),
		zap.Int("successful_sources", summary.SuccessfulSources),
		zap.Int("total_sources", summary.TotalSources),
	)
	return summary, nil
}

func (o *Orchestrator) authorize(id *auth.Identity, job *model.ResearchJob) error {
	if id == nil {
		return ErrForbidden
	}
	if id.UserID == job.UserID {
		return nil
	}
	if o.auth != nil && o.auth.Elevated(*id) {
		return nil
	}
	return ErrForbidden
}

// runPhases fans the selected phases out concurrently. A phase that errors
// or panics yields a failed outcome and never aborts its siblings.
func (o *Orchestrator) runPhases(ctx context.Context, job *model.ResearchJob, phases []string) map[string]model.EnrichmentOutcome {
	outcomes := make(map[string]model.EnrichmentOutcome, len(phases))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for _, phase := range phases {
		enricher, ok := o.enrichers[phase]
		if !ok {
			mu.Lock()
			outcomes[phase] = model.EnrichmentOutcome{
				Phase:     phase,
				Error:     "no enricher registered",
				Timestamp: time.Now().UTC(),
			}
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			out := o.runOnePhase(gCtx, enricher, job)
			mu.Lock()
			outcomes[phase] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) runOnePhase(ctx context.Context, e enrich.Enricher, job *model.ResearchJob) (out model.EnrichmentOutcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrichment phase panicked",
				zap.String("phase", e.Phase()),
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
			)
			out = model.EnrichmentOutcome{
				Phase:     e.Phase(),
				Error:     eris.Errorf("phase panic: %v", r).Error(),
				Timestamp: time.Now().UTC(),
			}
		}
	}()
	return e.Enrich(ctx, job)
}

func buildSummary(phases []string, outcomes map[string]model.EnrichmentOutcome, score int, job *model.ResearchJob) *model.RunSummary {
	successful := 0
	var sources []string
	for _, phase := range phases {
		out, ok := outcomes[phase]
		if !ok || !out.Success {
			continue
		}
		successful++
		if out.Source != "" && out.Source != "none" {
			sources = append(sources, out.Source)
		}
	}
	return &model.RunSummary{
		PhasesExecuted:    phases,
		Results:           outcomes,
		ValidationScore:   score,
		SuccessfulSources: successful,
		TotalSources:      len(phases),
		DataSources:       unionStrings(job.DataSources, sources),
	}
}

// unionStrings merges two lists preserving first-seen order, dropping
// duplicates.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
