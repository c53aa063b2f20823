// Package enrich implements the per-source enrichment phases. Each phase
// runs an ordered provider chain: the primary source is tried first and
// fallbacks only run when everything before them failed.
package enrich

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/relevance"
	"github.com/philippeb99/researcher-sub001/internal/store"
)

// Enricher runs one enrichment phase for a job and reports its outcome.
// Enrich never returns an error; failures are carried in the outcome so the
// orchestrator can keep running the other phases.
type Enricher interface {
	Phase() string
	Enrich(ctx context.Context, job *model.ResearchJob) model.EnrichmentOutcome
}

// attempt is one provider in a phase's ordered chain.
type attempt struct {
	source string
	run    func(ctx context.Context) (model.PhaseData, error)
}

// runChain tries each provider in order. The first success wins; a success
// from any provider after the first is marked as a fallback. When every
// provider fails the outcome carries all errors joined in order.
func runChain(ctx context.Context, phase string, attempts []attempt) model.EnrichmentOutcome {
	out := model.EnrichmentOutcome{
		Phase:     phase,
		Timestamp: time.Now().UTC(),
	}
	if len(attempts) > 0 {
		out.PrimarySource = attempts[0].source
	}

	var errs []string
	for i, a := range attempts {
		data, err := a.run(ctx)
		if err != nil {
			errs = append(errs, a.source+": "+err.Error())
			zap.L().Warn("enrichment provider failed",
				zap.String("phase", phase),
				zap.String("source", a.source),
				zap.Error(err),
			)
			continue
		}
		out.Success = true
		out.Source = a.source
		out.FallbackUsed = i > 0
		out.Data = data
		if out.FallbackUsed {
			zap.L().Info("enrichment fell back",
				zap.String("phase", phase),
				zap.String("primary", out.PrimarySource),
				zap.String("source", a.source),
			)
		}
		return out
	}

	out.Error = strings.Join(errs, "; ")
	return out
}

// failedOutcome builds a failure outcome for errors outside the provider
// chain, such as persistence failures after a successful fetch.
func failedOutcome(phase, source string, err error) model.EnrichmentOutcome {
	return model.EnrichmentOutcome{
		Phase:     phase,
		Source:    source,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// Auditor records external API calls as an append-only side channel.
// Write failures are logged and never propagated: a broken audit trail must
// not take down an otherwise healthy enrichment run.
type Auditor struct {
	store store.Store
}

// NewAuditor creates an audit sink backed by the store. A nil store yields a
// no-op auditor.
func NewAuditor(st store.Store) *Auditor {
	return &Auditor{store: st}
}

// Record appends one API call log entry.
func (a *Auditor) Record(ctx context.Context, entry model.APICallLog) {
	if a == nil || a.store == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := a.store.AppendAPILog(ctx, entry); err != nil {
		zap.L().Warn("audit log write failed",
			zap.String("api", entry.APIName),
			zap.String("job_id", entry.JobID),
			zap.Error(err),
		)
	}
}

// companyQuery builds a search term matching any known variant of the
// company name, quoting each and OR-ing them together.
func companyQuery(name string) string {
	variants := relevance.NameVariants(name)
	if len(variants) == 0 {
		return ""
	}
	quoted := make([]string, len(variants))
	for i, v := range variants {
		quoted[i] = `"` + v + `"`
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// auditBodyLimit caps the stored response summary; audit rows are a trail,
// not a payload archive.
const auditBodyLimit = 500

func auditBody(s string) string {
	if len(s) > auditBodyLimit {
		return s[:auditBodyLimit]
	}
	return s
}

// auditStatus derives the HTTP status for an audit row. Provider clients only
// return success on 200; on failure the status is part of the error text.
func auditStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return 0
}
