package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/relevance"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/pkg/proxycurl"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// executiveTitles is the allow-list a search result must hit before a
// profile is attributed to an executive.
var executiveTitles = []string{
	"ceo", "chief executive", "founder", "co-founder",
	"president", "managing director", "partner", "owner", "chairman",
}

// LinkedInEnricher resolves LinkedIn profile URLs for a job's executives.
// The specialized people-data provider is primary; when it is not configured
// or fails, a site-scoped web search takes over. Profile URLs already on an
// executive are never overwritten.
type LinkedInEnricher struct {
	store  store.Store
	people proxycurl.Client
	search serper.Client
	audit  *Auditor
}

// NewLinkedInEnricher creates the linkedin phase enricher.
func NewLinkedInEnricher(st store.Store, people proxycurl.Client, search serper.Client, audit *Auditor) *LinkedInEnricher {
	return &LinkedInEnricher{store: st, people: people, search: search, audit: audit}
}

func (e *LinkedInEnricher) Phase() string { return model.PhaseLinkedIn }

func (e *LinkedInEnricher) Enrich(ctx context.Context, job *model.ResearchJob) model.EnrichmentOutcome {
	execs, err := e.store.ListExecutives(ctx, job.ID)
	if err != nil {
		return failedOutcome(model.PhaseLinkedIn, "", eris.Wrap(err, "list executives"))
	}

	var targets []model.Executive
	for _, ex := range execs {
		if ex.LinkedInURL == "" {
			targets = append(targets, ex)
		}
	}
	if len(targets) == 0 {
		// Nothing to resolve is a successful no-op, not a failure.
		out := runChain(ctx, model.PhaseLinkedIn, nil)
		out.Success = true
		out.Source = "none"
		out.Data = model.LinkedInData{Company: job.CompanyName, Website: job.Website}
		return out
	}

	var attempts []attempt
	if e.people != nil && e.people.Configured() {
		attempts = append(attempts, attempt{source: "proxycurl", run: func(ctx context.Context) (model.PhaseData, error) {
			return e.fromProxycurl(ctx, job, targets)
		}})
	}
	attempts = append(attempts, attempt{source: "serper", run: func(ctx context.Context) (model.PhaseData, error) {
		return e.fromSearch(ctx, job, targets)
	}})

	out := runChain(ctx, model.PhaseLinkedIn, attempts)
	// The chain's primary is whichever provider actually ran first; record
	// the intended primary even when it was skipped as unconfigured.
	out.PrimarySource = "proxycurl"
	out.FallbackUsed = out.Success && out.Source != out.PrimarySource
	if !out.Success {
		return out
	}

	data, ok := out.Data.(model.LinkedInData)
	if !ok {
		return out
	}
	byName := make(map[string]model.Executive, len(targets))
	for _, ex := range targets {
		byName[strings.ToLower(ex.Name)] = ex
	}
	updated := 0
	for _, p := range data.Profiles {
		ex, ok := byName[strings.ToLower(p.ExecutiveName)]
		if !ok || p.URL == "" {
			continue
		}
		wrote, err := e.store.SetExecutiveLinkedIn(ctx, ex.ID, p.URL)
		if err != nil {
			return failedOutcome(model.PhaseLinkedIn, out.Source, eris.Wrap(err, "persist executive profile"))
		}
		if wrote {
			updated++
		}
	}
	out.ExecutivesUpdated = updated
	return out
}

func (e *LinkedInEnricher) fromProxycurl(ctx context.Context, job *model.ResearchJob, targets []model.Executive) (model.PhaseData, error) {
	domain := relevance.RegisteredDomain(job.Website)

	data := model.LinkedInData{Company: job.CompanyName, Website: job.Website}
	var lastErr error
	for _, ex := range targets {
		first, last := splitName(ex.Name)
		person, err := e.people.LookupPerson(ctx, first, last, domain)
		var resolved string
		if err == nil {
			resolved = person.URL
		}
		e.audit.Record(ctx, model.APICallLog{
			JobID:      job.ID,
			APIName:    "proxycurl",
			Endpoint:   "/linkedin/profile/resolve",
			Request:    ex.Name,
			Response:   resolved,
			StatusCode: auditStatus(err),
			Error:      errString(err),
		})
		if err != nil {
			lastErr = err
			continue
		}
		if person.URL == "" {
			continue
		}
		data.Profiles = append(data.Profiles, model.LinkedInProfile{
			ExecutiveName: ex.Name,
			Title:         person.Title,
			URL:           person.URL,
		})
	}

	if len(data.Profiles) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, eris.New("no profiles resolved")
	}
	return data, nil
}

func (e *LinkedInEnricher) fromSearch(ctx context.Context, job *model.ResearchJob, targets []model.Executive) (model.PhaseData, error) {
	data := model.LinkedInData{Company: job.CompanyName, Website: job.Website}
	var lastErr error
	for _, ex := range targets {
		query := `"` + ex.Name + `" ` + companyQuery(job.CompanyName)
		resp, err := e.search.Search(ctx, query, serper.WithSite("linkedin.com/in"), serper.WithNum(5))
		var summary string
		if err == nil {
			summary = fmt.Sprintf("%d organic results", len(resp.Organic))
		}
		e.audit.Record(ctx, model.APICallLog{
			JobID:      job.ID,
			APIName:    "serper",
			Endpoint:   "/search",
			Request:    query,
			Response:   summary,
			StatusCode: auditStatus(err),
			Error:      errString(err),
		})
		if err != nil {
			lastErr = err
			continue
		}
		for _, r := range resp.Organic {
			// Search engines often truncate the name out of the page title;
			// match against the snippet too.
			text := r.Title + " " + r.Snippet
			if !nameMatches(ex.Name, text) {
				continue
			}
			if !titleIndicatesExecutive(text, ex.Position) {
				continue
			}
			data.Profiles = append(data.Profiles, model.LinkedInProfile{
				ExecutiveName: ex.Name,
				Title:         r.Title,
				URL:           r.Link,
			})
			break
		}
	}

	if len(data.Profiles) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, eris.New("no matching profiles found")
	}
	return data, nil
}

// nameMatches reports whether every token of the executive's name appears in
// the candidate text, case-insensitively.
func nameMatches(name, text string) bool {
	lower := strings.ToLower(text)
	matched := false
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		if len(tok) < 2 {
			continue
		}
		if !strings.Contains(lower, tok) {
			return false
		}
		matched = true
	}
	return matched
}

// titleIndicatesExecutive requires the result text to carry a leadership
// role, or the executive's own recorded position.
func titleIndicatesExecutive(text, position string) bool {
	lower := strings.ToLower(text)
	for _, t := range executiveTitles {
		if strings.Contains(lower, t) {
			return true
		}
	}
	if position != "" && strings.Contains(lower, strings.ToLower(position)) {
		return true
	}
	return false
}

func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
