package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/pkg/anthropic"
	"github.com/philippeb99/researcher-sub001/pkg/pdl"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// CompanyEnricher fills firmographic fields from the business-graph provider,
// falling back to web search plus model summarization. Fields on the job are
// only ever filled when empty.
type CompanyEnricher struct {
	store    store.Store
	pdl      pdl.Client
	search   serper.Client
	llm      anthropic.Client
	llmModel string
	audit    *Auditor
}

// NewCompanyEnricher creates the company phase enricher.
func NewCompanyEnricher(st store.Store, pdlClient pdl.Client, search serper.Client, llm anthropic.Client, llmModel string, audit *Auditor) *CompanyEnricher {
	return &CompanyEnricher{
		store:    st,
		pdl:      pdlClient,
		search:   search,
		llm:      llm,
		llmModel: llmModel,
		audit:    audit,
	}
}

func (e *CompanyEnricher) Phase() string { return model.PhaseCompany }

func (e *CompanyEnricher) Enrich(ctx context.Context, job *model.ResearchJob) model.EnrichmentOutcome {
	out := runChain(ctx, model.PhaseCompany, []attempt{
		{source: "pdl", run: func(ctx context.Context) (model.PhaseData, error) {
			return e.fromPDL(ctx, job)
		}},
		{source: "serper", run: func(ctx context.Context) (model.PhaseData, error) {
			return e.fromSearch(ctx, job)
		}},
	})
	if !out.Success {
		return out
	}

	data, ok := out.Data.(model.CompanyData)
	if !ok {
		return out
	}
	filled, err := e.store.FillCompanyFields(ctx, job.ID, data)
	if err != nil {
		return failedOutcome(model.PhaseCompany, out.Source, eris.Wrap(err, "persist company fields"))
	}
	out.FieldsUpdated = filled
	return out
}

func (e *CompanyEnricher) fromPDL(ctx context.Context, job *model.ResearchJob) (model.PhaseData, error) {
	company, err := e.pdl.EnrichCompany(ctx, job.CompanyName, job.Website)
	var summary string
	if err == nil {
		summary = auditBody(fmt.Sprintf("industry=%s employees=%s %s",
			company.Industry, company.NumEmployeesEnum, company.Summary))
	}
	e.audit.Record(ctx, model.APICallLog{
		JobID:      job.ID,
		APIName:    "pdl",
		Endpoint:   "/company/enrich",
		Request:    job.CompanyName,
		Response:   summary,
		StatusCode: auditStatus(err),
		Error:      errString(err),
	})
	if err != nil {
		return nil, err
	}

	data := model.CompanyData{
		IndustryBusinessModel: company.Industry,
		Overview:              company.Summary,
		Website:               company.Website,
	}
	if company.EmployeeCount > 0 {
		count := company.EmployeeCount
		data.EmployeeCount = &count
	} else if n := ParseEmployeeRange(company.NumEmployeesEnum); n != nil {
		data.EmployeeCount = n
	}
	if company.AnnualRevenue > 0 {
		revenue := company.AnnualRevenue
		data.RevenueAmount = &revenue
	}
	return data, nil
}

func (e *CompanyEnricher) fromSearch(ctx context.Context, job *model.ResearchJob) (model.PhaseData, error) {
	query := job.CompanyName + " company overview"
	resp, err := e.search.Search(ctx, query, serper.WithNum(5))
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
		return nil, err
	}
	if len(resp.Organic) == 0 {
		return nil, eris.New("no search results")
	}

	var snippets []string
	for _, r := range resp.Organic {
		if r.Snippet != "" {
			snippets = append(snippets, r.Snippet)
		}
	}

	overview := e.summarize(ctx, job, snippets)
	if overview == "" && len(snippets) > 0 {
		// Model unavailable: the raw top snippet is still better than nothing.
		overview = snippets[0]
	}
	if overview == "" {
		return nil, eris.New("search results carried no usable snippets")
	}

	return model.CompanyData{Overview: overview}, nil
}

// summarize condenses search snippets into a short overview. Failures are
// non-fatal and return the empty string.
func (e *CompanyEnricher) summarize(ctx context.Context, job *model.ResearchJob, snippets []string) string {
	if e.llm == nil || len(snippets) == 0 {
		return ""
	}
	prompt := fmt.Sprintf("Search snippets about %s:\n\n%s\n\nWrite a 2-3 sentence factual company overview. Respond with the overview only.",
		job.CompanyName, strings.Join(snippets, "\n"))
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.llmModel,
		MaxTokens: 300,
		System:    "You are a research assistant that writes concise, factual company summaries.",
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	var summary string
	if err == nil {
		summary = auditBody(resp.Text())
	}
	e.audit.Record(ctx, model.APICallLog{
		JobID:      job.ID,
		APIName:    "anthropic",
		Endpoint:   "/v1/messages",
		Response:   summary,
		StatusCode: auditStatus(err),
		Error:      errString(err),
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(resp.Text())
}

var employeeRangeLow = regexp.MustCompile(`^\d+`)

// ParseEmployeeRange extracts the lower bound from a headcount range string
// such as "101-250" or "10001+". Returns nil when no leading number exists.
func ParseEmployeeRange(s string) *int {
	m := employeeRangeLow.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
