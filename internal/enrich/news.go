package enrich

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/relevance"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/pkg/anthropic"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// NewsEnricher collects relevance-filtered news mentions for a job. Results
// below the relevance floor are dropped and counted; survivors are ranked by
// score and capped before insert. Re-runs are idempotent: the store skips
// URLs already attached to the job.
type NewsEnricher struct {
	store    store.Store
	search   serper.Client
	llm      anthropic.Client
	llmModel string
	minScore int
	maxItems int
	audit    *Auditor
	now      func() time.Time
}

// NewNewsEnricher creates the news phase enricher.
func NewNewsEnricher(st store.Store, search serper.Client, llm anthropic.Client, llmModel string, minScore, maxItems int, audit *Auditor) *NewsEnricher {
	return &NewsEnricher{
		store:    st,
		search:   search,
		llm:      llm,
		llmModel: llmModel,
		minScore: minScore,
		maxItems: maxItems,
		audit:    audit,
		now:      time.Now,
	}
}

func (e *NewsEnricher) Phase() string { return model.PhaseNews }

func (e *NewsEnricher) Enrich(ctx context.Context, job *model.ResearchJob) model.EnrichmentOutcome {
	filtered := 0
	out := runChain(ctx, model.PhaseNews, []attempt{
		{source: "serper", run: func(ctx context.Context) (model.PhaseData, error) {
			data, dropped, err := e.fromSearch(ctx, job)
			filtered = dropped
			return data, err
		}},
	})
	out.FilteredLowRelevance = filtered
	if !out.Success {
		return out
	}

	data, ok := out.Data.(model.NewsData)
	if !ok {
		return out
	}
	added, err := e.store.InsertNewsItems(ctx, job.ID, data.Items)
	if err != nil {
		return failedOutcome(model.PhaseNews, out.Source, eris.Wrap(err, "persist news items"))
	}
	out.NewItemsAdded = added

	if data.RecentDevelopments != "" {
		if wrote, err := e.store.SetRecentDevelopments(ctx, job.ID, data.RecentDevelopments); err == nil && wrote {
			out.FieldsUpdated = append(out.FieldsUpdated, "recent_developments")
		}
	}
	return out
}

func (e *NewsEnricher) fromSearch(ctx context.Context, job *model.ResearchJob) (model.PhaseData, int, error) {
	query := newsQuery(job)
	resp, err := e.search.News(ctx, query, serper.WithNum(20))
	var summary string
	if err == nil {
		summary = fmt.Sprintf("%d news results", len(resp.News))
	}
	e.audit.Record(ctx, model.APICallLog{
		JobID:      job.ID,
		APIName:    "serper",
		Endpoint:   "/news",
		Request:    query,
		Response:   summary,
		StatusCode: auditStatus(err),
		Error:      errString(err),
	})
	if err != nil {
		return nil, 0, err
	}
	if len(resp.News) == 0 {
		return nil, 0, eris.New("no news results")
	}

	target := relevance.Target{
		CompanyName: job.CompanyName,
		CEOName:     job.CEOName,
		Country:     job.Country,
		City:        job.City,
		Website:     job.Website,
	}
	now := e.now()

	type scored struct {
		item  model.NewsItem
		score int
	}
	var kept []scored
	dropped := 0
	for _, r := range resp.News {
		published := serper.ParseDate(r.Date)
		score := relevance.Score(relevance.Item{
			Title:       r.Title,
			Snippet:     r.Snippet,
			PublishedAt: published,
		}, target, now)
		if score < e.minScore {
			dropped++
			continue
		}
		kept = append(kept, scored{
			item: model.NewsItem{
				Title:           r.Title,
				URL:             r.Link,
				Summary:         r.Snippet,
				SourceDomain:    relevance.RegisteredDomain(r.Link),
				PublishedAt:     published,
				RelevanceScore:  score,
				ConfidenceLevel: relevance.Level(score),
			},
			score: score,
		})
	}
	if len(kept) == 0 {
		return nil, dropped, eris.Errorf("all %d results below relevance floor %d", dropped, e.minScore)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })
	if e.maxItems > 0 && len(kept) > e.maxItems {
		kept = kept[:e.maxItems]
	}

	items := make([]model.NewsItem, len(kept))
	for i, s := range kept {
		items[i] = s.item
	}

	return model.NewsData{
		Items:              items,
		RecentDevelopments: e.summarize(ctx, job, items),
	}, dropped, nil
}

// newsQuery matches any name variant, with location and CEO as context.
func newsQuery(job *model.ResearchJob) string {
	query := companyQuery(job.CompanyName)
	for _, term := range []string{job.City, job.Country, job.CEOName} {
		if term != "" {
			query += " " + term
		}
	}
	return query
}

// summarize turns the top headlines into a recent-developments narrative.
// Failures are non-fatal and return the empty string.
func (e *NewsEnricher) summarize(ctx context.Context, job *model.ResearchJob, items []model.NewsItem) string {
	if e.llm == nil || len(items) == 0 {
		return ""
	}
	var lines []string
	for i, it := range items {
		if i >= 5 {
			break
		}
		lines = append(lines, "- "+it.Title+": "+it.Summary)
	}
	prompt := fmt.Sprintf("Recent news about %s:\n\n%s\n\nSummarize the most important recent developments in 2-3 sentences. Respond with the summary only.",
		job.CompanyName, strings.Join(lines, "\n"))
	resp, err := e.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.llmModel,
		MaxTokens: 300,
		System:    "You are a research assistant that summarizes company news factually.",
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
