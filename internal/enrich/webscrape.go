package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/pkg/jina"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// defaultScrapePaths are the site sections tried after the homepage.
var defaultScrapePaths = []string{"/about", "/about-us", "/company", "/team"}

// WebScrapeEnricher reads the company's own website. Page fetches go through
// the reader service, rate-limited to stay polite; when the reader fails for
// every page a site-scoped search provides a coarse fallback. Partial page
// failures do not fail the phase.
type WebScrapeEnricher struct {
	store   store.Store
	reader  jina.Client
	search  serper.Client
	maxURLs int
	limiter *rate.Limiter
	audit   *Auditor
}

// NewWebScrapeEnricher creates the web-scraping phase enricher. delaySecs
// sets the minimum spacing between page fetches.
func NewWebScrapeEnricher(st store.Store, reader jina.Client, search serper.Client, maxURLs int, delaySecs float64, audit *Auditor) *WebScrapeEnricher {
	if delaySecs <= 0 {
		delaySecs = 1
	}
	return &WebScrapeEnricher{
		store:   st,
		reader:  reader,
		search:  search,
		maxURLs: maxURLs,
		limiter: rate.NewLimiter(rate.Limit(1/delaySecs), 1),
		audit:   audit,
	}
}

func (e *WebScrapeEnricher) Phase() string { return model.PhaseWeb }

func (e *WebScrapeEnricher) Enrich(ctx context.Context, job *model.ResearchJob) model.EnrichmentOutcome {
	if job.Website == "" {
		return failedOutcome(model.PhaseWeb, "jina", eris.New("job has no website to scrape"))
	}

	out := runChain(ctx, model.PhaseWeb, []attempt{
		{source: "jina", run: func(ctx context.Context) (model.PhaseData, error) {
			return e.fromReader(ctx, job)
		}},
		{source: "serper", run: func(ctx context.Context) (model.PhaseData, error) {
			return e.fromSearch(ctx, job)
		}},
	})
	if !out.Success {
		return out
	}

	data, ok := out.Data.(model.WebData)
	if !ok || data.Overview == "" {
		return out
	}
	filled, err := e.store.FillCompanyFields(ctx, job.ID, model.CompanyData{Overview: data.Overview})
	if err != nil {
		return failedOutcome(model.PhaseWeb, out.Source, eris.Wrap(err, "persist scraped overview"))
	}
	out.FieldsUpdated = filled
	return out
}

// ScrapeTargets returns the URLs the phase will read, homepage first,
// capped at the configured maximum.
func (e *WebScrapeEnricher) ScrapeTargets(website string) []string {
	base := strings.TrimRight(website, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	urls := []string{base}
	for _, p := range defaultScrapePaths {
		urls = append(urls, base+p)
	}
	if e.maxURLs > 0 && len(urls) > e.maxURLs {
		urls = urls[:e.maxURLs]
	}
	return urls
}

func (e *WebScrapeEnricher) fromReader(ctx context.Context, job *model.ResearchJob) (model.PhaseData, error) {
	data := model.WebData{Website: job.Website}
	anySuccess := false

	for _, target := range e.ScrapeTargets(job.Website) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}

		page := model.WebPageResult{URL: target}
		resp, err := e.reader.Read(ctx, target)
		var summary string
		if err == nil {
			summary = fmt.Sprintf("title=%q %d bytes", resp.Data.Title, len(resp.Data.Content))
		}
		e.audit.Record(ctx, model.APICallLog{
			JobID:      job.ID,
			APIName:    "jina",
			Endpoint:   target,
			Response:   summary,
			StatusCode: auditStatus(err),
			Error:      errString(err),
		})
		if err != nil {
			page.Error = err.Error()
		} else {
			page.Success = true
			page.Title = resp.Data.Title
			anySuccess = true
			if data.Overview == "" {
				data.Overview = firstParagraph(resp.Data.Content)
			}
		}
		data.Pages = append(data.Pages, page)
	}

	if !anySuccess {
		return nil, eris.New("all page reads failed")
	}
	return data, nil
}

func (e *WebScrapeEnricher) fromSearch(ctx context.Context, job *model.ResearchJob) (model.PhaseData, error) {
	domain := strings.TrimPrefix(strings.TrimPrefix(job.Website, "https://"), "http://")
	domain = strings.TrimPrefix(strings.TrimSuffix(domain, "/"), "www.")

	resp, err := e.search.Search(ctx, job.CompanyName, serper.WithSite(domain), serper.WithNum(5))
	var summary string
	if err == nil {
		summary = fmt.Sprintf("%d organic results", len(resp.Organic))
	}
	e.audit.Record(ctx, model.APICallLog{
		JobID:      job.ID,
		APIName:    "serper",
		Endpoint:   "/search",
		Request:    job.CompanyName,
		Response:   summary,
		StatusCode: auditStatus(err),
		Error:      errString(err),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Organic) == 0 {
		return nil, eris.New("no site results")
	}

	data := model.WebData{Website: job.Website}
	for _, r := range resp.Organic {
		data.Pages = append(data.Pages, model.WebPageResult{
			URL:     r.Link,
			Success: true,
			Title:   r.Title,
		})
		if data.Overview == "" && r.Snippet != "" {
			data.Overview = r.Snippet
		}
	}
	return data, nil
}

// firstParagraph extracts the first substantial text block from markdown
// content, skipping headings and link-only lines.
func firstParagraph(content string) string {
	for _, block := range strings.Split(content, "\n\n") {
		text := strings.TrimSpace(block)
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "[") || strings.HasPrefix(text, "!") {
			continue
		}
		if len(text) < 40 {
			continue
		}
		if len(text) > 600 {
			text = text[:600]
		}
		return text
	}
	return ""
}
