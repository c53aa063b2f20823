package enrich

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/pkg/jina"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

func TestWebScrapeEnricher_ScrapeTargets(t *testing.T) {
	e := NewWebScrapeEnricher(nil, nil, nil, 3, 0.001, nil)
	targets := e.ScrapeTargets("https://acme.com/")
	assert.Equal(t, []string{
		"https://acme.com",
		"https://acme.com/about",
		"https://acme.com/about-us",
	}, targets)

	// Bare domains get a scheme.
	targets = NewWebScrapeEnricher(nil, nil, nil, 1, 0.001, nil).ScrapeTargets("acme.com")
	assert.Equal(t, []string{"https://acme.com"}, targets)
}

func TestWebScrapeEnricher_PartialPageFailuresTolerated(t *testing.T) {
	st := newTestStore(t)
	job := newEnrichTestJob(t, st)

	reader := &mockJinaClient{}
	reader.On("Read", mock.Anything, "https://acme.com").
		Return(&jina.ReadResponse{
			Code: 200,
			Data: jina.ReadData{
				Title:   "Acme Corp",
				URL:     "https://acme.com",
				Content: "# Acme\n\nAcme Corp has manufactured roadrunner countermeasures since 1949.",
			},
		}, nil)
	reader.On("Read", mock.Anything, "https://acme.com/about").
		Return(nil, eris.New("timeout"))

	e := NewWebScrapeEnricher(st, reader, &mockSerperClient{}, 2, 0.001, NewAuditor(st))
	out := e.Enrich(context.Background(), job)

	assert.True(t, out.Success)
	assert.Equal(t, "jina", out.Source)
	assert.False(t, out.FallbackUsed)

	data, ok := out.Data.(model.WebData)
	require.True(t, ok)
	require.Len(t, data.Pages, 2)
	assert.True(t, data.Pages[0].Success)
	assert.False(t, data.Pages[1].Success)
	assert.Equal(t, "timeout", data.Pages[1].Error)
	assert.Contains(t, data.Overview, "roadrunner countermeasures")

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Overview, "roadrunner countermeasures")
}

func TestWebScrapeEnricher_FallsBackToSiteSearch(t *testing.T) {
	st := newTestStore(t)
	job := newEnrichTestJob(t, st)

	reader := &mockJinaClient{}
	reader.On("Read", mock.Anything, mock.Anything).
		Return(nil, eris.New("reader down"))

	serperMock := &mockSerperClient{}
	serperMock.On("Search", mock.Anything, "Acme Corp").
		Return(&serper.SearchResponse{Organic: []serper.OrganicResult{
			{Title: "Acme Corp - Home", Link: "https://acme.com", Snippet: "Acme Corp builds traps."},
		}}, nil)

	e := NewWebScrapeEnricher(st, reader, serperMock, 2, 0.001, NewAuditor(st))
	out := e.Enrich(context.Background(), job)

	assert.True(t, out.Success)
	assert.Equal(t, "serper", out.Source)
	assert.True(t, out.FallbackUsed)

	data, ok := out.Data.(model.WebData)
	require.True(t, ok)
	assert.Equal(t, "Acme Corp builds traps.", data.Overview)
}

func TestWebScrapeEnricher_NoWebsite(t *testing.T) {
	st := newTestStore(t)
	job := &model.ResearchJob{UserID: "user-1", CompanyName: "Acme Corp"}
	require.NoError(t, st.CreateJob(context.Background(), job))

	e := NewWebScrapeEnricher(st, &mockJinaClient{}, &mockSerperClient{}, 2, 0.001, NewAuditor(st))
	out := e.Enrich(context.Background(), job)

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "no website")
}

func TestFirstParagraph(t *testing.T) {
	content := "# Heading\n\n[skip](https://example.com)\n\nshort\n\nAcme Corp has been the leading supplier of anvils and rocket skates since 1949."
	got := firstParagraph(content)
	assert.Contains(t, got, "leading supplier of anvils")

	assert.Empty(t, firstParagraph("# Only headings\n\n## Nothing else"))
}
