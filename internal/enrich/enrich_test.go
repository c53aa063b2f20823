package enrich

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/pkg/pdl"
	"github.com/philippeb99/researcher-sub001/pkg/serper"
)

// logCapturingStore keeps every audit entry it sees before delegating.
type logCapturingStore struct {
	store.Store
	mu      sync.Mutex
	entries []model.APICallLog
}

func (s *logCapturingStore) AppendAPILog(ctx context.Context, entry model.APICallLog) error {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return s.Store.AppendAPILog(ctx, entry)
}

func (s *logCapturingStore) byAPI(api string) []model.APICallLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.APICallLog
	for _, e := range s.entries {
		if e.APIName == api {
			out = append(out, e)
		}
	}
	return out
}

func TestAuditor_RecordsResponseAndStatus(t *testing.T) {
	capturing := &logCapturingStore{Store: newTestStore(t)}
	job := newEnrichTestJob(t, capturing)

	pdlMock := &mockPDLClient{}
	pdlMock.On("EnrichCompany", mock.Anything, "Acme Corp", "https://acme.com").
		Return(&pdl.Company{
			Name:     "Acme Corp",
			Industry: "Manufacturing",
			Summary:  "Acme makes everything.",
		}, nil)

	e := NewCompanyEnricher(capturing, pdlMock, &mockSerperClient{}, nil, "", NewAuditor(capturing))
	out := e.Enrich(context.Background(), job)
	require.True(t, out.Success)

	logs := capturing.byAPI("pdl")
	require.Len(t, logs, 1)
	assert.Equal(t, 200, logs[0].StatusCode)
	assert.Contains(t, logs[0].Response, "Manufacturing")
	assert.Empty(t, logs[0].Error)
}

func TestAuditor_FailedCallCarriesErrorNotResponse(t *testing.T) {
	capturing := &logCapturingStore{Store: newTestStore(t)}
	job := newEnrichTestJob(t, capturing)

	pdlMock := &mockPDLClient{}
	pdlMock.On("EnrichCompany", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, pdl.ErrNotFound)
	serperMock := &mockSerperClient{}
	serperMock.On("Search", mock.Anything, mock.Anything).
		Return(&serper.SearchResponse{Organic: []serper.OrganicResult{
			{Snippet: "Acme Corp is a manufacturer."},
		}}, nil)

	e := NewCompanyEnricher(capturing, pdlMock, serperMock, nil, "", NewAuditor(capturing))
	out := e.Enrich(context.Background(), job)
	require.True(t, out.Success)

	failed := capturing.byAPI("pdl")
	require.Len(t, failed, 1)
	assert.Zero(t, failed[0].StatusCode)
	assert.Empty(t, failed[0].Response)
	assert.NotEmpty(t, failed[0].Error)

	searched := capturing.byAPI("serper")
	require.Len(t, searched, 1)
	assert.Equal(t, 200, searched[0].StatusCode)
	assert.Equal(t, "1 organic results", searched[0].Response)
}

func TestAuditBody_Truncates(t *testing.T) {
	long := make([]byte, auditBodyLimit*2)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, auditBody(string(long)), auditBodyLimit)
	assert.Equal(t, "short", auditBody("short"))
}
